package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/neurlang/transfer/datasets/imagefolder"
	"github.com/neurlang/transfer/device"
	"github.com/neurlang/transfer/learning"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options are the resolved settings of a training run.
type Options struct {
	Weights     string
	Device      string
	Epochs      int
	SavePath    string
	DatasetPath string
	BatchSize   int
	Labels      []string
	ImgSize     int
	LR          float64
	Workers     int
	Seed        uint32
	Resume      bool
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("weights", "weights/resnet50-19c8e357.pth", "pretrained backbone checkpoint")
	flags.String("device", "", "CUDA devices to use, 0 or 0,1,2,3, or cpu")
	flags.Int("epochs", 10, "number of training epochs")
	flags.String("save-path", "weights/my_resnet50.pt", "where the best model is saved")
	flags.String("dataset-path", "../dataset", "dataset root holding train/ and val/")
	flags.Int("batch-size", 16, "batch size")
	flags.StringSlice("labels", []string{"dog", "cat"}, "class labels, in class index order")
	flags.Int("img-size", 224, "training crop size")
	flags.Float64("lr", learning.DefaultLearningRate, "SGD learning rate")
	flags.Int("workers", device.HostCores(), "image decoding workers")
	flags.Uint32("seed", 0, "seed of shuffling, augmentation and head initialisation")
	flags.Bool("resume", false, "continue from the checkpoint at --save-path when it exists")
	flags.String("config", "", "optional config file (yaml, json or toml)")
}

// newViper binds flags, TRANSFER_ environment variables and the optional config file.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("TRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
	}
	return v, nil
}

func optionsFrom(v *viper.Viper) (*Options, error) {
	o := &Options{
		Weights:     v.GetString("weights"),
		Device:      v.GetString("device"),
		Epochs:      v.GetInt("epochs"),
		SavePath:    v.GetString("save-path"),
		DatasetPath: v.GetString("dataset-path"),
		BatchSize:   v.GetInt("batch-size"),
		Labels:      imagefolder.ParseLabels(v.GetStringSlice("labels")),
		ImgSize:     v.GetInt("img-size"),
		LR:          v.GetFloat64("lr"),
		Workers:     v.GetInt("workers"),
		Seed:        v.GetUint32("seed"),
		Resume:      v.GetBool("resume"),
	}
	return o, o.Validate()
}

// Validate checks the options before any data is touched.
func (o *Options) Validate() error {
	switch {
	case o.Epochs < 0:
		return errors.Errorf("--epochs must not be negative, got %d", o.Epochs)
	case o.BatchSize <= 0:
		return errors.Errorf("--batch-size must be positive, got %d", o.BatchSize)
	case o.ImgSize <= 0:
		return errors.Errorf("--img-size must be positive, got %d", o.ImgSize)
	case !(o.LR > 0):
		return errors.Errorf("--lr must be positive, got %v", o.LR)
	case len(o.Labels) == 0:
		return errors.New("--labels is empty")
	case o.SavePath == "":
		return errors.New("--save-path is empty")
	}
	if o.Workers <= 0 {
		o.Workers = device.HostCores()
	}
	_, _, err := o.Splits()
	return err
}

// Splits returns the train and val directories, which must both exist.
func (o *Options) Splits() (train, val string, err error) {
	train = filepath.Join(o.DatasetPath, "train")
	val = filepath.Join(o.DatasetPath, "val")
	for _, dir := range []string{train, val} {
		fi, err := os.Stat(dir)
		if err != nil {
			return "", "", errors.Wrap(err, "dataset")
		}
		if !fi.IsDir() {
			return "", "", errors.Errorf("dataset: %s is not a directory", dir)
		}
	}
	return train, val, nil
}
