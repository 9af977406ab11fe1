package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/neurlang/transfer/datasets/imagefolder"
	"github.com/neurlang/transfer/device"
	"github.com/neurlang/transfer/inference"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

func newCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "infer_transfer [flags] image...",
		Short:        "classify images with a trained model",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, paths []string) error {
			labels := imagefolder.ParseLabels(v.GetStringSlice("labels"))
			size := v.GetInt("img-size")
			if size <= 0 {
				return errors.Errorf("--img-size must be positive, got %d", size)
			}
			dev, err := device.Select(v.GetString("device"), 0)
			if err != nil {
				return err
			}
			klog.V(1).Infof("Using %v", dev)

			m, err := resnet.Load(v.GetString("weights"))
			if err != nil {
				return err
			}
			if m.Config.Classes != len(labels) {
				return errors.Errorf("model has %d classes but %d labels were given", m.Config.Classes, len(labels))
			}

			predictions, err := inference.Classify(m, paths, size, dev.Replicas())
			if err != nil {
				return err
			}
			for _, p := range predictions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.4f\n", p.Path, labels[p.Class], p.Probability)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("weights", "weights/my_resnet50.pt", "trained model checkpoint")
	flags.StringSlice("labels", []string{"dog", "cat"}, "class labels, in class index order")
	flags.Int("img-size", 224, "center crop size")
	flags.String("device", "", "CUDA devices to use, 0 or 0,1,2,3, or cpu")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("TRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	cmd := newCommand()
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	if err := cmd.Execute(); err != nil {
		klog.Flush()
		klog.Fatalf("%v", err)
	}
}
