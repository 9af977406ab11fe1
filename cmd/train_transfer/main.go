package main

import (
	"flag"
	"math/rand"

	"github.com/neurlang/transfer/datasets"
	"github.com/neurlang/transfer/datasets/imagefolder"
	"github.com/neurlang/transfer/device"
	"github.com/neurlang/transfer/hash"
	"github.com/neurlang/transfer/learning"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/neurlang/transfer/trainer"
	"github.com/neurlang/transfer/transforms"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "train_transfer [flags]",
		Short:        "train a classifier head on top of a frozen backbone",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			o, err := optionsFrom(v)
			if err != nil {
				return err
			}
			return train(o)
		},
	}
	addFlags(cmd.Flags())
	return cmd
}

func train(o *Options) error {
	dev, err := device.Select(o.Device, o.BatchSize)
	if err != nil {
		return err
	}
	klog.Infof("Using %v", dev)

	trainDir, valDir, err := o.Splits()
	if err != nil {
		return err
	}
	trainSet, err := imagefolder.New(trainDir, o.Labels, transforms.Train(o.ImgSize))
	if err != nil {
		return err
	}
	valSet, err := imagefolder.New(valDir, o.Labels, transforms.Val(o.ImgSize))
	if err != nil {
		return err
	}
	klog.Infof("using %d images for training, %d images for validation.", trainSet.Len(), valSet.Len())
	trainLoader, err := datasets.NewLoader(trainSet, o.BatchSize, true, o.Workers, o.Seed)
	if err != nil {
		return err
	}
	valLoader, err := datasets.NewLoader(valSet, o.BatchSize, false, o.Workers, o.Seed)
	if err != nil {
		return err
	}

	model, err := resnet.Load(o.Weights)
	if err != nil {
		return err
	}
	head := rand.New(rand.NewSource(hash.Seed(o.Seed, ^uint32(0), ^uint32(0))))
	if err := model.ReplaceHead(len(o.Labels), head); err != nil {
		return err
	}
	if o.Resume {
		ok, err := trainer.Resume(model, o.SavePath)
		if err != nil {
			return err
		}
		if ok {
			klog.Infof("resumed from %s", o.SavePath)
		}
	}
	klog.V(1).Info(model.String())

	sgd, err := learning.NewSGD(o.LR)
	if err != nil {
		return err
	}
	t := &trainer.Trainer{
		Model:     model,
		Train:     trainLoader,
		Val:       valLoader,
		Optimizer: sgd,
		Epochs:    o.Epochs,
		SavePath:  o.SavePath,
		Replicas:  dev.Replicas(),
	}
	_, err = t.Run()
	return err
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
