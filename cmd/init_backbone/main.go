package main

import (
	"flag"
	"math/rand"
	"strings"

	"github.com/neurlang/transfer/hash"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

func newCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "init_backbone [flags]",
		Short:        "write a randomly initialised backbone checkpoint",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resnet.Config{
				Stem:    v.GetInt("stem"),
				Widths:  v.GetIntSlice("widths"),
				Blocks:  v.GetIntSlice("blocks"),
				Classes: v.GetInt("classes"),
			}
			seed := hash.Seed(v.GetUint32("seed"), 0, 0)
			m, err := resnet.New(cfg, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}
			out := v.GetString("out")
			if err := m.Save(out); err != nil {
				return err
			}
			klog.Infof("wrote %d parameters to %s", m.NumParameters(), out)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("out", "weights/resnet50-19c8e357.pth", "checkpoint to write, lzw compressed when ending in .lzw")
	flags.Int("stem", 16, "stem channels")
	flags.IntSlice("widths", []int{16, 32, 64, 128}, "channels per stage")
	flags.IntSlice("blocks", []int{2, 2, 2, 2}, "residual blocks per stage")
	flags.Int("classes", 1000, "outputs of the head")
	flags.Uint32("seed", 0, "initialisation seed")
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
