package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/neurlang/transfer/device"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func dataset(t *testing.T) string {
	root := t.TempDir()
	for _, label := range []string{"dog", "cat"} {
		c := color.RGBA{R: 200, A: 255}
		if label == "cat" {
			c = color.RGBA{B: 200, A: 255}
		}
		for i := 0; i < 10; i++ {
			writePNG(t, filepath.Join(root, "train", label, fmt.Sprintf("%d.png", i)), c)
		}
		for i := 0; i < 5; i++ {
			writePNG(t, filepath.Join(root, "val", label, fmt.Sprintf("%d.png", i)), color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	return root
}

func parse(t *testing.T, args ...string) (*Options, error) {
	t.Helper()
	cmd := newCommand()
	require.NoError(t, cmd.ParseFlags(args))
	v, err := newViper(cmd.Flags())
	require.NoError(t, err)
	return optionsFrom(v)
}

func TestDefaults(t *testing.T) {
	root := dataset(t)
	o, err := parse(t, "--dataset-path", root)
	require.NoError(t, err)
	assert.Equal(t, "weights/resnet50-19c8e357.pth", o.Weights)
	assert.Equal(t, "", o.Device)
	assert.Equal(t, 10, o.Epochs)
	assert.Equal(t, "weights/my_resnet50.pt", o.SavePath)
	assert.Equal(t, 16, o.BatchSize)
	assert.Equal(t, []string{"dog", "cat"}, o.Labels)
	assert.Equal(t, 224, o.ImgSize)
	assert.Equal(t, 0.01, o.LR)
	assert.False(t, o.Resume)
	assert.Equal(t, device.HostCores(), o.Workers)
}

func TestFlagsEnvAndConfig(t *testing.T) {
	root := dataset(t)
	t.Setenv("TRANSFER_BATCH_SIZE", "8")
	t.Setenv("TRANSFER_LABELS", "cat, dog,bird")

	o, err := parse(t, "--dataset-path", root, "--epochs", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, o.Epochs)
	assert.Equal(t, 8, o.BatchSize)
	assert.Equal(t, []string{"cat", "dog", "bird"}, o.Labels)

	o, err = parse(t, "--dataset-path", root, "--batch-size", "4", "--labels", "a,b")
	require.NoError(t, err)
	assert.Equal(t, 4, o.BatchSize, "flags win over the environment")
	assert.Equal(t, []string{"a", "b"}, o.Labels)

	config := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(config, []byte("epochs: 7\nlr: 0.5\nseed: 3\n"), 0o644))
	o, err = parse(t, "--dataset-path", root, "--config", config)
	require.NoError(t, err)
	assert.Equal(t, 7, o.Epochs)
	assert.Equal(t, 0.5, o.LR)
	assert.Equal(t, uint32(3), o.Seed)
}

func TestValidate(t *testing.T) {
	root := dataset(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "val", "cat")))
	noTrain := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(noTrain, "val"), 0o755))

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing train", args: []string{"--dataset-path", noTrain}},
		{name: "missing dataset", args: []string{"--dataset-path", filepath.Join(root, "nope")}},
		{name: "zero batch", args: []string{"--dataset-path", root, "--batch-size", "0"}},
		{name: "negative epochs", args: []string{"--dataset-path", root, "--epochs", "-1"}},
		{name: "bad lr", args: []string{"--dataset-path", root, "--lr", "0"}},
		{name: "no labels", args: []string{"--dataset-path", root, "--labels", ","}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestTrainCommand(t *testing.T) {
	root := dataset(t)
	dir := t.TempDir()
	weights := filepath.Join(dir, "backbone.pt")
	m, err := resnet.New(resnet.Config{Stem: 4, Widths: []int{4, 8}, Blocks: []int{1, 1}, Classes: 1000}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, m.Save(weights))

	save := filepath.Join(dir, "out", "my.pt")
	cmd := newCommand()
	cmd.SetArgs([]string{
		"--weights", weights,
		"--dataset-path", root,
		"--save-path", save,
		"--device", "cpu",
		"--epochs", "1",
		"--batch-size", "4",
		"--img-size", "16",
		"--workers", "2",
	})
	require.NoError(t, cmd.Execute())

	trained, err := resnet.Load(save)
	require.NoError(t, err)
	assert.Equal(t, 2, trained.Config.Classes)
	assert.Equal(t, m.Parameters(), trained.Parameters(), "the backbone stays frozen")
}

func TestTrainCommandFailsFastWithoutTrainSplit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "val"), 0o755))
	save := filepath.Join(t.TempDir(), "my.pt")
	cmd := newCommand()
	cmd.SetArgs([]string{"--dataset-path", root, "--save-path", save, "--weights", "missing.pt"})
	assert.Error(t, cmd.Execute())
	assert.NoFileExists(t, save)
}
