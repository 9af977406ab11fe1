package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/neurlang/transfer/net/resnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 14))
	for y := 0; y < 14; y++ {
		for x := 0; x < 10; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func model(t *testing.T, dir string, classes int) string {
	m, err := resnet.New(resnet.Config{Stem: 4, Widths: []int{4}, Blocks: []int{1}, Classes: classes}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	path := filepath.Join(dir, "my.pt")
	require.NoError(t, m.Save(path))
	return path
}

func TestInfer(t *testing.T) {
	dir := t.TempDir()
	weights := model(t, dir, 3)
	images := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	writePNG(t, images[0], color.RGBA{R: 255, A: 255})
	writePNG(t, images[1], color.RGBA{G: 255, A: 255})

	var out bytes.Buffer
	cmd := newCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--weights", weights, "--labels", "x,y,z", "--img-size", "8", "--device", "cpu"}, images...))
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 3)
		assert.Equal(t, images[i], fields[0])
		assert.Contains(t, []string{"x", "y", "z"}, fields[1])
		p, err := strconv.ParseFloat(fields[2], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 1.0/3-1e-4, "the top class is at least uniform")
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestInferLabelsFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	weights := model(t, dir, 3)
	img := filepath.Join(dir, "a.png")
	writePNG(t, img, color.RGBA{B: 255, A: 255})
	t.Setenv("TRANSFER_LABELS", "x, y,z")
	t.Setenv("TRANSFER_IMG_SIZE", "8")

	var out bytes.Buffer
	cmd := newCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--weights", weights, "--device", "cpu", img})
	require.NoError(t, cmd.Execute())
	fields := strings.Split(strings.TrimSpace(out.String()), "\t")
	require.Len(t, fields, 3)
	assert.Contains(t, []string{"x", "y", "z"}, fields[1])
}

func TestInferErrors(t *testing.T) {
	dir := t.TempDir()
	weights := model(t, dir, 2)
	img := filepath.Join(dir, "a.png")
	writePNG(t, img, color.RGBA{A: 255})

	tests := []struct {
		name string
		args []string
	}{
		{name: "no images", args: []string{"--weights", weights}},
		{name: "label count", args: []string{"--weights", weights, "--labels", "a,b,c", img}},
		{name: "missing image", args: []string{"--weights", weights, filepath.Join(dir, "none.png")}},
		{name: "missing weights", args: []string{"--weights", filepath.Join(dir, "none.pt"), img}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append(tt.args, "--device", "cpu"))
			assert.Error(t, cmd.Execute())
		})
	}
}
