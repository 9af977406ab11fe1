// Package imagefolder loads a root/<class>/.../<image> tree where the class
// index comes from the position of <class> in a caller supplied label list,
// not from the alphabetical order of the directories.
package imagefolder

import (
	"image"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurlang/transfer/transforms"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extensions are the file suffixes treated as images, compared case-insensitively.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Sample is one image file and its class index.
type Sample struct {
	Path  string
	Label int
}

// ImageFolder is a labeled image dataset read from disk.
type ImageFolder struct {
	Root      string
	Samples   []Sample
	Transform transforms.Transform

	classes    []string
	classToIdx map[string]int
	counts     []int
}

// New scans root for the classes in labels. A class without a directory
// contributes no samples. Directories not named in labels are ignored.
func New(root string, labels []string, transform transforms.Transform) (*ImageFolder, error) {
	if len(labels) == 0 {
		return nil, errors.New("imagefolder: no labels given")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "imagefolder: dataset root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("imagefolder: dataset root %s is not a directory", root)
	}

	f := &ImageFolder{
		Root:       root,
		Transform:  transform,
		classes:    append([]string(nil), labels...),
		classToIdx: make(map[string]int, len(labels)),
		counts:     make([]int, len(labels)),
	}
	for i, label := range labels {
		if label == "" {
			return nil, errors.Errorf("imagefolder: label %d is empty", i)
		}
		if _, dup := f.classToIdx[label]; dup {
			return nil, errors.Errorf("imagefolder: label %q listed twice", label)
		}
		f.classToIdx[label] = i
	}

	for i, label := range labels {
		dir := filepath.Join(root, label)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsImageFile(path) {
				return nil
			}
			f.Samples = append(f.Samples, Sample{Path: path, Label: i})
			f.counts[i]++
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "imagefolder: scanning %s", dir)
		}
	}
	if len(f.Samples) == 0 {
		return nil, errors.Errorf("imagefolder: found no valid image files in %s for classes %s",
			root, strings.Join(labels, ","))
	}
	return f, nil
}

// ParseLabels flattens label values that may themselves be comma separated,
// as they arrive from environment variables and config files, dropping blanks.
func ParseLabels(values []string) (labels []string) {
	for _, v := range values {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	return labels
}

// IsImageFile reports whether path has one of the image Extensions.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Len is the number of samples.
func (f *ImageFolder) Len() int {
	return len(f.Samples)
}

// Classes is the label list, index i being class i.
func (f *ImageFolder) Classes() []string {
	return append([]string(nil), f.classes...)
}

// ClassToIndex maps a class name to its label index.
func (f *ImageFolder) ClassToIndex() map[string]int {
	m := make(map[string]int, len(f.classToIdx))
	for k, v := range f.classToIdx {
		m[k] = v
	}
	return m
}

// Counts is the number of samples found per class.
func (f *ImageFolder) Counts() []int {
	return append([]int(nil), f.counts...)
}

// Get decodes sample i and applies the transform.
func (f *ImageFolder) Get(i int, rng *rand.Rand) (tensor.Tensor, int, error) {
	if i < 0 || i >= len(f.Samples) {
		return nil, 0, errors.Errorf("imagefolder: sample %d out of range [0,%d)", i, len(f.Samples))
	}
	s := f.Samples[i]
	img, err := Load(s.Path)
	if err != nil {
		return nil, 0, err
	}
	if f.Transform == nil {
		return transforms.ToTensor(img), s.Label, nil
	}
	t, err := f.Transform.Apply(img, rng)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "imagefolder: transforming %s", s.Path)
	}
	return t, s.Label, nil
}

// Load opens and decodes an image file.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "imagefolder")
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "imagefolder: decoding %s", path)
	}
	return img, nil
}
