package trainer

import (
	"os"

	"github.com/neurlang/transfer/net/resnet"
	"github.com/pkg/errors"
)

// Resume replaces the parameters of m with those saved at path. It reports
// false without error when there is no checkpoint yet.
func Resume(m *resnet.Model, path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	saved, err := resnet.Load(path)
	if err != nil {
		return false, err
	}
	if !sameArchitecture(m.Config, saved.Config) {
		return false, errors.Errorf("resume: %s has architecture %v, want %v", path, saved.Config, m.Config)
	}
	*m = *saved
	return true, nil
}

func sameArchitecture(a, b resnet.Config) bool {
	if a.Stem != b.Stem || a.Classes != b.Classes || len(a.Widths) != len(b.Widths) || len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Widths {
		if a.Widths[i] != b.Widths[i] {
			return false
		}
	}
	for i := range a.Blocks {
		if a.Blocks[i] != b.Blocks[i] {
			return false
		}
	}
	return true
}
