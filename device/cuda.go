//go:build cuda

package device

import "gorgonia.org/cu"

func cudaDevices() ([]GPU, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return nil, err
	}
	gpus := make([]GPU, 0, n)
	for d := 0; d < n; d++ {
		dev := cu.Device(d)
		name, err := dev.Name()
		if err != nil {
			return nil, err
		}
		mem, err := dev.TotalMem()
		if err != nil {
			return nil, err
		}
		maj, err := dev.Attribute(cu.ComputeCapabilityMajor)
		if err != nil {
			return nil, err
		}
		min, err := dev.Attribute(cu.ComputeCapabilityMinor)
		if err != nil {
			return nil, err
		}
		gpus = append(gpus, GPU{ID: d, Name: name, Memory: mem, Major: maj, Minor: min})
	}
	return gpus, nil
}
