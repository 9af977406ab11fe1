// Package device selects the hardware a training run shards its batches across.
package device

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kind is the device family.
type Kind int

const (
	CPU Kind = iota
	CUDA
)

func (k Kind) String() string {
	if k == CUDA {
		return "CUDA"
	}
	return "CPU"
}

// GPU describes one CUDA device.
type GPU struct {
	ID           int
	Name         string
	Memory       int64
	Major, Minor int
}

// Device is the result of Select.
type Device struct {
	Kind Kind
	GPUs []GPU

	Brand  string
	Cores  int
	AVX2   bool
	AVX512 bool
}

// enumerate lists the CUDA devices, or none when CUDA support is not built in.
var enumerate = cudaDevices

// Select resolves a device spec: "cpu", a comma separated list of CUDA ids
// such as "0" or "0,1,2,3", or "" for every CUDA device falling back to the CPU.
// With more than one CUDA device batchSize must be a multiple of their count.
func Select(spec string, batchSize int) (*Device, error) {
	spec = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(spec)), "cuda:")
	if spec == "cpu" {
		return host(), nil
	}

	gpus, err := enumerate()
	if err != nil {
		klog.V(1).Infof("CUDA enumeration failed: %v", err)
		gpus = nil
	}

	d := host()
	if spec == "" {
		if len(gpus) == 0 {
			return d, nil
		}
		d.Kind, d.GPUs = CUDA, gpus
	} else {
		ids, err := parseIDs(spec)
		if err != nil || len(gpus) == 0 {
			return nil, errors.Errorf("CUDA unavailable, invalid device %s requested", spec)
		}
		d.Kind = CUDA
		for _, id := range ids {
			if id >= len(gpus) {
				return nil, errors.Errorf("CUDA unavailable, invalid device %s requested", spec)
			}
			d.GPUs = append(d.GPUs, gpus[id])
		}
	}

	if n := len(d.GPUs); n > 1 && batchSize > 0 && batchSize%n != 0 {
		return nil, errors.Errorf("batch-size %d not multiple of GPU count %d", batchSize, n)
	}
	return d, nil
}

func parseIDs(spec string) (ids []int, err error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "device id %q", part)
		}
		if id < 0 || seen[id] {
			return nil, errors.Errorf("device id %d invalid or repeated", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// HostCores is the number of logical CPU cores reported by cpuid, or the
// runtime's CPU count when cpuid cannot tell.
func HostCores() int {
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return cores
	}
	return runtime.NumCPU()
}

func host() *Device {
	return &Device{
		Kind:   CPU,
		Brand:  cpuid.CPU.BrandName,
		Cores:  HostCores(),
		AVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		AVX512: cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
}

// Replicas is the number of data parallel shards: one per CUDA device, or one
// per logical core on the CPU.
func (d *Device) Replicas() int {
	if d.Kind == CUDA && len(d.GPUs) > 0 {
		return len(d.GPUs)
	}
	if d.Cores > 0 {
		return d.Cores
	}
	return 1
}

func (d *Device) String() string {
	if d.Kind == CUDA {
		parts := make([]string, len(d.GPUs))
		for i, g := range d.GPUs {
			parts[i] = fmt.Sprintf("CUDA:%d (%s, %dMiB, sm_%d%d)", g.ID, g.Name, g.Memory>>20, g.Major, g.Minor)
		}
		return strings.Join(parts, ", ")
	}
	var simd string
	switch {
	case d.AVX512:
		simd = ", avx512"
	case d.AVX2:
		simd = ", avx2"
	}
	brand := d.Brand
	if brand == "" {
		brand = "unknown"
	}
	return fmt.Sprintf("CPU (%s, %d cores%s)", brand, d.Cores, simd)
}
