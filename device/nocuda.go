//go:build !cuda

package device

func cudaDevices() ([]GPU, error) {
	return nil, nil
}
