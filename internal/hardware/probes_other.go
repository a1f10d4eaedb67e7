//go:build !linux && !darwin && !windows

package hardware

import (
	"context"
	"runtime"
)

func readCPU(context.Context) (string, error) {
	return runtime.GOOS + "/" + runtime.GOARCH, nil
}

func readSerial(context.Context) (string, error) {
	return "", ErrUnavailable
}

func readDisk(context.Context) (string, error) {
	return "", ErrUnavailable
}
