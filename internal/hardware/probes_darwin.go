//go:build darwin

package hardware

import (
	"context"

	"golang.org/x/sys/unix"
)

func readCPU(context.Context) (string, error) {
	return unix.Sysctl("machdep.cpu.brand_string")
}

func readSerial(ctx context.Context) (string, error) {
	out, err := runCommand(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", err
	}
	if serial := fieldAfter(out, "IOPlatformSerialNumber", "="); serial != "" {
		return serial, nil
	}
	return "", ErrUnavailable
}

func readDisk(ctx context.Context) (string, error) {
	out, err := runCommand(ctx, "diskutil", "info", "/")
	if err != nil {
		return "", err
	}
	for _, key := range []string{"Volume UUID", "Disk / Partition UUID"} {
		if id := fieldAfter(out, key, ":"); id != "" {
			return id, nil
		}
	}
	return "", ErrUnavailable
}
