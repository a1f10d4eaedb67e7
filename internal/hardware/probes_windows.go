//go:build windows

package hardware

import (
	"context"
	"strings"
)

// wmicValue runs "wmic <class> get <prop>" and returns the first value row.
func wmicValue(ctx context.Context, class, prop string) (string, error) {
	out, err := runCommand(ctx, "wmic", class, "get", prop)
	if err != nil {
		return "", err
	}
	lines := strings.Split(out, "\n")
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", ErrUnavailable
}

func readCPU(ctx context.Context) (string, error) {
	return wmicValue(ctx, "cpu", "name")
}

func readSerial(ctx context.Context) (string, error) {
	return wmicValue(ctx, "bios", "serialnumber")
}

func readDisk(ctx context.Context) (string, error) {
	return wmicValue(ctx, "diskdrive", "serialnumber")
}
