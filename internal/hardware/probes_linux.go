//go:build linux

package hardware

import (
	"context"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func readCPU(context.Context) (string, error) {
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		if name := fieldAfter(string(data), "model name", ":"); name != "" {
			return name, nil
		}
	}

	// Some ARM kernels have no "model name"; fall back to the machine type.
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", err
	}
	if m := unix.ByteSliceToString(u.Machine[:]); m != "" {
		return m, nil
	}
	return "", ErrUnavailable
}

var placeholderSerials = map[string]bool{
	"":                       true,
	"0":                      true,
	"none":                   true,
	"default string":         true,
	"to be filled by o.e.m.": true,
	"system serial number":   true,
}

func readSerial(context.Context) (string, error) {
	for _, path := range []string{
		"/sys/class/dmi/id/product_serial",
		"/sys/class/dmi/id/board_serial",
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		serial := strings.TrimSpace(string(data))
		if !placeholderSerials[strings.ToLower(serial)] {
			return serial, nil
		}
	}
	return "", ErrUnavailable
}

func readDisk(ctx context.Context) (string, error) {
	if id, err := runCommand(ctx, "findmnt", "-n", "-o", "UUID", "/"); err == nil && id != "" {
		return id, nil
	}
	out, err := runCommand(ctx, "lsblk", "-n", "-o", "UUID")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", ErrUnavailable
}
