package hardware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
	"time"
)

func fixed(value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return value, nil }
}

func failing(context.Context) (string, error) {
	return "", errors.New("probe broken")
}

func TestCollect_JoinsLabeledComponents(t *testing.T) {
	c := NewCollector(WithProbes(
		Probe{Name: ProbeCPU, Label: "CPU", Read: fixed("Intel(R) Core(TM) i7")},
		Probe{Name: ProbeSerial, Label: "SERIAL", Read: failing},
		Probe{Name: ProbeMAC, Label: "MAC", Read: fixed("aa:bb:cc:dd:ee:ff")},
		Probe{Name: ProbeDisk, Label: "DISK", Read: fixed("  1234-ABCD\n")},
	))

	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	sum := sha256.Sum256([]byte("CPU:Intel(R) Core(TM) i7|MAC:aa:bb:cc:dd:ee:ff|DISK:1234-ABCD"))
	if want := hex.EncodeToString(sum[:]); res.Fingerprint != want {
		t.Errorf("Fingerprint = %s, want %s", res.Fingerprint, want)
	}
	if len(res.Fingerprint) != 64 {
		t.Errorf("len(Fingerprint) = %d, want 64", len(res.Fingerprint))
	}
	if want := []string{"CPU", "MAC", "DISK"}; !reflect.DeepEqual(res.Components, want) {
		t.Errorf("Components = %v, want %v", res.Components, want)
	}
	if want := []string{ProbeSerial}; !reflect.DeepEqual(res.Failed, want) {
		t.Errorf("Failed = %v, want %v", res.Failed, want)
	}
}

func TestCollect_AllProbesFail(t *testing.T) {
	var failed []string
	c := NewCollector(
		WithProbes(
			Probe{Name: ProbeCPU, Label: "CPU", Read: failing},
			Probe{Name: ProbeDisk, Label: "DISK", Read: fixed("   ")},
		),
		WithFailureHook(func(name string) { failed = append(failed, name) }),
	)

	_, err := c.Collect(context.Background())
	if !errors.Is(err, ErrNoComponents) {
		t.Fatalf("Collect() error = %v, want %v", err, ErrNoComponents)
	}
	if want := []string{ProbeCPU, ProbeDisk}; !reflect.DeepEqual(failed, want) {
		t.Errorf("failure hook saw %v, want %v", failed, want)
	}
}

func TestCollect_ProbeTimeout(t *testing.T) {
	hang := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	c := NewCollector(
		WithTimeout(20*time.Millisecond),
		WithProbes(
			Probe{Name: ProbeCPU, Label: "CPU", Read: hang},
			Probe{Name: ProbeMAC, Label: "MAC", Read: fixed("aa:bb")},
		),
	)

	start := time.Now()
	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Collect() took %v, probe timeout not applied", elapsed)
	}
	if res.Fingerprint != Hash([]string{"MAC:aa:bb"}) {
		t.Error("Fingerprint should only include the MAC component")
	}
}

func TestCollect_Stable(t *testing.T) {
	c := NewCollector()

	first, err := c.Fingerprint(context.Background())
	if errors.Is(err, ErrNoComponents) {
		t.Skip("no hardware probes available in this environment")
	}
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	second, err := c.Fingerprint(context.Background())
	if err != nil {
		t.Fatalf("Fingerprint() second call error = %v", err)
	}
	if first != second {
		t.Errorf("fingerprint changed between calls: %s != %s", first, second)
	}
}

func TestStatic(t *testing.T) {
	fp, err := Static("F").Fingerprint(context.Background())
	if err != nil || fp != "F" {
		t.Errorf("Static(F).Fingerprint() = %q, %v", fp, err)
	}
	if _, err := Static("").Fingerprint(context.Background()); !errors.Is(err, ErrNoComponents) {
		t.Errorf("Static(\"\").Fingerprint() error = %v, want %v", err, ErrNoComponents)
	}
}

func TestSelectProbes(t *testing.T) {
	probes, err := SelectProbes([]string{"disk", " CPU "})
	if err != nil {
		t.Fatalf("SelectProbes() error = %v", err)
	}
	var names []string
	for _, p := range probes {
		names = append(names, p.Name)
	}
	if want := []string{ProbeCPU, ProbeDisk}; !reflect.DeepEqual(names, want) {
		t.Errorf("SelectProbes() = %v, want %v", names, want)
	}

	if _, err := SelectProbes([]string{"cpu", "gpu"}); !errors.Is(err, ErrUnknownProbe) {
		t.Errorf("SelectProbes(gpu) error = %v, want %v", err, ErrUnknownProbe)
	}
}

func TestFieldAfter(t *testing.T) {
	text := "processor\t: 0\nmodel name\t: AMD Ryzen 9\nflags\t: fpu\n"
	if got := fieldAfter(text, "model name", ":"); got != "AMD Ryzen 9" {
		t.Errorf("fieldAfter() = %q", got)
	}

	ioreg := `    "IOPlatformSerialNumber" = "C02XYZ123"`
	if got := fieldAfter(ioreg, "IOPlatformSerialNumber", "="); got != "C02XYZ123" {
		t.Errorf("fieldAfter() = %q", got)
	}

	if got := fieldAfter(text, "missing", ":"); got != "" {
		t.Errorf("fieldAfter(missing) = %q, want empty", got)
	}
}

func TestIsVirtual(t *testing.T) {
	for name, want := range map[string]bool{
		"eth0":       false,
		"en0":        false,
		"wlp3s0":     false,
		"docker0":    true,
		"veth1a2b":   true,
		"br-12ab":    true,
		"utun3":      true,
		"tailscale0": false,
	} {
		if got := isVirtual(name); got != want {
			t.Errorf("isVirtual(%q) = %v, want %v", name, got, want)
		}
	}
}
