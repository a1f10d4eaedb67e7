// Package hardware collects a best-effort machine fingerprint.
//
// Each probe reads one hardware property (CPU model, system serial, primary
// MAC address, boot volume id). Successful readings are labeled, joined with
// "|" and hashed with SHA-256. Collection only fails when every probe fails.
//
// The fingerprint is only as stable as its probes. The MAC probe in particular
// changes when network interfaces are added, removed or renamed, and any key
// derived from the old fingerprint becomes unrecoverable on that machine.
package hardware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds each probe, including any subprocess it spawns.
const DefaultTimeout = 5 * time.Second

// Probe names, in collection order.
const (
	ProbeCPU    = "cpu"
	ProbeSerial = "serial"
	ProbeMAC    = "mac"
	ProbeDisk   = "disk"
)

var (
	// ErrNoComponents is returned when no probe produced a value.
	ErrNoComponents = errors.New("unable to collect any hardware component")

	// ErrUnknownProbe is returned when selecting a probe name that does not exist.
	ErrUnknownProbe = errors.New("unknown hardware probe")

	// ErrUnavailable is returned by a probe that found nothing usable.
	ErrUnavailable = errors.New("hardware property unavailable")
)

// Probe reads a single hardware property.
type Probe struct {
	// Name is the configuration name, e.g. "cpu".
	Name string
	// Label prefixes the value in the fingerprint input, e.g. "CPU".
	Label string
	// Read returns the trimmed property value.
	Read func(ctx context.Context) (string, error)
}

// Source yields a hardware fingerprint.
type Source interface {
	Fingerprint(ctx context.Context) (string, error)
}

// Static is a fixed fingerprint, for tests and for replaying a known value.
type Static string

// Fingerprint returns the static value.
func (s Static) Fingerprint(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoComponents
	}
	return string(s), nil
}

// Result is the outcome of one collection.
type Result struct {
	// Fingerprint is the 64-character hex SHA-256 digest.
	Fingerprint string
	// Components lists the labels that contributed, in order.
	Components []string
	// Failed lists the probe names that failed.
	Failed []string
}

// Collector runs probes and hashes their output.
type Collector struct {
	probes    []Probe
	timeout   time.Duration
	logger    *slog.Logger
	onFailure func(probe string)
}

// Option configures a Collector.
type Option func(*Collector)

// WithProbes replaces the probe list.
func WithProbes(probes ...Probe) Option {
	return func(c *Collector) { c.probes = probes }
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithFailureHook registers a callback invoked with the name of every failed probe.
func WithFailureHook(fn func(probe string)) Option {
	return func(c *Collector) { c.onFailure = fn }
}

// NewCollector creates a collector using the platform probes by default.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		probes:  DefaultProbes(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs every probe in order and hashes the successful readings.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	res := &Result{}
	var parts []string

	for _, p := range c.probes {
		value, err := c.run(ctx, p)
		if err != nil {
			c.logger.Debug("hardware probe failed", "probe", p.Name, "error", err)
			res.Failed = append(res.Failed, p.Name)
			if c.onFailure != nil {
				c.onFailure(p.Name)
			}
			continue
		}
		parts = append(parts, p.Label+":"+value)
		res.Components = append(res.Components, p.Label)
	}

	if len(parts) == 0 {
		return nil, ErrNoComponents
	}

	res.Fingerprint = Hash(parts)
	c.logger.Debug("hardware fingerprint collected", "components", strings.Join(res.Components, ","))
	return res, nil
}

// Fingerprint implements Source.
func (c *Collector) Fingerprint(ctx context.Context) (string, error) {
	res, err := c.Collect(ctx)
	if err != nil {
		return "", err
	}
	return res.Fingerprint, nil
}

func (c *Collector) run(ctx context.Context, p Probe) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := p.Read(ctx)
	if err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrUnavailable
	}
	return value, nil
}

// Hash joins labeled components with "|" and returns the hex SHA-256 digest.
func Hash(components []string) string {
	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])
}

// DefaultProbes returns the probes available on this platform.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: ProbeCPU, Label: "CPU", Read: readCPU},
		{Name: ProbeSerial, Label: "SERIAL", Read: readSerial},
		{Name: ProbeMAC, Label: "MAC", Read: readMAC},
		{Name: ProbeDisk, Label: "DISK", Read: readDisk},
	}
}

// SelectProbes returns the default probes with the given names, in default order.
func SelectProbes(names []string) ([]Probe, error) {
	all := DefaultProbes()
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if !knownProbe(all, n) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProbe, n)
		}
		wanted[n] = true
	}

	var out []Probe
	for _, p := range all {
		if wanted[p.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}

func knownProbe(probes []Probe, name string) bool {
	for _, p := range probes {
		if p.Name == name {
			return true
		}
	}
	return false
}

// virtualPrefixes are interface names skipped by the MAC probe.
var virtualPrefixes = []string{"docker", "veth", "br-", "virbr", "vmnet", "vboxnet", "utun", "awdl", "llw", "bridge", "tun", "tap"}

// readMAC returns the hardware address of the first physical-looking,
// non-loopback interface in index order.
func readMAC(context.Context) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		if isVirtual(iface.Name) {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", ErrUnavailable
}

func isVirtual(name string) bool {
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// runCommand runs an OS query and returns its trimmed stdout.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// fieldAfter returns the trimmed text after sep on the first line containing key.
func fieldAfter(text, key, sep string) string {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, key) {
			continue
		}
		if _, v, ok := strings.Cut(line, sep); ok {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}
