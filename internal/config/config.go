// Package config provides application configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/hardware"
	"github.com/abdul-hamid-achik/safekey/internal/keystore"
	"github.com/abdul-hamid-achik/safekey/internal/logging"
)

const (
	// DefaultDirName is the directory under $HOME holding config, index and wallets.
	DefaultDirName = ".safekey"
	// EnvPrefix prefixes environment overrides, e.g. SAFEKEY_LOG_LEVEL.
	EnvPrefix = "SAFEKEY"
)

// Config holds all application configuration.
type Config struct {
	Dir      string
	Keystore KeystoreConfig
	TOTP     TOTPConfig
	Hardware HardwareConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// KeystoreConfig controls how new containers are written.
type KeystoreConfig struct {
	// Scheme is used for password-protected containers and recovery copies.
	Scheme keystore.Scheme
	// Cipher is the AEAD used by the password_aead scheme.
	Cipher crypto.Algorithm
	// Recovery writes a password-only copy next to each triple-factor container.
	Recovery bool
	// File is the default container file name inside Dir.
	File string
}

// TOTPConfig holds the labels baked into derived TOTP secrets.
type TOTPConfig struct {
	Issuer  string
	Account string
}

// HardwareConfig selects fingerprint probes.
type HardwareConfig struct {
	ProbeTimeout time.Duration
	Probes       []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds metrics output settings.
type MetricsConfig struct {
	// File is a node_exporter textfile path; empty disables output.
	File string
}

// DefaultDir returns ~/.safekey, or .safekey when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// ReadFile points v at the config file and reads it. With an empty path it
// looks for config.yaml in the default directory. A missing default file is
// not an error; a missing explicit file is.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load builds a Config from v, which may already carry a config file and
// bound flags. A nil v reads only defaults and the environment.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	// Set defaults
	setDefaults(v)

	// Read from environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Dir: expandHome(v.GetString("dir")),
		Keystore: KeystoreConfig{
			Scheme:   keystore.Scheme(v.GetString("keystore.scheme")),
			Cipher:   crypto.Algorithm(v.GetString("keystore.cipher")),
			Recovery: v.GetBool("keystore.recovery"),
			File:     v.GetString("keystore.file"),
		},
		TOTP: TOTPConfig{
			Issuer:  v.GetString("totp.issuer"),
			Account: v.GetString("totp.account"),
		},
		Hardware: HardwareConfig{
			ProbeTimeout: v.GetDuration("hardware.probe_timeout"),
			Probes:       v.GetStringSlice("hardware.probes"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			File: expandHome(v.GetString("metrics.file")),
		},
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", DefaultDir())

	// Keystore defaults
	v.SetDefault("keystore.scheme", string(keystore.SchemePasswordAEAD))
	v.SetDefault("keystore.cipher", string(crypto.AlgAES256GCM))
	v.SetDefault("keystore.recovery", true)
	v.SetDefault("keystore.file", "wallet.json")

	// TOTP defaults
	v.SetDefault("totp.issuer", "SafeKey")
	v.SetDefault("totp.account", "wallet")

	// Hardware defaults
	v.SetDefault("hardware.probe_timeout", hardware.DefaultTimeout)
	v.SetDefault("hardware.probes", []string{
		hardware.ProbeCPU, hardware.ProbeSerial, hardware.ProbeMAC, hardware.ProbeDisk,
	})

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.file", "")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}

	switch c.Keystore.Scheme {
	case keystore.SchemePasswordOnly, keystore.SchemePasswordAEAD:
	default:
		return fmt.Errorf("keystore.scheme must be %s or %s, got %q",
			keystore.SchemePasswordOnly, keystore.SchemePasswordAEAD, c.Keystore.Scheme)
	}

	cipher, err := crypto.New(c.Keystore.Cipher)
	if err != nil {
		return fmt.Errorf("keystore.cipher: %w", err)
	}
	if !cipher.Authenticated() {
		return fmt.Errorf("keystore.cipher must be an AEAD cipher, got %q", c.Keystore.Cipher)
	}

	if c.Keystore.File == "" || filepath.Base(c.Keystore.File) != c.Keystore.File {
		return fmt.Errorf("keystore.file must be a plain file name, got %q", c.Keystore.File)
	}

	if c.TOTP.Issuer == "" || c.TOTP.Account == "" {
		return fmt.Errorf("totp.issuer and totp.account are required")
	}

	if c.Hardware.ProbeTimeout <= 0 {
		return fmt.Errorf("hardware.probe_timeout must be positive")
	}
	if len(c.Hardware.Probes) == 0 {
		return fmt.Errorf("hardware.probes must list at least one probe")
	}
	if _, err := hardware.SelectProbes(c.Hardware.Probes); err != nil {
		return fmt.Errorf("hardware.probes: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// IndexPath returns the bbolt index location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Dir, "index.db")
}

// WalletPath returns the default container path.
func (c *Config) WalletPath() string {
	return filepath.Join(c.Dir, c.Keystore.File)
}

// TOTPConfigPath returns where simple 2FA settings are saved.
func (c *Config) TOTPConfigPath() string {
	return filepath.Join(c.Dir, "totp.json")
}

// Cipher returns the configured AEAD cipher.
func (c *Config) Cipher() crypto.Cipher {
	cipher, err := crypto.New(c.Keystore.Cipher)
	if err != nil {
		return crypto.Default()
	}
	return cipher
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
