package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/safekey/internal/config"
	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/hardware"
	"github.com/abdul-hamid-achik/safekey/internal/logging"
	"github.com/abdul-hamid-achik/safekey/internal/metrics"
	"github.com/abdul-hamid-achik/safekey/internal/prompt"
	"github.com/abdul-hamid-achik/safekey/internal/question"
	"github.com/abdul-hamid-achik/safekey/internal/store"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
	"github.com/abdul-hamid-achik/safekey/internal/vault"
)

// maxAttempts bounds interactive re-prompts for confirmation mismatches.
const maxAttempts = 3

var (
	// prompter reads user input. Tests replace it with a scripted one.
	prompter prompt.Prompter = prompt.NewTerminal()

	// fingerprintSource overrides hardware probing when set.
	fingerprintSource hardware.Source
)

// app is the per-invocation wiring of config, index, metrics and vault.
type app struct {
	ctx       context.Context
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.BoltStore
	metrics   *metrics.Metrics
	collector *hardware.Collector
	vault     *vault.Vault
}

// newApp loads configuration and opens the local index.
func newApp(ctx context.Context) (*app, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Log.Level
	if isVerbose() {
		level = "debug"
	}
	logger, err := logging.Setup(level, cfg.Log.Format, stderr)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.NewBoltStore(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	m := metrics.New()
	probes, err := hardware.SelectProbes(cfg.Hardware.Probes)
	if err != nil {
		s.Close()
		return nil, err
	}
	collector := hardware.NewCollector(
		hardware.WithProbes(probes...),
		hardware.WithTimeout(cfg.Hardware.ProbeTimeout),
		hardware.WithLogger(logger),
		hardware.WithFailureHook(m.ObserveProbeFailure),
	)

	var source hardware.Source = collector
	if fingerprintSource != nil {
		source = fingerprintSource
	}

	v := vault.New(
		vault.WithFingerprintSource(source),
		vault.WithCipher(cfg.Cipher()),
		vault.WithPasswordScheme(cfg.Keystore.Scheme),
		vault.WithIssuer(cfg.TOTP.Issuer),
		vault.WithAccount(cfg.TOTP.Account),
		vault.WithLogger(logger),
		vault.WithStore(s),
		vault.WithMetrics(m),
	)

	if ctx == nil {
		ctx = context.Background()
	}
	return &app{
		ctx:       logging.WithOperationID(ctx),
		cfg:       cfg,
		logger:    logger,
		store:     s,
		metrics:   m,
		collector: collector,
		vault:     v,
	}, nil
}

// Close flushes metrics and closes the index.
func (a *app) Close() error {
	if path := a.cfg.Metrics.File; path != "" {
		a.metrics.CollectStore(a.store)
		if err := a.metrics.WriteToTextfile(path); err != nil {
			a.logger.Warn("failed to write metrics", "path", path, "error", err)
		}
	}
	return a.store.Close()
}

// resolveWallet returns the keystore path for arg, which may be a file path
// or an indexed public key. With no arg it uses the default wallet, then the
// configured file name.
func (a *app) resolveWallet(arg string) (string, error) {
	if arg != "" {
		if fsutil.Exists(arg) {
			return arg, nil
		}
		rec, err := a.store.GetWallet(arg)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("no keystore file or indexed wallet named %q", arg)
			}
			return "", err
		}
		return rec.Path, nil
	}

	if pk, err := a.store.GetConfig(store.ConfigDefaultWallet); err == nil {
		if rec, err := a.store.GetWallet(pk); err == nil && fsutil.Exists(rec.Path) {
			return rec.Path, nil
		}
	}
	return a.cfg.WalletPath(), nil
}

// promptPasswordConfirm asks for a new password twice. Policy failures and
// mismatches are re-prompted up to maxAttempts times.
func promptPasswordConfirm(label string) (string, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		pass, err := prompter.ReadSecret(label + ": ")
		if err != nil {
			return "", err
		}
		if err := validation.Password(pass); err != nil {
			Warning("%v", err)
			lastErr = err
			continue
		}
		confirm, err := prompter.ReadSecret("Confirm " + label + ": ")
		if err != nil {
			return "", err
		}
		if pass != confirm {
			Warning("Passwords do not match, try again")
			lastErr = vault.ErrConfirmationMismatch
			continue
		}
		return pass, nil
	}
	return "", lastErr
}

// promptAnswerConfirm asks for the security answer twice, comparing the
// normalized forms.
func promptAnswerConfirm(q string) (string, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		answer, err := prompter.ReadSecret(q + "\nAnswer: ")
		if err != nil {
			return "", err
		}
		if err := validation.Answer(answer); err != nil {
			Warning("%v", err)
			lastErr = err
			continue
		}
		confirm, err := prompter.ReadSecret("Confirm answer: ")
		if err != nil {
			return "", err
		}
		if !question.VerifyAnswer(confirm, question.HashAnswer(answer)) {
			Warning("Answers do not match, try again")
			lastErr = vault.ErrConfirmationMismatch
			continue
		}
		return answer, nil
	}
	return "", lastErr
}

// readPrivateKey prompts for the raw key string to protect.
func readPrivateKey() (string, error) {
	pk, err := prompter.ReadSecret("Private key: ")
	if err != nil {
		return "", err
	}
	if err := validation.PrivateKey(pk); err != nil {
		return "", err
	}
	return pk, nil
}

// readPublicKey returns flagValue or prompts for the public key.
func readPublicKey(flagValue string) (string, error) {
	pk := flagValue
	if pk == "" {
		var err error
		if pk, err = prompter.ReadLine("Public key: "); err != nil {
			return "", err
		}
	}
	if err := validation.PublicKey(pk); err != nil {
		return "", err
	}
	return pk, nil
}
