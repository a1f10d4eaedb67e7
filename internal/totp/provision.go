package totp

import (
	"fmt"
	"io"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// URI returns the otpauth:// provisioning URI for the config.
func (m *Manager) URI() (string, error) {
	secret, err := decodeSecret(m.cfg.Secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Issuer,
		AccountName: m.cfg.Account,
		Period:      uint(m.cfg.Step),
		Secret:      secret,
		Digits:      otp.Digits(m.cfg.Digits),
		Algorithm:   m.alg,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning URI: %w", err)
	}
	return key.URL(), nil
}

// QRCode renders the provisioning URI as a terminal QR code.
func (m *Manager) QRCode() (string, error) {
	uri, err := m.URI()
	if err != nil {
		return "", err
	}
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("QR code generation failed: %w", err)
	}
	return q.ToSmallString(false), nil
}

// ManualSetupInfo returns the fields needed to enroll without scanning.
func (m *Manager) ManualSetupInfo() string {
	return fmt.Sprintf("Account:   %s\nIssuer:    %s\nSecret:    %s\nTime step: %d seconds\nDigits:    %d\n",
		m.cfg.Account, m.cfg.Issuer, m.cfg.Secret, m.cfg.Step, m.cfg.Digits)
}

// Provision writes a scannable QR code to w, falling back to the manual setup
// fields when rendering fails.
func (m *Manager) Provision(w io.Writer) error {
	qr, err := m.QRCode()
	if err != nil {
		if _, werr := fmt.Fprintf(w, "QR code unavailable (%v); enter these values manually:\n\n%s", err, m.ManualSetupInfo()); werr != nil {
			return werr
		}
		return nil
	}

	var b strings.Builder
	b.WriteString("Scan this QR code with your authenticator app:\n\n")
	b.WriteString(qr)
	b.WriteString("\nOr enter these values manually:\n\n")
	b.WriteString(m.ManualSetupInfo())
	_, err = io.WriteString(w, b.String())
	return err
}
