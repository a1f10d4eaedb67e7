package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/keystore"
	"github.com/abdul-hamid-achik/safekey/internal/vault"
)

var (
	createPublicKey string
	createOutput    string
	createScheme    string
	createForce     bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a password-protected keystore",
	Long: `Encrypt a private key under a single master password.

The private key is read from the terminal without echo. The password must be
10-64 characters and use at least three of: uppercase, lowercase, digits,
symbols.

Schemes:
  password_aead  AES-256-GCM or ChaCha20-Poly1305 (default, authenticated)
  password_only  legacy keystream cipher, readable by older tools

Examples:
  safekey create --public-key 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  safekey create --scheme password_only --output ./legacy.json`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createPublicKey, "public-key", "", "public key stored in clear")
	createCmd.Flags().StringVarP(&createOutput, "output", "o", "", "keystore file (default <dir>/wallet.json)")
	createCmd.Flags().StringVar(&createScheme, "scheme", "", "password_aead or password_only (default from config)")
	createCmd.Flags().BoolVarP(&createForce, "force", "f", false, "overwrite an existing keystore")
}

func runCreate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	scheme := a.cfg.Keystore.Scheme
	if createScheme != "" {
		if scheme, err = keystore.ParseScheme(createScheme); err != nil {
			return err
		}
	}

	path := createOutput
	if path == "" {
		path = a.cfg.WalletPath()
	}

	publicKey, err := readPublicKey(createPublicKey)
	if err != nil {
		return err
	}
	privateKey, err := readPrivateKey()
	if err != nil {
		return err
	}
	password, err := promptPasswordConfirm("Master password")
	if err != nil {
		return err
	}

	c, err := a.vault.CreatePassword(a.ctx, vault.PasswordRequest{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		Password:   password,
		Scheme:     scheme,
		Path:       path,
		Overwrite:  createForce,
	})
	if err != nil {
		return err
	}

	alg, _ := c.Cipher()
	if jsonOutput {
		return printJSON(map[string]any{
			"path":            path,
			"public_key":      c.PublicKey,
			"encryption_type": c.EncryptionType,
			"cipher":          alg,
		})
	}

	Success("Keystore created at %s", path)
	PrintKeyValue("Public key", c.PublicKey)
	PrintKeyValue("Encryption", string(c.EncryptionType)+" "+Dim("(%s)", alg))
	if c.EncryptionType == keystore.SchemePasswordOnly {
		Warning("password_only has no integrity check; prefer password_aead for new keystores")
	}
	return nil
}
