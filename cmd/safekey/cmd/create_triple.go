package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/question"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
	"github.com/abdul-hamid-achik/safekey/internal/vault"
)

var (
	triplePublicKey  string
	tripleOutput     string
	tripleQuestion   int
	tripleNoRecovery bool
	tripleForce      bool
)

var createTripleCmd = &cobra.Command{
	Use:   "create-triple",
	Short: "Create a triple-factor keystore bound to this machine",
	Long: `Encrypt a private key under three factors:

  1. this machine's hardware fingerprint
  2. a master password
  3. the answer to a security question

Unlocking also requires a live code from an authenticator app. The 2FA secret
is derived from the hardware fingerprint and master password, so it can be
re-derived later with 'safekey 2fa setup --derive'.

A password-only recovery keystore is written next to the main one unless
--no-recovery is given. It opens on any machine with the master password.

Examples:
  safekey create-triple --public-key 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  safekey create-triple --question 2 --no-recovery`,
	RunE: runCreateTriple,
}

func init() {
	rootCmd.AddCommand(createTripleCmd)
	createTripleCmd.Flags().StringVar(&triplePublicKey, "public-key", "", "public key stored in clear")
	createTripleCmd.Flags().StringVarP(&tripleOutput, "output", "o", "", "keystore file (default <dir>/wallet.json)")
	createTripleCmd.Flags().IntVarP(&tripleQuestion, "question", "q", 0, "security question number (1-based, prompts when 0)")
	createTripleCmd.Flags().BoolVar(&tripleNoRecovery, "no-recovery", false, "skip the password-only recovery keystore")
	createTripleCmd.Flags().BoolVarP(&tripleForce, "force", "f", false, "overwrite an existing keystore")
}

func runCreateTriple(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	path := tripleOutput
	if path == "" {
		path = a.cfg.WalletPath()
	}

	publicKey, err := readPublicKey(triplePublicKey)
	if err != nil {
		return err
	}
	privateKey, err := readPrivateKey()
	if err != nil {
		return err
	}

	// Step 1 and 2: master password and hardware.
	password, err := promptPasswordConfirm("Master password")
	if err != nil {
		return err
	}
	Info("Collecting hardware fingerprint...")
	enrollment, err := a.vault.Enroll(a.ctx, password)
	if err != nil {
		return err
	}
	defer enrollment.Destroy()

	// Step 3: security question.
	index, err := chooseQuestion(tripleQuestion)
	if err != nil {
		return err
	}
	q, _ := question.Get(index)
	answer, err := promptAnswerConfirm(q)
	if err != nil {
		return err
	}

	// 2FA provisioning, confirmed with a live code before anything is written.
	fmt.Fprintln(stdout)
	if err := enrollment.TOTP.Provision(stdout); err != nil {
		return err
	}
	code, err := confirmCode(enrollment.TOTP.Verify)
	if err != nil {
		return err
	}

	res, err := a.vault.CreateTripleFactor(a.ctx, enrollment, vault.TripleFactorRequest{
		PrivateKey:    privateKey,
		PublicKey:     publicKey,
		QuestionIndex: index,
		Answer:        answer,
		Code:          code,
		Path:          path,
		Overwrite:     tripleForce,
		Recovery:      !tripleNoRecovery && a.cfg.Keystore.Recovery,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"path":            path,
			"public_key":      res.Container.PublicKey,
			"encryption_type": res.Container.EncryptionType,
			"question_index":  index,
			"recovery_path":   res.RecoveryPath,
		})
	}

	Success("Triple-factor keystore created at %s", path)
	PrintKeyValue("Public key", res.Container.PublicKey)
	PrintKeyValue("Security question", fmt.Sprintf("%d. %s", index+1, q))
	if res.RecoveryPath != "" {
		PrintKeyValue("Recovery keystore", res.RecoveryPath)
		Warning("The recovery keystore opens with the master password alone. Store it offline.")
	}
	Warning("This keystore only opens on this machine. Hardware changes make it unrecoverable without the recovery keystore.")
	return nil
}

// chooseQuestion returns the 0-based index for a 1-based flag value, or
// prompts with the question list when n is 0.
func chooseQuestion(n int) (int, error) {
	if n == 0 {
		fmt.Fprintln(stdout, Bold("Security questions:"))
		for i, q := range question.Bank {
			fmt.Fprintf(stdout, "  %d. %s\n", i+1, q)
		}
		line, err := prompter.ReadLine(fmt.Sprintf("Choose a question [1-%d]: ", len(question.Bank)))
		if err != nil {
			return 0, err
		}
		if n, err = strconv.Atoi(strings.TrimSpace(line)); err != nil {
			return 0, fmt.Errorf("%w: %q", validation.ErrQuestionIndexRange, line)
		}
	}
	index := n - 1
	if err := validation.QuestionIndex(index, len(question.Bank)); err != nil {
		return 0, err
	}
	return index, nil
}

// confirmCode reads codes until verify accepts one, up to maxAttempts.
func confirmCode(verify func(string) bool) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		code, err := prompter.ReadLine("Enter the 6-digit code from your authenticator: ")
		if err != nil {
			return "", err
		}
		code = strings.TrimSpace(code)
		if verify(code) {
			return code, nil
		}
		Warning("Code rejected, wait for the next code and try again")
	}
	return "", vault.ErrInvalidCode
}
