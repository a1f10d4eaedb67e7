// Package prompt reads passwords, answers and codes from the user.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before a value was read.
var ErrNoInput = errors.New("no input")

// Prompter reads values from the user.
type Prompter interface {
	// ReadSecret reads a value without echoing it.
	ReadSecret(prompt string) (string, error)
	// ReadLine reads one trimmed line.
	ReadLine(prompt string) (string, error)
}

// Terminal prompts on out and reads from in. Secrets are read with echo
// disabled when in is a terminal.
type Terminal struct {
	in  *os.File
	out io.Writer
	r   *bufio.Reader
}

// NewTerminal returns a prompter on stdin that writes prompts to stderr,
// keeping stdout clean for command output.
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr, r: bufio.NewReader(os.Stdin)}
}

// ReadSecret implements Prompter.
func (t *Terminal) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return t.readLine()
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(b), nil
}

// ReadLine implements Prompter.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	return t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Scripted replays fixed answers in order. It is used by tests and for
// piping values in non-interactive runs.
type Scripted struct {
	Answers []string
	// Prompts records every prompt shown.
	Prompts []string
}

// ReadSecret implements Prompter.
func (s *Scripted) ReadSecret(prompt string) (string, error) {
	return s.next(prompt)
}

// ReadLine implements Prompter.
func (s *Scripted) ReadLine(prompt string) (string, error) {
	return s.next(prompt)
}

func (s *Scripted) next(prompt string) (string, error) {
	s.Prompts = append(s.Prompts, prompt)
	if len(s.Answers) == 0 {
		return "", ErrNoInput
	}
	v := s.Answers[0]
	s.Answers = s.Answers[1:]
	return v, nil
}

// Factors asks for unlock factors through a Prompter.
type Factors struct {
	P Prompter
}

// MasterPassword prompts for the master password.
func (f Factors) MasterPassword(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.P.ReadSecret("Master password: ")
}

// SecurityAnswer shows the stored question and reads the answer hidden.
func (f Factors) SecurityAnswer(ctx context.Context, index int, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.P.ReadSecret(fmt.Sprintf("Security question %d: %s\nAnswer: ", index+1, question))
}

// TOTPCode reads the current authenticator code.
func (f Factors) TOTPCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code, err := f.P.ReadLine("2FA code: ")
	return strings.TrimSpace(code), err
}
