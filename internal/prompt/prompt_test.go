package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestScripted(t *testing.T) {
	s := &Scripted{Answers: []string{"one", "two"}}

	if v, err := s.ReadSecret("a: "); err != nil || v != "one" {
		t.Fatalf("ReadSecret = %q, %v", v, err)
	}
	if v, err := s.ReadLine("b: "); err != nil || v != "two" {
		t.Fatalf("ReadLine = %q, %v", v, err)
	}
	if _, err := s.ReadLine("c: "); !errors.Is(err, ErrNoInput) {
		t.Fatalf("exhausted err = %v, want ErrNoInput", err)
	}
	if len(s.Prompts) != 3 || s.Prompts[2] != "c: " {
		t.Fatalf("Prompts = %q", s.Prompts)
	}
}

func TestFactors(t *testing.T) {
	ctx := context.Background()
	s := &Scripted{Answers: []string{"Str0ng!Passw0rd", "blue", " 123456 "}}
	f := Factors{P: s}

	pw, err := f.MasterPassword(ctx)
	if err != nil || pw != "Str0ng!Passw0rd" {
		t.Fatalf("MasterPassword = %q, %v", pw, err)
	}
	answer, err := f.SecurityAnswer(ctx, 1, "In which city were you born?")
	if err != nil || answer != "blue" {
		t.Fatalf("SecurityAnswer = %q, %v", answer, err)
	}
	if !strings.Contains(s.Prompts[1], "In which city were you born?") {
		t.Errorf("question not shown: %q", s.Prompts[1])
	}
	code, err := f.TOTPCode(ctx)
	if err != nil || code != "123456" {
		t.Fatalf("TOTPCode = %q, %v", code, err)
	}
}

func TestFactors_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := Factors{P: &Scripted{Answers: []string{"x"}}}
	if _, err := f.MasterPassword(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
