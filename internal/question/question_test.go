package question

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

func TestHashAnswer(t *testing.T) {
	hash := HashAnswer("Beijing")

	for _, variant := range []string{"beijing", " BEIJING ", "Beijing\n"} {
		if got := HashAnswer(variant); got != hash {
			t.Errorf("HashAnswer(%q) = %s, want %s", variant, got, hash)
		}
	}

	if HashAnswer("Shanghai") == hash {
		t.Error("HashAnswer() same hash for different answers")
	}
	if len(hash) != 64 {
		t.Errorf("len(HashAnswer()) = %d, want 64", len(hash))
	}
}

func TestVerifyAnswer(t *testing.T) {
	hash := HashAnswer("Beijing")

	tests := []struct {
		answer string
		want   bool
	}{
		{"Beijing", true},
		{"beijing", true},
		{" BEIJING ", true},
		{"Shanghai", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := VerifyAnswer(tt.answer, hash); got != tt.want {
			t.Errorf("VerifyAnswer(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	if len(Bank) != 8 {
		t.Fatalf("len(Bank) = %d, want 8", len(Bank))
	}

	q, err := Get(1)
	if err != nil {
		t.Fatalf("Get(1) error = %v", err)
	}
	if q != Bank[1] {
		t.Errorf("Get(1) = %q, want %q", q, Bank[1])
	}

	for _, idx := range []int{-1, len(Bank)} {
		if _, err := Get(idx); !errors.Is(err, validation.ErrQuestionIndexRange) {
			t.Errorf("Get(%d) error = %v, want ErrQuestionIndexRange", idx, err)
		}
	}
}

func TestSelect(t *testing.T) {
	sel, err := Select(3, "  The Matrix ")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sel.Index != 3 || sel.Question != Bank[3] {
		t.Errorf("Select() = %+v", sel)
	}
	if sel.Answer != "the matrix" {
		t.Errorf("Answer = %q, want %q", sel.Answer, "the matrix")
	}

	if _, err := Select(0, "   "); !errors.Is(err, validation.ErrAnswerEmpty) {
		t.Errorf("Select(blank) error = %v, want %v", err, validation.ErrAnswerEmpty)
	}
	if _, err := Select(99, "x"); !errors.Is(err, validation.ErrQuestionIndexRange) {
		t.Errorf("Select(99) error = %v, want ErrQuestionIndexRange", err)
	}
}
