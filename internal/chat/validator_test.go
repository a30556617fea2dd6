package chat

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBody(t *testing.T) {
	got, err := ValidateBody("  hello  ", 0)
	if err != nil {
		t.Fatalf("ValidateBody() error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected trimmed body, got %q", got)
	}
}

func TestValidateBody_Empty(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := ValidateBody(body, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateBody(%q) should fail with ErrInvalidInput, got %v", body, err)
		}
	}
}

func TestValidateBody_CharLimit(t *testing.T) {
	if _, err := ValidateBody(strings.Repeat("a", 101), 100); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput over the char limit, got %v", err)
	}
	if _, err := ValidateBody(strings.Repeat("a", 100), 100); err != nil {
		t.Errorf("body at the limit should pass, got %v", err)
	}
	// Multibyte runes count as characters, not bytes.
	if _, err := ValidateBody(strings.Repeat("你", 100), 100); err != nil {
		t.Errorf("100 multibyte runes should pass a 100-char limit, got %v", err)
	}
}

func TestValidateBody_ByteCap(t *testing.T) {
	if _, err := ValidateBody(strings.Repeat("你", 4000), 10000); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput over the byte cap, got %v", err)
	}
}

func TestValidateEmoji(t *testing.T) {
	if err := ValidateEmoji("👍"); err != nil {
		t.Errorf("plain emoji should pass, got %v", err)
	}
	if err := ValidateEmoji(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty emoji should fail, got %v", err)
	}
	if err := ValidateEmoji(strings.Repeat("x", MaxEmojiChars+1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("oversized emoji should fail, got %v", err)
	}
}
