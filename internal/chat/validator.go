package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxBodyChars is the default character limit for message bodies.
	DefaultMaxBodyChars = 2000

	// MaxBodyBytes caps the raw byte size of a body regardless of the
	// configured character limit.
	MaxBodyBytes = 8192

	// MaxEmojiChars bounds an emoji reaction value. Real emoji are a handful
	// of runes; anything longer is not a reaction.
	MaxEmojiChars = 16
)

// ValidateBody trims the message body and checks it against content
// requirements. It returns the trimmed body, or ErrInvalidInput describing
// the violation.
func ValidateBody(body string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxBodyChars
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", fmt.Errorf("%w: message body is empty", ErrInvalidInput)
	}
	if len(trimmed) > MaxBodyBytes {
		return "", fmt.Errorf("%w: message body exceeds %d byte limit", ErrInvalidInput, MaxBodyBytes)
	}
	if utf8.RuneCountInString(trimmed) > maxChars {
		return "", fmt.Errorf("%w: message body exceeds %d character limit", ErrInvalidInput, maxChars)
	}
	if !utf8.ValidString(trimmed) {
		return "", fmt.Errorf("%w: message body contains invalid UTF-8", ErrInvalidInput)
	}
	return trimmed, nil
}

// ValidateEmoji checks that an emoji reaction value is present and plausibly
// sized.
func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiChars {
		return fmt.Errorf("%w: emoji exceeds %d character limit", ErrInvalidInput, MaxEmojiChars)
	}
	if !utf8.ValidString(emoji) {
		return fmt.Errorf("%w: emoji contains invalid UTF-8", ErrInvalidInput)
	}
	return nil
}
