package chat

import "errors"

// Error taxonomy for the messaging core. Callers match with errors.Is; the
// HTTP and socket layers map these to status codes and error frames.
var (
	// ErrAccessDenied means the user holds no membership for the channel.
	ErrAccessDenied = errors.New("chat: access denied")

	// ErrUserMuted means the author is under an active mute sanction.
	ErrUserMuted = errors.New("chat: user is muted")

	// ErrChatDisabled means the channel is disabled and the user is not an
	// administrator.
	ErrChatDisabled = errors.New("chat: chat is disabled")

	// ErrChannelLocked means the channel is locked and the user is not an
	// administrator.
	ErrChannelLocked = errors.New("chat: channel is locked")

	// ErrNotFound means the referenced channel, message or user does not exist.
	ErrNotFound = errors.New("chat: not found")

	// ErrInvalidInput means the request payload failed validation (empty or
	// oversized body, reply target in a different channel, bad emoji).
	ErrInvalidInput = errors.New("chat: invalid input")
)

// ChannelError attaches the channel a sanction applies to, so the HTTP and
// socket layers can report which channel rejected the write. errors.Is
// matching sees through it to the underlying sentinel.
type ChannelError struct {
	ChannelID int64
	Err       error
}

func (e *ChannelError) Error() string { return e.Err.Error() }

func (e *ChannelError) Unwrap() error { return e.Err }
