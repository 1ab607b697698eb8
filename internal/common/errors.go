// Package common defines sentinel errors shared by the bot's storage, poll
// and routing layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Poll pipeline errors. Both are expected for individual events and are
	// skipped without retry.
	ErrCreationNotFound = errors.New("poll creation message not found")
	ErrDecryptFailed    = errors.New("poll vote decryption failed")

	// Event classification errors.
	ErrNotPollUpdate    = errors.New("message is not a poll update")
	ErrUnsupportedMedia = errors.New("message carries no supported media")
)

// IsSkippable reports whether err describes a per-event condition that must be
// logged and dropped rather than retried or surfaced.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrCreationNotFound) ||
		errors.Is(err, ErrDecryptFailed) ||
		errors.Is(err, ErrNotPollUpdate)
}
