// Package messenger delivers downloaded artifacts and notifications to
// configured chat recipients.
package messenger

import (
	"context"
	"errors"
)

// Sentinel errors for recipient resolution and backend state.
var (
	ErrRecipientNotFound = errors.New("messenger: recipient not found")
	ErrNotLoggedIn       = errors.New("messenger: not logged in")
	ErrInvalidChatID     = errors.New("messenger: invalid chat id")
)

// Recipient is a delivery target on a specific backend.
type Recipient struct {
	// ID is the backend-specific identifier: a numeric chat ID for
	// Telegram, a nickname for WeChat.
	ID string

	// Name is the display name used in logs and reports.
	Name string

	// Group marks a group chat rather than an individual contact.
	Group bool
}

// Artifact is a deliverable produced by a download cycle. Either path
// may be empty; both set means both files are delivered.
type Artifact struct {
	ChannelName string
	Title       string
	VideoPath   string
	AudioPath   string
}

// Paths returns the artifact files to deliver, audio first.
func (a Artifact) Paths() []string {
	var paths []string
	if a.AudioPath != "" {
		paths = append(paths, a.AudioPath)
	}
	if a.VideoPath != "" {
		paths = append(paths, a.VideoPath)
	}
	return paths
}

// Backend is a messaging service that can receive text and files.
type Backend interface {
	// Name identifies the backend in logs and delivery reports.
	Name() string

	// Recipients returns the configured delivery targets.
	Recipients() []Recipient

	SendMessage(ctx context.Context, r Recipient, text string) error
	SendFile(ctx context.Context, r Recipient, path string) error
}

// SendError wraps a per-recipient delivery failure with context.
type SendError struct {
	Backend   string
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return "messenger: " + e.Backend + " -> " + e.Recipient + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
