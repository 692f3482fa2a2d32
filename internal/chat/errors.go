package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMatched means there is no active match between the two users.
	// No provider call is made when this is returned.
	ErrNotMatched = errors.New("users are not matched")

	// ErrNotAuthenticated means the local user has no session or no
	// account row.
	ErrNotAuthenticated = errors.New("user not logged in")

	// ErrUserNotFound means the counterpart's display info is missing.
	ErrUserNotFound = errors.New("user not found")

	// ErrChannelExists is what a Provider returns from CreateChannel when
	// the channel is already there. The resolver treats it as success.
	ErrChannelExists = errors.New("channel already exists")

	ErrNotReady     = errors.New("chat session is not ready")
	ErrEmptyMessage = errors.New("message text is empty")
)

// ProviderError wraps a failed call to the chat provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("chat provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SendError is returned by Session.Send. Text is the composer input as
// submitted, so the caller can put it back for a retry.
type SendError struct {
	Text string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Where a view goes when session setup fails.
const (
	RedirectConversations = "/chat"
	RedirectSignIn        = "/auth"
)

// RedirectFor maps a setup error to the page the client should go to.
func RedirectFor(err error) string {
	if errors.Is(err, ErrNotAuthenticated) {
		return RedirectSignIn
	}
	return RedirectConversations
}
