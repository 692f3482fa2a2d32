package chat

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionOpener is satisfied by *Synchronizer.
type SessionOpener interface {
	Open(ctx context.Context, req OpenRequest) (*Session, error)
}

// View holds the one session a conversation screen is showing. Mounting
// a new counterpart always disconnects the previous session first, so
// switching conversations never leaves a live subscription behind.
type View struct {
	opener      SessionOpener
	localUserID uuid.UUID
	current     *Session
	logger      *zap.Logger
}

func NewView(opener SessionOpener, localUserID uuid.UUID, logger *zap.Logger) *View {
	return &View{opener: opener, localUserID: localUserID, logger: logger}
}

// Mount closes the current session, if any, and opens one for counterpartID.
func (v *View) Mount(ctx context.Context, counterpartID uuid.UUID, progress func(State)) (*Session, error) {
	v.Unmount()

	sess, err := v.opener.Open(ctx, OpenRequest{
		LocalUserID:   v.localUserID,
		CounterpartID: counterpartID,
		Progress:      progress,
	})
	if err != nil {
		return nil, err
	}
	v.current = sess
	return sess, nil
}

// Current returns the mounted session or nil.
func (v *View) Current() *Session { return v.current }

// Unmount closes the mounted session.
func (v *View) Unmount() {
	if v.current == nil {
		return
	}
	if err := v.current.Close(); err != nil {
		v.logger.Warn("failed to release chat session", zap.Error(err))
	}
	v.current = nil
}
