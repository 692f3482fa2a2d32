package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/observ"
	"go.uber.org/zap"
)

// HistoryLimit is how many recent messages a session loads on open.
const HistoryLimit = 50

const defaultTypingTimeout = 3 * time.Second

// ChannelResolver is the part of Resolver the synchronizer needs.
type ChannelResolver interface {
	Resolve(ctx context.Context, requesterID, counterpartID uuid.UUID) (ChannelRef, error)
}

// OpenRequest describes a conversation to open. Progress, if set, is
// called on every setup state change, including StateErrored.
type OpenRequest struct {
	LocalUserID   uuid.UUID
	CounterpartID uuid.UUID
	Progress      func(State)
}

// Synchronizer opens chat sessions: it authenticates against the
// provider, resolves the match channel, watches it and loads history.
type Synchronizer struct {
	tokens        TokenIssuer
	provider      Provider
	resolver      ChannelResolver
	logger        *zap.Logger
	metrics       *observ.Metrics
	typingTimeout time.Duration
}

func NewSynchronizer(
	tokens TokenIssuer,
	provider Provider,
	resolver ChannelResolver,
	logger *zap.Logger,
	metrics *observ.Metrics,
) *Synchronizer {
	return &Synchronizer{
		tokens:        tokens,
		provider:      provider,
		resolver:      resolver,
		logger:        logger,
		metrics:       metrics,
		typingTimeout: defaultTypingTimeout,
	}
}

// Open runs idle → authenticating → resolving_channel → watching → ready.
// On any failure the provider connection, if one was opened, is released
// before Open returns, and the error is returned as is (ErrNotMatched and
// ErrNotAuthenticated stay matchable with errors.Is).
func (s *Synchronizer) Open(ctx context.Context, req OpenRequest) (_ *Session, err error) {
	started := time.Now()
	sess := &Session{
		logger:        s.logger.With(zap.Stringer("counterpart_id", req.CounterpartID)),
		metrics:       s.metrics,
		typingTimeout: s.typingTimeout,
		progress:      req.Progress,
	}
	sess.dispatch(Start{LocalUserID: req.LocalUserID.String(), CounterpartID: req.CounterpartID.String()})

	defer func() {
		if err == nil {
			return
		}
		sess.dispatch(Failed{Err: err})
		sess.release()
		s.metrics.SessionFailed(time.Since(started).Seconds())
		sess.logger.Warn("chat session setup failed", zap.Error(err))
	}()

	creds, err := s.tokens.Issue(ctx, req.LocalUserID)
	if err != nil {
		return nil, err
	}

	conn, err := s.provider.Connect(ctx, Profile{ID: creds.UserID, Name: creds.UserName, Image: creds.UserImage}, creds.Token)
	if err != nil {
		return nil, &ProviderError{Op: "connect", Err: err}
	}
	sess.conn = conn
	sess.dispatch(Authenticated{UserID: conn.UserID()})

	ref, err := s.resolver.Resolve(ctx, req.LocalUserID, req.CounterpartID)
	if err != nil {
		return nil, err
	}
	sess.dispatch(ChannelResolved{Channel: ref})

	// Why Watch before QueryMessages?
	//   - Query first, subscribe second leaves a gap: a message sent after
	//     the history read but before the subscription is live is in
	//     neither, and the user never sees it until they reopen the chat.
	//   - Subscribe first closes the gap. Watch returns only once the
	//     broker has confirmed the subscription, so everything published
	//     after that point is buffered for us.
	//   - The cost is overlap: a message sent in the window can arrive
	//     both in history and as a live event. Merge dedupes by id, so
	//     it shows up once.
	sub, err := conn.Watch(ctx, ref)
	if err != nil {
		return nil, &ProviderError{Op: "watch", Err: err}
	}
	sess.sub = sub

	history, err := conn.QueryMessages(ctx, ref, HistoryLimit)
	if err != nil {
		return nil, &ProviderError{Op: "query messages", Err: err}
	}

	// The caller may have gone away while we were waiting on the provider.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	local := conn.UserID()
	msgs := make([]Message, 0, len(history))
	for _, pm := range history {
		msgs = append(msgs, ToMessage(pm, local))
	}
	sess.dispatch(HistoryLoaded{Messages: msgs})

	s.metrics.SessionOpened(time.Since(started).Seconds())
	sess.logger.Info("chat session ready",
		zap.String("channel_id", ref.ID),
		zap.Int("history", len(msgs)),
	)
	return sess, nil
}

// Session is one open conversation. It is owned by a single goroutine:
// Send, Apply, Messages and Close must not be called concurrently.
// Typing may be called from the owner at any rate; the provider call runs
// on its own goroutine.
type Session struct {
	state         SessionState
	conn          Connection
	sub           Subscription
	logger        *zap.Logger
	metrics       *observ.Metrics
	typingTimeout time.Duration
	progress      func(State)

	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func (s *Session) dispatch(a Action) {
	prev := s.state.State
	s.state = Reduce(s.state, a)
	if s.progress != nil && s.state.State != prev {
		s.progress(s.state.State)
	}
}

func (s *Session) State() State { return s.state.State }

func (s *Session) Channel() ChannelRef { return s.state.Channel }

func (s *Session) LocalUserID() string { return s.state.LocalUserID }

func (s *Session) CounterpartID() string { return s.state.CounterpartID }

// Messages returns a copy of the message list, oldest first.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.state.Messages))
	copy(out, s.state.Messages)
	return out
}

// Events is the live event stream of the watched channel. It is nil
// before the session reaches watching.
func (s *Session) Events() <-chan Event {
	if s.sub == nil {
		return nil
	}
	return s.sub.Events()
}

// Apply folds a live event into the session. It returns the message and
// true only when a new message was appended.
func (s *Session) Apply(ev Event) (Message, bool) {
	if ev.Type != EventMessageNew || ev.Message == nil || ev.Channel != s.state.Channel {
		return Message{}, false
	}
	before := len(s.state.Messages)
	m := ToMessage(*ev.Message, s.state.LocalUserID)
	s.dispatch(MessageReceived{Message: m})
	if len(s.state.Messages) == before {
		return Message{}, false
	}
	return m, true
}

// Send transmits text and appends it once the provider acknowledges it
// with an id. On failure the message list is untouched and the returned
// *SendError carries the original text.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Message{}, &SendError{Text: text, Err: ErrEmptyMessage}
	}
	if s.closed || s.state.State != StateReady {
		return Message{}, &SendError{Text: text, Err: ErrNotReady}
	}

	ack, err := s.conn.SendMessage(ctx, s.state.Channel, trimmed)
	if err == nil && ack.ID == "" {
		err = errors.New("acknowledged without an id")
	}
	if err != nil {
		s.metrics.MessageSent(false)
		s.logger.Error("error sending message", zap.Error(err))
		return Message{}, &SendError{Text: text, Err: &ProviderError{Op: "send message", Err: err}}
	}
	s.metrics.MessageSent(true)

	m := Message{
		ID:        ack.ID,
		Text:      trimmed,
		Sender:    SenderMe,
		Timestamp: ack.CreatedAt,
		UserID:    s.state.LocalUserID,
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.dispatch(MessageReceived{Message: m})
	return m, nil
}

// Typing emits a typing signal if the channel is attached. It never
// blocks and never reports failure to the caller.
func (s *Session) Typing() {
	if s.closed || s.state.State != StateReady {
		return
	}
	conn, ref, timeout, logger := s.conn, s.state.Channel, s.typingTimeout, s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := conn.Keystroke(ctx, ref); err != nil {
			logger.Debug("typing signal failed", zap.Error(err))
		}
	}()
}

// Close disconnects from the provider. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		wasReady := s.state.State == StateReady
		s.closeErr = s.release()
		if wasReady {
			s.metrics.SessionClosed()
		}
	})
	return s.closeErr
}

func (s *Session) release() error {
	s.closed = true
	var errs []error
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscription: %w", err))
		}
	}
	if s.conn != nil {
		if err := s.conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	return errors.Join(errs...)
}
