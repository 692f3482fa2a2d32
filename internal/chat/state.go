package chat

import (
	"time"
)

// State is the setup progress of a chat session.
type State string

const (
	StateIdle             State = "idle"
	StateAuthenticating   State = "authenticating"
	StateResolvingChannel State = "resolving_channel"
	StateWatching         State = "watching"
	StateReady            State = "ready"
	StateErrored          State = "errored"
)

type Sender string

const (
	SenderMe    Sender = "me"
	SenderOther Sender = "other"
)

// Message is a chat message as the conversation view shows it.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

// ToMessage converts a provider message for a view owned by localUserID.
func ToMessage(pm ProviderMessage, localUserID string) Message {
	sender := SenderOther
	if pm.UserID != "" && pm.UserID == localUserID {
		sender = SenderMe
	}
	ts := pm.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return Message{
		ID:        pm.ID,
		Text:      pm.Text,
		Sender:    sender,
		Timestamp: ts,
		UserID:    pm.UserID,
	}
}

// Merge returns existing with incoming appended, unless a message with
// the same id is already present, in which case existing is returned
// as is. Messages without an id are dropped. existing is never modified.
func Merge(existing []Message, incoming Message) []Message {
	if incoming.ID == "" {
		return existing
	}
	for _, m := range existing {
		if m.ID == incoming.ID {
			return existing
		}
	}
	out := make([]Message, len(existing), len(existing)+1)
	copy(out, existing)
	return append(out, incoming)
}

// SessionState is the value a conversation view renders. It only changes
// through Reduce.
type SessionState struct {
	State         State
	LocalUserID   string
	CounterpartID string
	Channel       ChannelRef
	Messages      []Message
	Err           error
}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

type (
	// Start begins setup for a counterpart.
	Start struct {
		LocalUserID   string
		CounterpartID string
	}
	// Authenticated records a live provider connection.
	Authenticated struct{ UserID string }
	// ChannelResolved records the channel the session attaches to.
	ChannelResolved struct{ Channel ChannelRef }
	// HistoryLoaded merges the initial history, oldest first.
	HistoryLoaded struct{ Messages []Message }
	// MessageReceived merges one message: a send acknowledgment or a
	// live event.
	MessageReceived struct{ Message Message }
	// Failed moves the session to the terminal errored state.
	Failed struct{ Err error }
)

func (Start) isAction()           {}
func (Authenticated) isAction()   {}
func (ChannelResolved) isAction() {}
func (HistoryLoaded) isAction()   {}
func (MessageReceived) isAction() {}
func (Failed) isAction()          {}

// Reduce applies a to s and returns the new state. Actions that do not
// fit the current state are ignored. Errored is terminal.
func Reduce(s SessionState, a Action) SessionState {
	if s.State == StateErrored {
		return s
	}

	switch a := a.(type) {
	case Start:
		if s.State != StateIdle && s.State != "" {
			return s
		}
		return SessionState{
			State:         StateAuthenticating,
			LocalUserID:   a.LocalUserID,
			CounterpartID: a.CounterpartID,
			Messages:      []Message{},
		}

	case Authenticated:
		if s.State != StateAuthenticating {
			return s
		}
		s.LocalUserID = a.UserID
		s.State = StateResolvingChannel

	case ChannelResolved:
		if s.State != StateResolvingChannel {
			return s
		}
		s.Channel = a.Channel
		s.State = StateWatching

	case HistoryLoaded:
		if s.State != StateWatching {
			return s
		}
		msgs := s.Messages
		for _, m := range a.Messages {
			msgs = Merge(msgs, m)
		}
		s.Messages = msgs
		s.State = StateReady

	case MessageReceived:
		if s.State != StateWatching && s.State != StateReady {
			return s
		}
		s.Messages = Merge(s.Messages, a.Message)

	case Failed:
		s.State = StateErrored
		s.Err = a.Err
	}

	return s
}
