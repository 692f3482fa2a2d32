package provider

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/pubsub"
	"go.uber.org/zap"
)

func encodeEvent(ev chat.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// subscription decodes broker payloads into chat events.
type subscription struct {
	src     pubsub.Subscription
	out     chan chat.Event
	done    chan struct{}
	once    sync.Once
	onClose func(*subscription)
	logger  *zap.Logger
}

func newSubscription(src pubsub.Subscription, logger *zap.Logger, onClose func(*subscription)) *subscription {
	s := &subscription{
		src:     src,
		out:     make(chan chat.Event, 64),
		done:    make(chan struct{}),
		onClose: onClose,
		logger:  logger,
	}
	go s.pump()
	return s
}

func (s *subscription) Events() <-chan chat.Event { return s.out }

func (s *subscription) pump() {
	defer close(s.out)
	for payload := range s.src.Messages() {
		var ev chat.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn("dropping undecodable event", zap.Error(err))
			continue
		}
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.src.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return err
}
