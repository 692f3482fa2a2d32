package chat_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockMatches struct {
	mock.Mock
}

func (m *MockMatches) GetActive(ctx context.Context, a, b uuid.UUID) (*models.Match, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) MintToken(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) UpsertUser(ctx context.Context, p chat.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProvider) CreateChannel(ctx context.Context, spec chat.ChannelSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

func (m *MockProvider) Connect(ctx context.Context, identity chat.Profile, token string) (chat.Connection, error) {
	args := m.Called(ctx, identity, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chat.Connection), args.Error(1)
}

type MockConnection struct {
	mock.Mock
	userID string
}

func (m *MockConnection) UserID() string { return m.userID }

func (m *MockConnection) Watch(ctx context.Context, ref chat.ChannelRef) (chat.Subscription, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chat.Subscription), args.Error(1)
}

func (m *MockConnection) QueryMessages(ctx context.Context, ref chat.ChannelRef, limit int) ([]chat.ProviderMessage, error) {
	args := m.Called(ctx, ref, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.ProviderMessage), args.Error(1)
}

func (m *MockConnection) SendMessage(ctx context.Context, ref chat.ChannelRef, text string) (chat.ProviderMessage, error) {
	args := m.Called(ctx, ref, text)
	return args.Get(0).(chat.ProviderMessage), args.Error(1)
}

func (m *MockConnection) Keystroke(ctx context.Context, ref chat.ChannelRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockConnection) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}

// fakeSubscription hands out a channel the test can push events into.
type fakeSubscription struct {
	ch     chan chat.Event
	closed bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan chat.Event, 8)}
}

func (s *fakeSubscription) Events() <-chan chat.Event { return s.ch }

func (s *fakeSubscription) Close() error {
	s.closed = true
	return nil
}

type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) Issue(ctx context.Context, userID uuid.UUID) (chat.Credentials, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(chat.Credentials), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, requesterID, counterpartID uuid.UUID) (chat.ChannelRef, error) {
	args := m.Called(ctx, requesterID, counterpartID)
	return args.Get(0).(chat.ChannelRef), args.Error(1)
}
