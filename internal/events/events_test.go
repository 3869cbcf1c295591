package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/profile"
	"github.com/magabrotheeeer/capitalized/internal/rabbitmq"
	"github.com/magabrotheeeer/capitalized/internal/session"
	"github.com/magabrotheeeer/capitalized/internal/storage/memory"
	"github.com/magabrotheeeer/capitalized/internal/storage/tokens"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	key string
	msg any
}

type recordingSink struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (s *recordingSink) Publish(key string, msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, published{key: key, msg: msg})
	return s.err
}

func (s *recordingSink) all() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.events...)
}

// drain публикует всё накопленное синхронно.
func drain(tr *Tracker) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.Run(ctx)
}

func TestTracker_OnboardingFlow(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	kv := memory.New()
	sess := session.New(tokens.New(kv, log), log)
	sess.Initialize(ctx)
	profiles := profile.New(kv, log)

	sink := &recordingSink{}
	tr := New(sink, log, 0)
	stop := tr.Watch(sess, profiles)
	defer stop()

	require.NoError(t, sess.SetTokensOnly(ctx, "access", "refresh"))
	require.NoError(t, sess.SetAuthenticated(true))
	require.NoError(t, profiles.SetUser(ctx, &models.UserProfile{ID: "u-1", PhoneVerified: true}))
	require.NoError(t, sess.ClearAuth(ctx))
	drain(tr)

	got := sink.all()
	require.Len(t, got, 6)

	assert.Equal(t, rabbitmq.RoutingKeySession, got[0].key)
	assert.Equal(t, SessionEvent{From: "logged_out", To: "tokens_pending_verification", At: got[0].msg.(SessionEvent).At}, got[0].msg)

	assert.Equal(t, rabbitmq.RoutingKeySession, got[1].key)
	assert.Equal(t, "authenticated", got[1].msg.(SessionEvent).To)

	assert.Equal(t, rabbitmq.RoutingKeyRoute, got[2].key)
	route := got[2].msg.(RouteEvent)
	assert.Equal(t, onboarding.Auth, route.From)
	assert.Equal(t, onboarding.MainApp, route.To)
	assert.Equal(t, "no cached profile", route.Reason)

	route = got[3].msg.(RouteEvent)
	assert.Equal(t, onboarding.MainApp, route.From)
	assert.Equal(t, onboarding.ProfileCompletion, route.To)
	assert.Equal(t, "u-1", route.UserID)

	assert.Equal(t, "logged_out", got[4].msg.(SessionEvent).To)
	route = got[5].msg.(RouteEvent)
	assert.Equal(t, onboarding.Auth, route.To)
	assert.Equal(t, "logged_out", route.Session)
}

func TestTracker_NoEventWithoutTransition(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	kv := memory.New()
	sess := session.New(tokens.New(kv, log), log)
	sess.Initialize(ctx)
	profiles := profile.New(kv, log)

	sink := &recordingSink{}
	tr := New(sink, log, 0)
	stop := tr.Watch(sess, profiles)

	sess.SetLoading(true)
	sess.SetError("Failed to save session")
	require.NoError(t, profiles.SetUser(ctx, &models.UserProfile{ID: "u-1"}))
	drain(tr)
	assert.Empty(t, sink.all())

	stop()
	require.NoError(t, sess.SetTokens(ctx, "a", "r"))
	drain(tr)
	assert.Empty(t, sink.all())
}

func TestTracker_DropsWhenQueueIsFull(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	kv := memory.New()
	sess := session.New(tokens.New(kv, log), log)
	sess.Initialize(ctx)
	profiles := profile.New(kv, log)

	sink := &recordingSink{}
	tr := New(sink, log, 1)
	defer tr.Watch(sess, profiles)()

	// переход в authenticated даёт два события, в очередь помещается одно
	require.NoError(t, sess.SetTokens(ctx, "a", "r"))
	drain(tr)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, rabbitmq.RoutingKeySession, got[0].key)
}

func TestTracker_PublishErrorDoesNotStopRun(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	kv := memory.New()
	sess := session.New(tokens.New(kv, log), log)
	sess.Initialize(ctx)
	profiles := profile.New(kv, log)

	sink := &recordingSink{err: errors.New("broker down")}
	tr := New(sink, log, 0)
	defer tr.Watch(sess, profiles)()

	require.NoError(t, sess.SetTokens(ctx, "a", "r"))
	drain(tr)
	assert.Len(t, sink.all(), 2)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestAMQPSink_Publish(t *testing.T) {
	ch := new(PublisherMock)
	ch.On("Publish", "onboarding", rabbitmq.RoutingKeySession, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		return p.ContentType == "application/json" &&
			string(p.Body) == `{"from":"logged_out","to":"authenticated","at":"0001-01-01T00:00:00Z"}`
	})).Return(nil)

	sink := NewAMQPSink(ch, "onboarding")
	err := sink.Publish(rabbitmq.RoutingKeySession, SessionEvent{From: "logged_out", To: "authenticated"})

	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestLogSink_Publish(t *testing.T) {
	assert.NoError(t, NewLogSink(newNoopLogger()).Publish(rabbitmq.RoutingKeyRoute, RouteEvent{}))
}
