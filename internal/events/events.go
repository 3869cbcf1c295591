// Package events следит за сессией и профилем и публикует переходы
// онбординга: смену состояния сессии и смену экрана, на который направлен
// пользователь.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/rabbitmq"
	"github.com/magabrotheeeer/capitalized/internal/session"
)

// DefaultBuffer — размер очереди событий по умолчанию.
const DefaultBuffer = 64

// RouteEvent — пользователь направлен на другой экран.
type RouteEvent struct {
	From    onboarding.Destination `json:"from"`
	To      onboarding.Destination `json:"to"`
	Reason  string                 `json:"reason"`
	Session string                 `json:"session"`
	UserID  string                 `json:"user_id,omitempty"`
	At      time.Time              `json:"at"`
}

// SessionEvent — сменилось состояние сессии.
type SessionEvent struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// Sink доставляет событие по ключу маршрутизации.
type Sink interface {
	Publish(key string, msg any) error
}

// SessionSource — наблюдаемая сессия.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// ProfileSource — наблюдаемый кэш профиля.
type ProfileSource interface {
	User() *models.UserProfile
	Subscribe(fn func(*models.UserProfile)) (unsubscribe func())
}

type event struct {
	key     string
	payload any
}

// Tracker вычисляет переходы и складывает события в очередь,
// которую разбирает Run.
type Tracker struct {
	sink Sink
	log  *slog.Logger
	now  func() time.Time

	queue chan event

	mu        sync.Mutex
	lastState session.State
	lastDest  onboarding.Destination
}

// New создаёт Tracker. buffer <= 0 означает DefaultBuffer.
func New(sink Sink, log *slog.Logger, buffer int) *Tracker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Tracker{
		sink:  sink,
		log:   log,
		now:   time.Now,
		queue: make(chan event, buffer),
	}
}

// Watch запоминает текущее состояние и подписывается на изменения.
// Возвращает функцию отписки.
func (t *Tracker) Watch(sess SessionSource, profiles ProfileSource) (stop func()) {
	snap := sess.Snapshot()
	t.mu.Lock()
	t.lastState = snap.State
	t.lastDest = onboarding.Evaluate(snap, profiles.User(), t.now())
	t.mu.Unlock()

	stopSession := sess.Subscribe(func(snap session.Snapshot) {
		t.observe(snap, profiles.User())
	})
	stopProfile := profiles.Subscribe(func(u *models.UserProfile) {
		t.observe(sess.Snapshot(), u)
	})
	return func() {
		stopSession()
		stopProfile()
	}
}

func (t *Tracker) observe(snap session.Snapshot, user *models.UserProfile) {
	now := t.now()
	gate := onboarding.Explain(snap.State == session.Authenticated, user, now)

	t.mu.Lock()
	prevState, prevDest := t.lastState, t.lastDest
	t.lastState, t.lastDest = snap.State, gate.Destination
	t.mu.Unlock()

	if prevState != snap.State {
		t.enqueue(rabbitmq.RoutingKeySession, SessionEvent{
			From: prevState.String(),
			To:   snap.State.String(),
			At:   now,
		})
	}
	if prevDest != gate.Destination {
		ev := RouteEvent{
			From:    prevDest,
			To:      gate.Destination,
			Reason:  gate.Reason,
			Session: snap.State.String(),
			At:      now,
		}
		if user != nil {
			ev.UserID = user.ID
		}
		t.enqueue(rabbitmq.RoutingKeyRoute, ev)
	}
}

// enqueue не блокирует наблюдателя: при переполнении событие теряется.
func (t *Tracker) enqueue(key string, payload any) {
	select {
	case t.queue <- event{key: key, payload: payload}:
	default:
		t.log.Warn("event queue is full, dropping event", slog.String("key", key))
	}
}

// Run публикует события до отмены ctx, после чего отправляет то,
// что осталось в очереди.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case ev := <-t.queue:
			t.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-t.queue:
					t.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) publish(ev event) {
	const op = "events.Tracker.publish"
	if err := t.sink.Publish(ev.key, ev.payload); err != nil {
		t.log.Error("failed to publish event", sl.Op(op), slog.String("key", ev.key), sl.Err(err))
	}
}
