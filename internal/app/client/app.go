// Package client собирает клиент платформы: хранилище, сессию, кэш
// профиля, HTTP-шлюз, действия онбординга, публикацию событий и
// локальный статус-сервер.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/capitalized/internal/api"
	"github.com/magabrotheeeer/capitalized/internal/config"
	"github.com/magabrotheeeer/capitalized/internal/events"
	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/profile"
	"github.com/magabrotheeeer/capitalized/internal/rabbitmq"
	services "github.com/magabrotheeeer/capitalized/internal/services/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/session"
	"github.com/magabrotheeeer/capitalized/internal/storage"
	"github.com/magabrotheeeer/capitalized/internal/storage/tokens"
)

// ErrServerDisabled возвращает Run, если адрес статус-сервера не задан.
var ErrServerDisabled = errors.New("status server is disabled")

// App — собранный клиент.
type App struct {
	Session  *session.Controller
	Profiles *profile.Cache
	API      *api.API
	Service  *services.Service
	Tracker  *events.Tracker

	logger   *slog.Logger
	kv       storage.KV
	registry *prometheus.Registry
	server   *http.Server

	conn *amqp.Connection
	ch   *amqp.Channel

	stopWatch   func()
	stopTracker context.CancelFunc
	trackerDone chan struct{}
	closeOnce   sync.Once
}

// New открывает хранилище и собирает компоненты клиента.
// Состояние с диска читает Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "client.New"

	kv, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokenStore := tokens.New(kv, logger)
	sess := session.New(tokenStore, logger)
	profiles := profile.New(kv, logger)
	sess.OnClear(func(ctx context.Context) {
		if err := profiles.ClearUser(ctx); err != nil {
			logger.Error("failed to clear cached profile", sl.Op(op), sl.Err(err))
		}
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	gw := gateway.New(cfg.BaseURL, tokenStore, logger,
		gateway.WithTimeout(cfg.TimeoutAPI),
		gateway.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		gateway.WithMetrics(gateway.NewMetrics(registry)),
		gateway.WithUnauthorizedHandler(func(ctx context.Context) {
			logger.Warn("backend rejected the session, logging out", sl.Op(op))
			if err := sess.ClearAuth(ctx); err != nil {
				logger.Error("failed to clear session after 401", sl.Op(op), sl.Err(err))
			}
		}),
	)
	backend := api.New(gw, cfg.InvestmentsBaseURL())

	app := &App{
		Session:  sess,
		Profiles: profiles,
		API:      backend,
		Service:  services.New(backend, sess, profiles, logger),
		logger:   logger,
		kv:       kv,
		registry: registry,
	}

	var sink events.Sink = events.NewLogSink(logger)
	if cfg.AMQPURL != "" {
		if err := app.connectEvents(cfg.Events); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sink = events.NewAMQPSink(app.ch, cfg.Exchange)
	}
	app.Tracker = events.New(sink, logger, events.DefaultBuffer)

	if cfg.AddressHTTP != "" {
		router := chi.NewRouter()
		RegisterRoutes(router, logger, app)
		app.server = &http.Server{
			Addr:         cfg.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutHTTP,
			WriteTimeout: cfg.TimeoutHTTP,
			IdleTimeout:  cfg.IdleTimeout,
		}
	}

	return app, nil
}

func (a *App) connectEvents(cfg config.Events) error {
	conn, err := rabbitmq.Connect(cfg.AMQPURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := rabbitmq.SetupExchange(ch, cfg.Exchange, rabbitmq.OnboardingQueues()); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	a.conn, a.ch = conn, ch
	return nil
}

// Start восстанавливает профиль и сессию из хранилища и запускает
// публикацию событий. Токены пользователя с неподтверждённым телефоном
// после перезапуска остаются в TokensPendingVerification.
func (a *App) Start(ctx context.Context) {
	const op = "client.Start"
	a.Profiles.LoadUser(ctx)
	a.Session.Initialize(ctx)
	if u := a.Profiles.User(); u != nil && !u.PhoneVerified && a.Session.Snapshot().State == session.Authenticated {
		if err := a.Session.SetAuthenticated(false); err != nil {
			a.logger.Error("failed to restore pending verification", sl.Op(op), sl.Err(err))
		} else {
			a.logger.Info("phone not verified, session kept pending", sl.Op(op))
		}
	}

	a.stopWatch = a.Tracker.Watch(a.Session, a.Profiles)
	trackerCtx, cancel := context.WithCancel(context.Background())
	a.stopTracker = cancel
	a.trackerDone = make(chan struct{})
	go func() {
		defer close(a.trackerDone)
		a.Tracker.Run(trackerCtx)
	}()

	gate := a.Service.Explain()
	a.logger.Info("client started",
		slog.String("session", a.Session.Snapshot().StateName),
		slog.String("destination", string(gate.Destination)),
		slog.String("reason", gate.Reason),
	)
}

// Run обслуживает статус-сервер до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return ErrServerDisabled
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("status server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down status server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}

// Close дожидается отправки событий и освобождает ресурсы.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.stopWatch != nil {
			a.stopWatch()
		}
		if a.stopTracker != nil {
			a.stopTracker()
			<-a.trackerDone
		}
		if a.ch != nil {
			a.ch.Close()
		}
		if a.conn != nil {
			a.conn.Close()
		}
		err = a.kv.Close()
	})
	return err
}
