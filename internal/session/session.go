// Package session управляет состоянием аутентификации клиента.
//
// Состояние — закрытое перечисление LoggedOut | TokensPendingVerification |
// Authenticated. Двухфазный вход (токены уже выданы, телефон ещё не
// подтверждён) представлен отдельным состоянием, а не парой флагов.
// Токены хранятся через TokenStore; Controller — единственный владелец
// записей о сессии в хранилище.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/capitalized/internal/lib/jwt"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
)

// State — состояние сессии.
type State int

const (
	LoggedOut State = iota
	TokensPendingVerification
	Authenticated
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case TokensPendingVerification:
		return "tokens_pending_verification"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoTokens возвращается при попытке аутентифицировать сессию без токенов.
	ErrNoTokens = errors.New("session has no tokens")
	// ErrEmptyToken возвращается при попытке сохранить пустой токен.
	ErrEmptyToken = errors.New("token must not be empty")
)

// TokenStore описывает хранилище токенов устройства.
type TokenStore interface {
	GetAccessToken(ctx context.Context) string
	GetRefreshToken(ctx context.Context) string
	SetTokens(ctx context.Context, access, refresh string) error
	ClearAll(ctx context.Context) error
}

// Snapshot — неизменяемая копия состояния для наблюдателей и маршрутизатора.
type Snapshot struct {
	State           State      `json:"-"`
	StateName       string     `json:"state"`
	IsAuthenticated bool       `json:"is_authenticated"`
	AccessToken     string     `json:"-"`
	RefreshToken    string     `json:"-"`
	HasTokens       bool       `json:"has_tokens"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
	IsLoading       bool       `json:"is_loading"`
	Error           string     `json:"error,omitempty"`
}

// Controller — контроллер сессии.
type Controller struct {
	tokens TokenStore
	log    *slog.Logger

	mu              sync.RWMutex
	state           State
	accessToken     string
	refreshToken    string
	accessExpiresAt *time.Time
	isLoading       bool
	err             string

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
	onClear   []func(ctx context.Context)
}

// New создаёт контроллер в состоянии LoggedOut с флагом загрузки до Initialize.
func New(tokens TokenStore, log *slog.Logger) *Controller {
	return &Controller{
		tokens:    tokens,
		log:       log,
		state:     LoggedOut,
		isLoading: true,
		observers: make(map[int]func(Snapshot)),
	}
}

// Initialize читает токены при старте процесса. Если есть оба — сессия
// считается аутентифицированной без проверки свежести: просроченный токен
// обнаружится на первом запросе (401). Половина пары стирается, чтобы
// шлюз не отправлял её как Bearer.
func (c *Controller) Initialize(ctx context.Context) {
	const op = "session.Initialize"
	c.mutate(func() {
		c.isLoading = true
	})

	access := c.tokens.GetAccessToken(ctx)
	refresh := c.tokens.GetRefreshToken(ctx)
	if (access == "") != (refresh == "") {
		c.log.Warn("stored token pair is incomplete, clearing", sl.Op(op))
		if err := c.tokens.ClearAll(ctx); err != nil {
			c.log.Error("failed to clear incomplete token pair", sl.Op(op), sl.Err(err))
		}
		access, refresh = "", ""
	}

	c.mutate(func() {
		if access != "" && refresh != "" {
			c.setTokensLocked(access, refresh)
			c.state = Authenticated
		}
		c.isLoading = false
	})
	c.log.Info("session initialized", sl.Op(op), slog.String("state", c.Snapshot().StateName))
}

// SetTokens сохраняет токены и сразу делает сессию аутентифицированной.
func (c *Controller) SetTokens(ctx context.Context, access, refresh string) error {
	return c.storeTokens(ctx, "session.SetTokens", access, refresh, Authenticated)
}

// SetTokensOnly сохраняет токены, не меняя признак аутентификации: токены
// нужны для вызова подтверждения телефона, но в приложение пускать рано.
func (c *Controller) SetTokensOnly(ctx context.Context, access, refresh string) error {
	return c.storeTokens(ctx, "session.SetTokensOnly", access, refresh, TokensPendingVerification)
}

func (c *Controller) storeTokens(ctx context.Context, op, access, refresh string, target State) error {
	if access == "" || refresh == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	if err := c.tokens.SetTokens(ctx, access, refresh); err != nil {
		c.SetError("Failed to save session")
		return fmt.Errorf("%s: %w", op, err)
	}
	c.mutate(func() {
		c.setTokensLocked(access, refresh)
		c.err = ""
		if target == Authenticated || c.state != Authenticated {
			c.state = target
		}
	})
	return nil
}

// SetAuthenticated переключает признак аутентификации, не трогая токены.
// true допустим только при наличии токенов в памяти.
func (c *Controller) SetAuthenticated(authenticated bool) error {
	const op = "session.SetAuthenticated"
	var err error
	c.mutate(func() {
		hasTokens := c.accessToken != "" && c.refreshToken != ""
		switch {
		case authenticated && !hasTokens:
			err = fmt.Errorf("%s: %w", op, ErrNoTokens)
		case authenticated:
			c.state = Authenticated
		case hasTokens:
			c.state = TokensPendingVerification
		default:
			c.state = LoggedOut
		}
	})
	return err
}

// ClearAuth полностью сбрасывает сессию: хранилище (токены и профиль) и
// состояние в памяти. Вызывается при выходе пользователя и при 401 от
// любого запроса. Повторный вызов безопасен. Если хранилище не удалось
// очистить, сессия в памяти всё равно сбрасывается, а ошибка возвращается.
func (c *Controller) ClearAuth(ctx context.Context) error {
	const op = "session.ClearAuth"
	storeErr := c.tokens.ClearAll(ctx)

	c.mutate(func() {
		c.state = LoggedOut
		c.accessToken = ""
		c.refreshToken = ""
		c.accessExpiresAt = nil
		c.err = ""
	})

	c.obsMu.Lock()
	hooks := append([]func(context.Context){}, c.onClear...)
	c.obsMu.Unlock()
	for _, h := range hooks {
		h(ctx)
	}

	if storeErr != nil {
		c.log.Error("session cleared in memory but storage cleanup failed", sl.Op(op), sl.Err(storeErr))
		return fmt.Errorf("%s: %w", op, storeErr)
	}
	c.log.Info("session cleared", sl.Op(op))
	return nil
}

// OnClear регистрирует хук, который вызывается при каждом ClearAuth.
// Так кэш профиля очищается вместе с сессией.
func (c *Controller) OnClear(fn func(ctx context.Context)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.onClear = append(c.onClear, fn)
}

// SetLoading выставляет флаг загрузки.
func (c *Controller) SetLoading(loading bool) {
	c.mutate(func() { c.isLoading = loading })
}

// SetError выставляет текст ошибки для отображения; пустая строка сбрасывает.
func (c *Controller) SetError(msg string) {
	c.mutate(func() { c.err = msg })
}

// Snapshot возвращает копию текущего состояния.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe подписывает fn на изменения состояния. Возвращает функцию отписки.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()
	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// mutate применяет изменение под блокировкой и уведомляет наблюдателей
// уже после её снятия.
func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.obsMu.Lock()
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.obsMu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}

func (c *Controller) setTokensLocked(access, refresh string) {
	c.accessToken = access
	c.refreshToken = refresh
	c.accessExpiresAt = accessExpiry(access)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:           c.state,
		StateName:       c.state.String(),
		IsAuthenticated: c.state == Authenticated,
		AccessToken:     c.accessToken,
		RefreshToken:    c.refreshToken,
		HasTokens:       c.accessToken != "" && c.refreshToken != "",
		IsLoading:       c.isLoading,
		Error:           c.err,
	}
	if c.accessExpiresAt != nil {
		t := *c.accessExpiresAt
		s.AccessExpiresAt = &t
	}
	return s
}

// accessExpiry достаёт exp из JWT без проверки подписи, только для отображения.
// Непрозрачные токены и токены без exp дают nil.
func accessExpiry(token string) *time.Time {
	t, ok := jwt.ExpiresAt(token)
	if !ok {
		return nil
	}
	return &t
}
