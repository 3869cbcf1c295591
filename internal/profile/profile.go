// Package profile — кэш профиля текущего пользователя.
//
// Профиль хранится в памяти и дублируется JSON-ом в хранилище устройства,
// чтобы интерфейс мог показать данные до первого сетевого ответа.
// Частичные обновления применяются поверх текущего снимка и не теряют
// поля, которых нет в патче.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/storage"
)

// Сообщения об ошибках для отображения пользователю.
const (
	MsgSaveFailed = "Failed to save user data"
	MsgLoadFailed = "Failed to load user data"
)

// ErrCleared возвращается записью, закреплённой через Pin, если профиль
// был очищен после закрепления.
var ErrCleared = errors.New("profile was cleared")

type pinKey struct{}

// Cache — кэш профиля.
type Cache struct {
	kv  storage.KV
	log *slog.Logger

	// writeMu упорядочивает записи в хранилище; gen растёт на каждый ClearUser.
	writeMu sync.Mutex
	gen     atomic.Uint64

	mu        sync.RWMutex
	user      *models.UserProfile
	isLoading bool
	err       string

	obsMu     sync.Mutex
	observers map[int]func(*models.UserProfile)
	nextObs   int
}

// New создаёт пустой кэш поверх хранилища устройства.
func New(kv storage.KV, log *slog.Logger) *Cache {
	return &Cache{
		kv:        kv,
		log:       log,
		observers: make(map[int]func(*models.UserProfile)),
	}
}

// Pin закрепляет в ctx текущее поколение кэша. SetUser и UpdateUser с
// таким контекстом возвращают ErrCleared и ничего не пишут, если между
// Pin и записью профиль был очищен (выход во время запроса к серверу).
func (c *Cache) Pin(ctx context.Context) context.Context {
	return context.WithValue(ctx, pinKey{}, c.gen.Load())
}

// SetUser заменяет профиль целиком и сохраняет его. При ошибке записи
// кэш в памяти не меняется.
func (c *Cache) SetUser(ctx context.Context, u *models.UserProfile) error {
	const op = "profile.SetUser"
	if u == nil {
		return c.ClearUser(ctx)
	}
	_, err := c.store(ctx, func(*models.UserProfile) *models.UserProfile {
		return u.Clone()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUser применяет патч к текущему профилю и сохраняет результат.
// Без текущего профиля ничего не делает.
func (c *Cache) UpdateUser(ctx context.Context, patch models.UserPatch) error {
	const op = "profile.UpdateUser"
	if patch.IsEmpty() {
		return nil
	}
	stored, err := c.store(ctx, func(current *models.UserProfile) *models.UserProfile {
		if current == nil {
			return nil
		}
		updated := patch.Apply(*current)
		return &updated
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !stored {
		c.log.Debug("no cached user, patch skipped", sl.Op(op))
	}
	return nil
}

// store пишет профиль, который next строит из текущего. nil от next
// означает, что писать нечего.
func (c *Cache) store(ctx context.Context, next func(current *models.UserProfile) *models.UserProfile) (bool, error) {
	stored, err := c.commit(ctx, next)
	switch {
	case errors.Is(err, ErrCleared):
		c.log.Debug("profile cleared while request was in flight, write dropped")
	case err != nil:
		c.setErr(MsgSaveFailed)
	case stored:
		c.notify()
	}
	return stored, err
}

func (c *Cache) commit(ctx context.Context, next func(current *models.UserProfile) *models.UserProfile) (bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if gen, ok := ctx.Value(pinKey{}).(uint64); ok && gen != c.gen.Load() {
		return false, ErrCleared
	}

	u := next(c.User())
	if u == nil {
		return false, nil
	}
	if err := c.persist(ctx, u); err != nil {
		return false, err
	}

	c.mu.Lock()
	c.user = u
	c.err = ""
	c.mu.Unlock()
	return true, nil
}

// LoadUser поднимает профиль из хранилища при старте. Ошибки чтения и
// повреждённый JSON логируются и трактуются как отсутствие профиля.
func (c *Cache) LoadUser(ctx context.Context) {
	const op = "profile.LoadUser"
	c.mutate(func() { c.isLoading = true })

	var (
		user   *models.UserProfile
		errMsg string
	)
	raw, ok, err := c.kv.Get(ctx, storage.KeyUserData)
	switch {
	case err != nil:
		c.log.Warn("failed to read cached user", sl.Op(op), sl.Err(err))
		errMsg = MsgLoadFailed
	case ok && raw != "":
		var u models.UserProfile
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			c.log.Warn("cached user is corrupted, ignoring", sl.Op(op), sl.Err(err))
			errMsg = MsgLoadFailed
		} else {
			user = &u
		}
	}

	c.mutate(func() {
		c.user = user
		c.err = errMsg
		c.isLoading = false
	})
}

// ClearUser удаляет профиль из памяти и хранилища. Память очищается даже
// при ошибке хранилища.
func (c *Cache) ClearUser(ctx context.Context) error {
	const op = "profile.ClearUser"
	c.writeMu.Lock()
	c.gen.Add(1)
	err := c.kv.Delete(ctx, storage.KeyUserData)
	c.mu.Lock()
	c.user = nil
	c.err = ""
	c.mu.Unlock()
	c.writeMu.Unlock()

	c.notify()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// User возвращает копию профиля или nil.
func (c *Cache) User() *models.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Clone()
}

// Err возвращает последнюю ошибку кэша для отображения.
func (c *Cache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// IsLoading сообщает, идёт ли загрузка профиля из хранилища.
func (c *Cache) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLoading
}

// SetLoading выставляет флаг загрузки (например, на время GET /auth/me).
func (c *Cache) SetLoading(loading bool) {
	c.mutate(func() { c.isLoading = loading })
}

// Subscribe подписывает fn на изменения профиля; fn получает копию.
func (c *Cache) Subscribe(fn func(*models.UserProfile)) (unsubscribe func()) {
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

func (c *Cache) persist(ctx context.Context, u *models.UserProfile) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.kv.SetMany(ctx, map[string]string{storage.KeyUserData: string(data)})
}

func (c *Cache) setErr(msg string) {
	c.mutate(func() { c.err = msg })
}

func (c *Cache) mutate(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	c.notify()
}

// notify вызывается без блокировок: наблюдатели могут читать кэш.
func (c *Cache) notify() {
	snap := c.User()

	c.obsMu.Lock()
	observers := make([]func(*models.UserProfile), 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.obsMu.Unlock()

	for _, o := range observers {
		o(snap.Clone())
	}
}
