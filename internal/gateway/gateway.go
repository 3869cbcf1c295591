// Package gateway — HTTP-клиент к REST-бэкенду платформы.
//
// Каждый запрос получает заголовок Authorization: Bearer, если в хранилище
// есть access токен; без токена запрос уходит неаутентифицированным.
// Ответ 401 вызывает обработчик разлогина ровно один раз на вызов Do,
// после чего ошибка возвращается вызывающему. Повторов и обновления
// токена нет.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
)

// DefaultTimeout задаёт таймаут запроса по умолчанию.
const DefaultTimeout = 30 * time.Second

// maxBodySize ограничивает размер читаемого ответа.
const maxBodySize = 4 << 20

// TokenSource отдаёт текущий access токен или пустую строку.
type TokenSource interface {
	GetAccessToken(ctx context.Context) string
}

// Client выполняет JSON-запросы к бэкенду.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	log            *slog.Logger
	limiter        *rate.Limiter
	metrics        *Metrics
	onUnauthorized func(ctx context.Context)
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient подменяет http.Client целиком.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit ограничивает частоту исходящих запросов.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUnauthorizedHandler задаёт обработчик ответа 401.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New создаёт клиента для baseURL.
func New(baseURL string, tokens TokenSource, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do отправляет запрос и декодирует JSON-ответ в out (если out != nil).
// path либо относительный к baseURL, либо абсолютный URL.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	const op = "gateway.Do"

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, &NetworkError{Timeout: isTimeout(err), Err: err})
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := req.Header.Get("X-Request-ID")
	route := routeFor(ctx, path)
	log := c.log.With(sl.Op(op), slog.String("method", method), slog.String("path", route), slog.String("request_id", requestID))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(method, route, 0, time.Since(start))
		netErr := &NetworkError{Timeout: isTimeout(err), Err: err}
		log.Warn("request failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, netErr)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.metrics.observe(method, route, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", op, &NetworkError{Timeout: isTimeout(err), Err: err})
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, data)
		log.Warn("backend returned error", slog.Int("status", resp.StatusCode), slog.String("message", apiErr.text()))
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return fmt.Errorf("%s: %w", op, apiErr)
	}

	log.Debug("request completed", slog.Int("status", resp.StatusCode), slog.Duration("elapsed", time.Since(start)))
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Get отправляет GET без тела.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post отправляет POST с JSON-телом.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put отправляет PUT с JSON-телом.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token := c.tokens.GetAccessToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

type routeKey struct{}

// WithRoute задаёт шаблон пути запроса для метрик и логов, например
// "/products/{slug}". Пути с идентификаторами без шаблона дают по метке
// на каждый идентификатор.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFor(ctx context.Context, path string) string {
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return metricPath(path)
}

// metricPath отрезает query и схему с хостом, чтобы метки не разрастались.
func metricPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return path
}
