// Package api — типизированные вызовы REST-бэкенда поверх gateway.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Doer выполняет JSON-запрос к бэкенду. Реализуется *gateway.Client.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// API — клиент эндпоинтов auth, kyc, subscriptions и investments.
type API struct {
	c                Doer
	investmentsURL   string
	investmentsRoute string // путь investmentsURL без схемы и хоста
}

// New создаёт API. investmentsURL — базовый адрес сервиса инвестиций
// (абсолютный или относительный к базовому адресу gateway).
func New(c Doer, investmentsURL string) *API {
	if investmentsURL == "" {
		investmentsURL = "/investments"
	}
	investmentsURL = strings.TrimRight(investmentsURL, "/")
	route := investmentsURL
	if u, err := url.Parse(investmentsURL); err == nil && u.IsAbs() {
		route = u.Path
	}
	return &API{c: c, investmentsURL: investmentsURL, investmentsRoute: route}
}

func (a *API) get(ctx context.Context, path string, out any) error {
	return a.c.Do(ctx, http.MethodGet, path, nil, out)
}

func (a *API) post(ctx context.Context, path string, body, out any) error {
	return a.c.Do(ctx, http.MethodPost, path, body, out)
}

func (a *API) put(ctx context.Context, path string, body, out any) error {
	return a.c.Do(ctx, http.MethodPut, path, body, out)
}

// number отдаёт сумму JSON-числом, а не строкой.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
