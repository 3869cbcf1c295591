package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/models"
)

// Products ищет инвестиционные продукты. Пустые поля фильтра не передаются.
func (a *API) Products(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error) {
	const op = "api.Products"
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.InvestmentType != "" {
		q.Set("investment_type", f.InvestmentType)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.MinPrice.IsPositive() {
		q.Set("min_price", f.MinPrice.String())
	}
	if f.MaxPrice.IsPositive() {
		q.Set("max_price", f.MaxPrice.String())
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}

	path := a.investmentsURL + "/products/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page models.ProductPage
	if err := a.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &page, nil
}

// Categories возвращает категории продуктов.
func (a *API) Categories(ctx context.Context, activeOnly bool) ([]models.InvestmentCategory, error) {
	const op = "api.Categories"
	path := a.investmentsURL + "/products/categories?active_only=" + strconv.FormatBool(activeOnly)
	var out []models.InvestmentCategory
	if err := a.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Product возвращает продукт по slug.
func (a *API) Product(ctx context.Context, slug string) (*models.InvestmentProduct, error) {
	const op = "api.Product"
	var p models.InvestmentProduct
	ctx = gateway.WithRoute(ctx, a.investmentsRoute+"/products/{slug}")
	if err := a.get(ctx, a.investmentsURL+"/products/"+url.PathEscape(slug), &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// Projection считает прогноз доходности для суммы.
func (a *API) Projection(ctx context.Context, slug string, amount decimal.Decimal) (*models.Projection, error) {
	const op = "api.Projection"
	body := struct {
		Amount json.Number `json:"amount"`
	}{Amount: number(amount)}
	var p models.Projection
	ctx = gateway.WithRoute(ctx, a.investmentsRoute+"/products/{slug}/projection")
	if err := a.post(ctx, a.investmentsURL+"/products/"+url.PathEscape(slug)+"/projection", body, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// Invest создаёт инвестицию.
func (a *API) Invest(ctx context.Context, req models.InvestmentRequest) (*models.Investment, error) {
	const op = "api.Invest"
	body := struct {
		ProductSlug   string      `json:"product_slug"`
		Amount        json.Number `json:"amount"`
		PaymentMethod string      `json:"payment_method,omitempty"`
	}{
		ProductSlug:   req.ProductSlug,
		Amount:        number(req.Amount),
		PaymentMethod: req.PaymentMethod,
	}
	var inv models.Investment
	if err := a.post(ctx, a.investmentsURL+"/investments", body, &inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

// Portfolio возвращает инвестиции пользователя.
func (a *API) Portfolio(ctx context.Context) ([]models.Investment, error) {
	const op = "api.Portfolio"
	var out []models.Investment
	if err := a.get(ctx, a.investmentsURL+"/investments/portfolio", &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
