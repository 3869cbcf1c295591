package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/models"
)

// SubscribeResponse — ответ на оформление подписки.
type SubscribeResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Subscription *models.Subscription `json:"subscription"`
	PaymentInfo  *models.PaymentInfo  `json:"payment_info"`
}

// SubscriptionResponse — ответ вида {success, message, subscription}.
type SubscriptionResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Subscription *models.Subscription `json:"subscription"`
}

// Plans возвращает список тарифов.
func (a *API) Plans(ctx context.Context) ([]models.Plan, error) {
	const op = "api.Plans"
	var resp struct {
		Plans []models.Plan `json:"plans"`
	}
	if err := a.get(ctx, "/subscriptions/plans", &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp.Plans, nil
}

// Plan возвращает тариф по id.
func (a *API) Plan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "api.Plan"
	var p models.Plan
	ctx = gateway.WithRoute(ctx, "/subscriptions/plans/{id}")
	if err := a.get(ctx, "/subscriptions/plans/"+url.PathEscape(id), &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// Subscribe оформляет подписку на тариф и инициирует оплату.
func (a *API) Subscribe(ctx context.Context, planID string) (*SubscribeResponse, error) {
	const op = "api.Subscribe"
	var resp SubscribeResponse
	if err := a.post(ctx, "/subscriptions/subscribe", map[string]string{"plan_id": planID}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// StartTrial запускает пробный период.
func (a *API) StartTrial(ctx context.Context) (*SubscriptionResponse, error) {
	const op = "api.StartTrial"
	var resp SubscriptionResponse
	if err := a.post(ctx, "/subscriptions/start-trial", nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// MySubscription возвращает текущую подписку пользователя.
func (a *API) MySubscription(ctx context.Context) (*models.Subscription, error) {
	const op = "api.MySubscription"
	var resp struct {
		Subscription *models.Subscription `json:"subscription"`
	}
	if err := a.get(ctx, "/subscriptions/my-subscription", &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp.Subscription, nil
}

// CancelSubscription отменяет подписку.
func (a *API) CancelSubscription(ctx context.Context) (*SubscriptionResponse, error) {
	const op = "api.CancelSubscription"
	var resp SubscriptionResponse
	if err := a.post(ctx, "/subscriptions/cancel", nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}
