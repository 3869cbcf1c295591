package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/capitalized/internal/api"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// Subscribe оформляет подписку на тариф. Оплата подтверждается вне клиента
// (STK push); при success профиль помечается подписанным.
func (s *Service) Subscribe(ctx context.Context, planID string) (*api.SubscribeResponse, error) {
	const op = "services.Subscribe"
	ctx = s.profiles.Pin(ctx)
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, s.fail(ActionSubscribe, "", &validation.Error{Fields: map[string]string{"plan_id": "Please choose a plan"}})
	}
	if err := s.requireSession(ctx, ActionSubscribe); err != nil {
		return nil, err
	}

	resp, err := s.backend.Subscribe(ctx, planID)
	if err != nil {
		return nil, s.fail(ActionSubscribe, "Failed to subscribe. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	if !resp.Success {
		return nil, &ActionError{Action: ActionSubscribe, Message: nonEmpty(resp.Message, "Failed to subscribe. Please try again."), Err: fmt.Errorf("%s: rejected by server", op)}
	}
	if err := s.profiles.UpdateUser(ctx, s.activatedPatch(resp.Subscription)); err != nil {
		return nil, s.fail(ActionSubscribe, "", fmt.Errorf("%s: %w", op, err))
	}
	s.log.Info("subscribed", sl.Op(op), slog.String("plan_id", planID))
	return resp, nil
}

// StartTrial запускает пробный период.
func (s *Service) StartTrial(ctx context.Context) (*api.SubscriptionResponse, error) {
	const op = "services.StartTrial"
	ctx = s.profiles.Pin(ctx)
	if err := s.requireSession(ctx, ActionStartTrial); err != nil {
		return nil, err
	}
	resp, err := s.backend.StartTrial(ctx)
	if err != nil {
		return nil, s.fail(ActionStartTrial, "Failed to start trial. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	if !resp.Success {
		return nil, &ActionError{Action: ActionStartTrial, Message: nonEmpty(resp.Message, "Failed to start trial. Please try again."), Err: fmt.Errorf("%s: rejected by server", op)}
	}
	if err := s.profiles.UpdateUser(ctx, s.activatedPatch(resp.Subscription)); err != nil {
		return nil, s.fail(ActionStartTrial, "", fmt.Errorf("%s: %w", op, err))
	}
	s.log.Info("trial started", sl.Op(op))
	return resp, nil
}

// MySubscription читает текущую подписку и синхронизирует с ней профиль.
func (s *Service) MySubscription(ctx context.Context) (*models.Subscription, error) {
	const op = "services.MySubscription"
	ctx = s.profiles.Pin(ctx)
	if err := s.requireSession(ctx, ActionMySub); err != nil {
		return nil, err
	}
	sub, err := s.backend.MySubscription(ctx)
	if err == nil && sub != nil {
		err = s.profiles.UpdateUser(ctx, sub.Patch())
	}
	if err != nil {
		return nil, s.fail(ActionMySub, "Failed to load subscription.", fmt.Errorf("%s: %w", op, err))
	}
	return sub, nil
}

// CancelSubscription отменяет подписку. Доступ к инвестициям закрывается сразу.
func (s *Service) CancelSubscription(ctx context.Context) (*api.SubscriptionResponse, error) {
	const op = "services.CancelSubscription"
	ctx = s.profiles.Pin(ctx)
	if err := s.requireSession(ctx, ActionCancelSub); err != nil {
		return nil, err
	}
	resp, err := s.backend.CancelSubscription(ctx)
	if err != nil {
		return nil, s.fail(ActionCancelSub, "Failed to cancel subscription. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	if resp.Success {
		patch := models.UserPatch{
			SubscriptionActive: models.Ptr(false),
			CanInvest:          models.Ptr(false),
		}
		if err := s.profiles.UpdateUser(ctx, patch); err != nil {
			return nil, s.fail(ActionCancelSub, "", fmt.Errorf("%s: %w", op, err))
		}
	}
	if resp.Message == "" {
		resp.Message = "Your subscription has been cancelled successfully."
	}
	s.log.Info("subscription cancelled", sl.Op(op), slog.Bool("success", resp.Success))
	return resp, nil
}

// activatedPatch — патч после успешной подписки или триала. Инвестировать
// можно только с одобренным KYC.
func (s *Service) activatedPatch(sub *models.Subscription) models.UserPatch {
	approved := false
	if u := s.profiles.User(); u != nil {
		approved = u.KYCStatus.Normalize() == models.KYCApproved
	}
	p := models.UserPatch{
		HasSubscription:    models.Ptr(true),
		SubscriptionActive: models.Ptr(true),
		CanInvest:          models.Ptr(approved),
	}
	if sub != nil && sub.EndDate != "" {
		p.SubscriptionExpiresAt = models.Ptr(sub.EndDate)
	}
	return p
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
