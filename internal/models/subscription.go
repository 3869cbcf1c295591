package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PlanFeatures — набор возможностей тарифа.
type PlanFeatures struct {
	APIAccess            bool   `json:"api_access"`
	MaxInvestments       string `json:"max_investments"`
	PrioritySupport      bool   `json:"priority_support"`
	AdvancedAnalytics    bool   `json:"advanced_analytics"`
	PortfolioTracking    bool   `json:"portfolio_tracking"`
	EmailNotifications   bool   `json:"email_notifications"`
	WithdrawalRequests   string `json:"withdrawal_requests"`
	InvestmentCalculator bool   `json:"investment_calculator"`
}

// Plan — тариф подписки. Цена приходит строкой ("5000.00").
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DurationDays int             `json:"duration_days"`
	Features     PlanFeatures    `json:"features"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// Статусы подписки, которые дают доступ.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// Subscription — подписка пользователя.
type Subscription struct {
	ID            string `json:"id"`
	Plan          *Plan  `json:"plan,omitempty"`
	PlanID        string `json:"plan_id,omitempty"`
	Status        string `json:"status"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	DaysRemaining int    `json:"days_remaining"`
	AutoRenew     bool   `json:"auto_renew"`
	IsTrial       bool   `json:"is_trial"`
}

// IsActive сообщает, даёт ли подписка доступ по статусу.
func (s *Subscription) IsActive() bool {
	if s == nil {
		return false
	}
	switch strings.ToLower(s.Status) {
	case SubscriptionStatusActive, SubscriptionStatusTrial:
		return true
	default:
		return false
	}
}

// Patch превращает ответ сервера о подписке в частичное обновление профиля.
func (s *Subscription) Patch() UserPatch {
	active := s.IsActive()
	p := UserPatch{
		HasSubscription:    Ptr(active),
		SubscriptionActive: Ptr(active),
	}
	if s != nil && s.EndDate != "" {
		p.SubscriptionExpiresAt = Ptr(s.EndDate)
	}
	return p
}

// PaymentInfo — данные оплаты через мобильные деньги (M-Pesa STK push).
type PaymentInfo struct {
	PaymentID   string          `json:"payment_id,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Status      string          `json:"status,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Instruction string          `json:"instruction,omitempty"`
}
