// Package models содержит доменные структуры клиента: снимок профиля
// пользователя с сервера, частичные обновления профиля, тарифы, подписки,
// KYC и инвестиционные продукты.
package models

import (
	"fmt"
	"strings"
	"time"
)

// KYCStatus — статус проверки документов пользователя.
type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
)

// Normalize приводит неизвестный или пустой статус к not_submitted.
func (s KYCStatus) Normalize() KYCStatus {
	switch KYCStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case KYCPending:
		return KYCPending
	case KYCApproved:
		return KYCApproved
	case KYCRejected:
		return KYCRejected
	default:
		return KYCNotSubmitted
	}
}

// UserProfile — снимок записи пользователя с сервера (GET /auth/me).
// Nullable поля сервера представлены указателями.
type UserProfile struct {
	ID                    string    `json:"id"`
	FullName              string    `json:"full_name"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	PhoneVerified         bool      `json:"phone_verified"`
	PhoneVerifiedAt       *string   `json:"phone_verified_at"`
	ProfileCompleted      bool      `json:"profile_completed"`
	DateOfBirth           *string   `json:"date_of_birth"`
	Country               *string   `json:"country"`
	City                  *string   `json:"city"`
	Address               *string   `json:"address"`
	KYCStatus             KYCStatus `json:"kyc_status"`
	KYCSubmittedAt        *string   `json:"kyc_submitted_at"`
	KYCReviewedAt         *string   `json:"kyc_reviewed_at"`
	KYCRejectionReason    *string   `json:"kyc_rejection_reason"`
	HasSubscription       bool      `json:"has_subscription"`
	SubscriptionActive    bool      `json:"subscription_active"`
	SubscriptionExpiresAt *string   `json:"subscription_expires_at"`
	IsActive              bool      `json:"is_active"`
	IsVerified            bool      `json:"is_verified"`
	CanInvest             bool      `json:"can_invest"`
	CreatedAt             string    `json:"created_at"`
	UpdatedAt             string    `json:"updated_at"`
	LastLogin             string    `json:"last_login"`
}

// timestampLayouts — форматы дат, которые присылает бэкенд.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp разбирает дату бэкенда; без зоны считается UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("models.ParseTimestamp: unsupported timestamp %q", s)
}

// SubscriptionExpiry возвращает дату окончания подписки.
// ok=false, если дата не задана; err != nil, если задана, но не разбирается.
func (u *UserProfile) SubscriptionExpiry() (t time.Time, ok bool, err error) {
	if u.SubscriptionExpiresAt == nil || strings.TrimSpace(*u.SubscriptionExpiresAt) == "" {
		return time.Time{}, false, nil
	}
	t, err = ParseTimestamp(*u.SubscriptionExpiresAt)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

// Clone возвращает глубокую копию профиля.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.PhoneVerifiedAt = cloneStr(u.PhoneVerifiedAt)
	c.DateOfBirth = cloneStr(u.DateOfBirth)
	c.Country = cloneStr(u.Country)
	c.City = cloneStr(u.City)
	c.Address = cloneStr(u.Address)
	c.KYCSubmittedAt = cloneStr(u.KYCSubmittedAt)
	c.KYCReviewedAt = cloneStr(u.KYCReviewedAt)
	c.KYCRejectionReason = cloneStr(u.KYCRejectionReason)
	c.SubscriptionExpiresAt = cloneStr(u.SubscriptionExpiresAt)
	return &c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
