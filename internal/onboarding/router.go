// Package onboarding решает, на какой этап онбординга направить пользователя.
//
// Route — чистая функция без ввода-вывода: этапы проверяются строго по порядку
// (вход → заполнение профиля → KYC → подписка → приложение), первое совпадение
// побеждает. Отсутствующие или неразборчивые поля трактуются самым строгим
// образом.
package onboarding

import (
	"time"

	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/session"
)

// Destination — экран верхнего уровня, куда направляется пользователь.
type Destination string

const (
	Auth              Destination = "Auth"
	ProfileCompletion Destination = "ProfileCompletion"
	KYC               Destination = "KYC"
	Subscription      Destination = "Subscription"
	MainApp           Destination = "MainApp"
)

// Destinations — полный закрытый набор значений в порядке конвейера.
var Destinations = []Destination{Auth, ProfileCompletion, KYC, Subscription, MainApp}

// Route вычисляет направление по признаку аутентификации и снимку профиля.
func Route(isAuthenticated bool, user *models.UserProfile, now time.Time) Destination {
	if !isAuthenticated {
		return Auth
	}
	// сессия без профиля не должна встречаться; пускаем в приложение,
	// права на инвестирование всё равно проверяет сервер
	if user == nil {
		return MainApp
	}
	if !user.ProfileCompleted {
		return ProfileCompletion
	}
	switch user.KYCStatus.Normalize() {
	case models.KYCNotSubmitted, models.KYCRejected:
		return KYC
	}
	if !user.HasSubscription && !user.SubscriptionActive {
		return Subscription
	}
	if subscriptionExpired(user, now) {
		return Subscription
	}
	return MainApp
}

// subscriptionExpired: дата, которую нельзя разобрать, считается истёкшей.
func subscriptionExpired(user *models.UserProfile, now time.Time) bool {
	expiresAt, ok, err := user.SubscriptionExpiry()
	if !ok {
		return false
	}
	if err != nil {
		return true
	}
	return expiresAt.Before(now)
}

// Gate описывает текущий этап для отображения: куда направлен пользователь
// и почему.
type Gate struct {
	Destination Destination `json:"destination"`
	Reason      string      `json:"reason"`
}

// Explain возвращает направление вместе с причиной.
func Explain(isAuthenticated bool, user *models.UserProfile, now time.Time) Gate {
	d := Route(isAuthenticated, user, now)
	var reason string
	switch d {
	case Auth:
		reason = "not authenticated"
	case ProfileCompletion:
		reason = "profile is not completed"
	case KYC:
		if user.KYCStatus.Normalize() == models.KYCRejected {
			reason = "kyc was rejected, resubmission required"
		} else {
			reason = "kyc documents not submitted"
		}
	case Subscription:
		if subscriptionExpired(user, now) && (user.HasSubscription || user.SubscriptionActive) {
			reason = "subscription expired"
		} else {
			reason = "no active subscription"
		}
	case MainApp:
		switch {
		case user == nil:
			reason = "no cached profile"
		case user.KYCStatus.Normalize() == models.KYCPending:
			reason = "kyc under review, investing disabled until approved"
		default:
			reason = "onboarding complete"
		}
	}
	return Gate{Destination: d, Reason: reason}
}

// Evaluate — Route поверх снимка сессии. Состояние TokensPendingVerification
// не аутентифицировано и ведёт на Auth.
func Evaluate(snap session.Snapshot, user *models.UserProfile, now time.Time) Destination {
	return Route(snap.State == session.Authenticated, user, now)
}
