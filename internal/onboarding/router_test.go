package onboarding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/session"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func completeUser() *models.UserProfile {
	return &models.UserProfile{
		ID:                    "u1",
		PhoneVerified:         true,
		ProfileCompleted:      true,
		KYCStatus:             models.KYCApproved,
		HasSubscription:       true,
		SubscriptionActive:    true,
		SubscriptionExpiresAt: models.Ptr(now.Add(30 * 24 * time.Hour).Format(time.RFC3339)),
		CanInvest:             true,
	}
}

func with(mut func(u *models.UserProfile)) *models.UserProfile {
	u := completeUser()
	mut(u)
	return u
}

func allKYC() []models.KYCStatus {
	return []models.KYCStatus{models.KYCNotSubmitted, models.KYCPending, models.KYCApproved, models.KYCRejected, "", "garbage"}
}

func TestRoute_UnauthenticatedAlwaysAuth(t *testing.T) {
	users := []*models.UserProfile{nil, completeUser(), with(func(u *models.UserProfile) { u.ProfileCompleted = false })}
	for _, st := range allKYC() {
		st := st
		users = append(users, with(func(u *models.UserProfile) { u.KYCStatus = st }))
	}
	for _, u := range users {
		assert.Equal(t, Auth, Route(false, u, now))
	}
}

func TestRoute_NilUserFallsBackToMainApp(t *testing.T) {
	assert.Equal(t, MainApp, Route(true, nil, now))
}

func TestRoute_ProfileGateDominates(t *testing.T) {
	for _, st := range allKYC() {
		for _, sub := range []bool{true, false} {
			u := with(func(u *models.UserProfile) {
				u.ProfileCompleted = false
				u.KYCStatus = st
				u.HasSubscription = sub
				u.SubscriptionActive = sub
			})
			assert.Equal(t, ProfileCompletion, Route(true, u, now), "kyc=%s sub=%v", st, sub)
		}
	}
}

func TestRoute_KYCGate(t *testing.T) {
	for _, st := range []models.KYCStatus{models.KYCNotSubmitted, models.KYCRejected, "", "unknown"} {
		for _, sub := range []bool{true, false} {
			u := with(func(u *models.UserProfile) {
				u.KYCStatus = st
				u.HasSubscription = sub
				u.SubscriptionActive = sub
			})
			assert.Equal(t, KYC, Route(true, u, now), "kyc=%q sub=%v", st, sub)
		}
	}
}

func TestRoute_SubscriptionGate(t *testing.T) {
	for _, st := range []models.KYCStatus{models.KYCPending, models.KYCApproved} {
		u := with(func(u *models.UserProfile) {
			u.KYCStatus = st
			u.HasSubscription = false
			u.SubscriptionActive = false
		})
		assert.Equal(t, Subscription, Route(true, u, now), "kyc=%s", st)
	}
}

func TestRoute_ExpiredSubscription(t *testing.T) {
	tests := []struct {
		name    string
		expires *string
		want    Destination
	}{
		{name: "in the past", expires: models.Ptr(now.Add(-time.Minute).Format(time.RFC3339)), want: Subscription},
		{name: "in the future", expires: models.Ptr(now.Add(time.Minute).Format(time.RFC3339)), want: MainApp},
		{name: "unset", expires: nil, want: MainApp},
		{name: "malformed fails closed", expires: models.Ptr("next tuesday"), want: Subscription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := with(func(u *models.UserProfile) {
				u.HasSubscription = true
				u.SubscriptionExpiresAt = tt.expires
			})
			assert.Equal(t, tt.want, Route(true, u, now))
		})
	}
}

func TestRoute_PendingKYCIsNotAGate(t *testing.T) {
	u := with(func(u *models.UserProfile) {
		u.KYCStatus = models.KYCPending
		u.CanInvest = false
	})
	assert.Equal(t, MainApp, Route(true, u, now))
}

func TestRoute_EitherSubscriptionFlagIsEnough(t *testing.T) {
	onlyHas := with(func(u *models.UserProfile) { u.SubscriptionActive = false })
	onlyActive := with(func(u *models.UserProfile) { u.HasSubscription = false })
	assert.Equal(t, MainApp, Route(true, onlyHas, now))
	assert.Equal(t, MainApp, Route(true, onlyActive, now))
}

func TestRoute_ZeroValueProfileFailsClosed(t *testing.T) {
	assert.Equal(t, ProfileCompletion, Route(true, &models.UserProfile{}, now))
	assert.Equal(t, KYC, Route(true, &models.UserProfile{ProfileCompleted: true}, now))
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name   string
		auth   bool
		user   *models.UserProfile
		want   Destination
		reason string
	}{
		{name: "logged out", auth: false, user: nil, want: Auth, reason: "not authenticated"},
		{name: "rejected kyc", auth: true, user: with(func(u *models.UserProfile) { u.KYCStatus = models.KYCRejected }), want: KYC, reason: "kyc was rejected, resubmission required"},
		{name: "expired", auth: true, user: with(func(u *models.UserProfile) {
			u.SubscriptionExpiresAt = models.Ptr(now.Add(-time.Hour).Format(time.RFC3339))
		}), want: Subscription, reason: "subscription expired"},
		{name: "pending kyc", auth: true, user: with(func(u *models.UserProfile) { u.KYCStatus = models.KYCPending }), want: MainApp, reason: "kyc under review, investing disabled until approved"},
		{name: "complete", auth: true, user: completeUser(), want: MainApp, reason: "onboarding complete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Explain(tt.auth, tt.user, now)
			assert.Equal(t, tt.want, g.Destination)
			assert.Equal(t, tt.reason, g.Reason)
		})
	}
}

func TestEvaluate(t *testing.T) {
	user := completeUser()

	assert.Equal(t, Auth, Evaluate(session.Snapshot{State: session.LoggedOut}, user, now))
	assert.Equal(t, Auth, Evaluate(session.Snapshot{State: session.TokensPendingVerification, HasTokens: true}, user, now))
	assert.Equal(t, MainApp, Evaluate(session.Snapshot{State: session.Authenticated, IsAuthenticated: true}, user, now))
}
