package models

// UserPatch — частичное обновление профиля после подтверждённого сервером
// действия (обновление профиля, отправка KYC, подписка). nil — поле не меняется.
type UserPatch struct {
	FullName              *string    `json:"full_name,omitempty"`
	Email                 *string    `json:"email,omitempty"`
	Phone                 *string    `json:"phone,omitempty"`
	PhoneVerified         *bool      `json:"phone_verified,omitempty"`
	ProfileCompleted      *bool      `json:"profile_completed,omitempty"`
	DateOfBirth           *string    `json:"date_of_birth,omitempty"`
	Country               *string    `json:"country,omitempty"`
	City                  *string    `json:"city,omitempty"`
	Address               *string    `json:"address,omitempty"`
	KYCStatus             *KYCStatus `json:"kyc_status,omitempty"`
	KYCSubmittedAt        *string    `json:"kyc_submitted_at,omitempty"`
	HasSubscription       *bool      `json:"has_subscription,omitempty"`
	SubscriptionActive    *bool      `json:"subscription_active,omitempty"`
	SubscriptionExpiresAt *string    `json:"subscription_expires_at,omitempty"`
	CanInvest             *bool      `json:"can_invest,omitempty"`
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p UserPatch) IsEmpty() bool {
	return p == UserPatch{}
}

// Apply возвращает копию u с применёнными полями патча.
func (p UserPatch) Apply(u UserProfile) UserProfile {
	out := *u.Clone()
	setStr(&out.FullName, p.FullName)
	setStr(&out.Email, p.Email)
	setStr(&out.Phone, p.Phone)
	setBool(&out.PhoneVerified, p.PhoneVerified)
	setBool(&out.ProfileCompleted, p.ProfileCompleted)
	setPtr(&out.DateOfBirth, p.DateOfBirth)
	setPtr(&out.Country, p.Country)
	setPtr(&out.City, p.City)
	setPtr(&out.Address, p.Address)
	if p.KYCStatus != nil {
		out.KYCStatus = *p.KYCStatus
	}
	setPtr(&out.KYCSubmittedAt, p.KYCSubmittedAt)
	setBool(&out.HasSubscription, p.HasSubscription)
	setBool(&out.SubscriptionActive, p.SubscriptionActive)
	setPtr(&out.SubscriptionExpiresAt, p.SubscriptionExpiresAt)
	setBool(&out.CanInvest, p.CanInvest)
	return out
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setPtr(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

// Ptr возвращает указатель на v. Удобно для сборки патчей.
func Ptr[T any](v T) *T {
	return &v
}
