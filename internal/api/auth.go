package api

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/capitalized/internal/models"
)

// RegisterRequest — тело POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// RegisterResponse — ответ регистрации.
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	OTPSent bool   `json:"otp_sent"`
}

// TokenPair — выданные сервером токены.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// LoginResponse — ответ входа: токены и профиль.
type LoginResponse struct {
	TokenPair
	User models.UserProfile `json:"user"`
}

// VerifyPhoneResponse — ответ подтверждения телефона с новыми токенами.
type VerifyPhoneResponse struct {
	TokenPair
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageResponse — ответ вида {success, message}.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UpdateProfileRequest — тело PUT /auth/profile.
type UpdateProfileRequest struct {
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// UpdateProfileResponse — обновлённые поля профиля.
type UpdateProfileResponse struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	DateOfBirth      string `json:"date_of_birth"`
	Country          string `json:"country"`
	City             string `json:"city"`
	Address          string `json:"address"`
	ProfileCompleted bool   `json:"profile_completed"`
}

// Patch превращает ответ в частичное обновление кэша профиля.
func (r UpdateProfileResponse) Patch() models.UserPatch {
	p := models.UserPatch{
		ProfileCompleted: models.Ptr(r.ProfileCompleted),
		Address:          models.Ptr(r.Address),
		City:             models.Ptr(r.City),
		Country:          models.Ptr(r.Country),
		DateOfBirth:      models.Ptr(r.DateOfBirth),
	}
	if r.FullName != "" {
		p.FullName = models.Ptr(r.FullName)
	}
	return p
}

// Register создаёт аккаунт; сервер отправляет OTP на телефон.
func (a *API) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	const op = "api.Register"
	var resp RegisterResponse
	if err := a.post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// Login входит по email или телефону.
func (a *API) Login(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	const op = "api.Login"
	body := map[string]string{"identifier": identifier, "password": password}
	var resp LoginResponse
	if err := a.post(ctx, "/auth/login", body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// VerifyPhone подтверждает телефон кодом из SMS.
func (a *API) VerifyPhone(ctx context.Context, phone, otp string) (*VerifyPhoneResponse, error) {
	const op = "api.VerifyPhone"
	body := map[string]string{"otp": otp, "phone": phone}
	var resp VerifyPhoneResponse
	if err := a.post(ctx, "/auth/verify-phone", body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// ResendOTP запрашивает повторную отправку кода.
func (a *API) ResendOTP(ctx context.Context, phone string) (*MessageResponse, error) {
	const op = "api.ResendOTP"
	var resp MessageResponse
	if err := a.post(ctx, "/auth/resend-otp", map[string]string{"phone": phone}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// Me возвращает профиль текущего пользователя.
func (a *API) Me(ctx context.Context) (*models.UserProfile, error) {
	const op = "api.Me"
	var u models.UserProfile
	if err := a.get(ctx, "/auth/me", &u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// UpdateProfile дозаполняет профиль.
func (a *API) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*UpdateProfileResponse, error) {
	const op = "api.UpdateProfile"
	var resp UpdateProfileResponse
	if err := a.put(ctx, "/auth/profile", req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}
