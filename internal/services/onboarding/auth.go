package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/capitalized/internal/api"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// RegisterInput — данные формы регистрации.
type RegisterInput struct {
	FullName string `json:"full_name" label:"Name" validate:"required"`
	Email    string `json:"email" label:"Email" validate:"required,email"`
	Phone    string `json:"phone" label:"Phone number" validate:"required,ke_phone"`
	Password string `json:"password" label:"Password" validate:"required,min=8"`
}

// LoginInput — данные формы входа. Identifier — email или телефон.
type LoginInput struct {
	Identifier string `json:"identifier" label:"Email or phone number" validate:"required"`
	Password   string `json:"password" label:"Password" validate:"required"`
}

// VerifyInput — код подтверждения телефона.
type VerifyInput struct {
	Phone string `json:"phone" label:"Phone number" validate:"required"`
	OTP   string `json:"otp" validate:"otp"`
}

// LoginResult — итог входа.
type LoginResult struct {
	// NeedsPhoneVerification — токены сохранены, но в приложение пускать
	// рано: сначала подтверждение телефона.
	NeedsPhoneVerification bool   `json:"needs_phone_verification"`
	Phone                  string `json:"phone"`
}

// Register создаёт аккаунт. Телефон нормализуется к +254.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*api.RegisterResponse, error) {
	const op = "services.Register"
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return nil, s.fail(ActionRegister, "", err)
	}

	resp, err := s.backend.Register(ctx, api.RegisterRequest{
		Email:    in.Email,
		FullName: in.FullName,
		Password: in.Password,
		Phone:    validation.NormalizePhone(in.Phone),
	})
	if err != nil {
		return nil, s.fail(ActionRegister, "Registration failed. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	if resp.Phone == "" {
		resp.Phone = validation.NormalizePhone(in.Phone)
	}
	s.log.Info("user registered", sl.Op(op), slog.String("user_id", resp.UserID), slog.Bool("otp_sent", resp.OTPSent))
	return resp, nil
}

// Login входит в аккаунт. Токены и профиль сохраняются всегда; сессия
// становится аутентифицированной только при подтверждённом телефоне.
// При любой ошибке сессия сбрасывается.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	const op = "services.Login"
	ctx = s.profiles.Pin(ctx)
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := s.validate.Validate(in); err != nil {
		return nil, s.fail(ActionLogin, "", err)
	}

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	resp, err := s.backend.Login(ctx, in.Identifier, in.Password)
	if err == nil {
		err = s.session.SetTokensOnly(ctx, resp.AccessToken, resp.RefreshToken)
	}
	if err == nil {
		err = s.profiles.SetUser(ctx, &resp.User)
	}
	if err == nil && resp.User.PhoneVerified {
		err = s.session.SetAuthenticated(true)
	}
	if err != nil {
		s.resetAfterFailure(ctx, op, err)
		return nil, s.fail(ActionLogin, "Login failed. Please check your credentials.", fmt.Errorf("%s: %w", op, err))
	}

	s.log.Info("user logged in", sl.Op(op), slog.String("user_id", resp.User.ID), slog.Bool("phone_verified", resp.User.PhoneVerified))
	return &LoginResult{
		NeedsPhoneVerification: !resp.User.PhoneVerified,
		Phone:                  resp.User.Phone,
	}, nil
}

// VerifyPhone подтверждает телефон: новые токены, свежий профиль,
// аутентификация. При ошибке сессия сбрасывается.
func (s *Service) VerifyPhone(ctx context.Context, in VerifyInput) error {
	const op = "services.VerifyPhone"
	ctx = s.profiles.Pin(ctx)
	in.OTP = strings.TrimSpace(in.OTP)
	if err := s.validate.Validate(in); err != nil {
		return s.fail(ActionVerifyPhone, "", err)
	}

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	if err := s.verifyPhone(ctx, in); err != nil {
		s.resetAfterFailure(ctx, op, err)
		return s.fail(ActionVerifyPhone, "Invalid verification code. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	s.log.Info("phone verified", sl.Op(op))
	return nil
}

func (s *Service) verifyPhone(ctx context.Context, in VerifyInput) error {
	resp, err := s.backend.VerifyPhone(ctx, in.Phone, in.OTP)
	if err != nil {
		return err
	}
	if err := s.session.SetTokensOnly(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		return err
	}
	user, err := s.backend.Me(ctx)
	if err != nil {
		return err
	}
	if err := s.profiles.SetUser(ctx, user); err != nil {
		return err
	}
	return s.session.SetAuthenticated(true)
}

// ResendOTP запрашивает новый код и возвращает сообщение сервера.
func (s *Service) ResendOTP(ctx context.Context, phone string) (string, error) {
	const op = "services.ResendOTP"
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", s.fail(ActionResendOTP, "", &validation.Error{Fields: map[string]string{"phone": "Phone number is required"}})
	}
	resp, err := s.backend.ResendOTP(ctx, phone)
	if err != nil {
		return "", s.fail(ActionResendOTP, "Failed to resend code. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	if resp.Message == "" {
		return "OTP resent successfully! Check your phone.", nil
	}
	return resp.Message, nil
}

// RefreshUser перечитывает профиль с сервера и заменяет кэш.
func (s *Service) RefreshUser(ctx context.Context) error {
	const op = "services.RefreshUser"
	ctx = s.profiles.Pin(ctx)
	if err := s.requireSession(ctx, ActionRefreshUser); err != nil {
		return err
	}
	user, err := s.backend.Me(ctx)
	if err == nil {
		err = s.profiles.SetUser(ctx, user)
	}
	if err != nil {
		return s.fail(ActionRefreshUser, "Failed to load profile.", fmt.Errorf("%s: %w", op, err))
	}
	return nil
}
