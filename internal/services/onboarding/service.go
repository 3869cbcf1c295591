// Package services содержит действия онбординга: регистрацию, вход,
// подтверждение телефона, заполнение профиля, KYC и подписку.
//
// Это граница действия: сетевые ошибки и ошибки хранилища перехватываются
// здесь и превращаются в *ActionError с текстом для пользователя.
// Маршрутизация после действия не выполняется, вызывающий пересчитывает
// Destination по новому состоянию.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/capitalized/internal/api"
	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/profile"
	"github.com/magabrotheeeer/capitalized/internal/session"
	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// Backend описывает вызовы REST-бэкенда, нужные действиям.
type Backend interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error)
	VerifyPhone(ctx context.Context, phone, otp string) (*api.VerifyPhoneResponse, error)
	ResendOTP(ctx context.Context, phone string) (*api.MessageResponse, error)
	Me(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, req api.UpdateProfileRequest) (*api.UpdateProfileResponse, error)
	KYCUploadURLs(ctx context.Context) (*models.KYCUploadURLs, error)
	SubmitKYC(ctx context.Context, req models.KYCSubmission) (*models.KYCSubmitResult, error)
	KYCStatus(ctx context.Context) (*models.KYCStatusInfo, error)
	Subscribe(ctx context.Context, planID string) (*api.SubscribeResponse, error)
	StartTrial(ctx context.Context) (*api.SubscriptionResponse, error)
	MySubscription(ctx context.Context) (*models.Subscription, error)
	CancelSubscription(ctx context.Context) (*api.SubscriptionResponse, error)
}

// Session — контроллер сессии.
type Session interface {
	SetTokensOnly(ctx context.Context, access, refresh string) error
	SetAuthenticated(authenticated bool) error
	ClearAuth(ctx context.Context) error
	SetLoading(loading bool)
	SetError(msg string)
	Snapshot() session.Snapshot
}

// Profiles — кэш профиля.
type Profiles interface {
	Pin(ctx context.Context) context.Context
	SetUser(ctx context.Context, u *models.UserProfile) error
	UpdateUser(ctx context.Context, patch models.UserPatch) error
	User() *models.UserProfile
}

// Названия действий для ActionError и логов.
const (
	ActionRegister      = "register"
	ActionLogin         = "login"
	ActionVerifyPhone   = "verify_phone"
	ActionResendOTP     = "resend_otp"
	ActionRefreshUser   = "refresh_user"
	ActionProfile       = "complete_profile"
	ActionKYCUploadURLs = "kyc_upload_urls"
	ActionSubmitKYC     = "submit_kyc"
	ActionKYCStatus     = "kyc_status"
	ActionSubscribe     = "subscribe"
	ActionStartTrial    = "start_trial"
	ActionMySub         = "my_subscription"
	ActionCancelSub     = "cancel_subscription"
	ActionLogout        = "logout"
)

// MsgSessionExpired — текст, когда действие требует сессии, а её нет.
const MsgSessionExpired = "Your session has expired. Please log in again."

// ErrNotAuthenticated возвращается действиями, которым нужна сессия.
var ErrNotAuthenticated = errors.New("not authenticated")

// ActionError — провал действия с текстом для показа пользователю.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Action, e.Message, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Service выполняет действия онбординга.
type Service struct {
	backend  Backend
	session  Session
	profiles Profiles
	validate *validation.Validator
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(backend Backend, sess Session, profiles Profiles, log *slog.Logger) *Service {
	return &Service{
		backend:  backend,
		session:  sess,
		profiles: profiles,
		validate: validation.New(),
		log:      log,
		now:      time.Now,
	}
}

// Destination вычисляет экран по текущим сессии и профилю.
func (s *Service) Destination() onboarding.Destination {
	return onboarding.Evaluate(s.session.Snapshot(), s.profiles.User(), s.now())
}

// Explain — Destination с причиной.
func (s *Service) Explain() onboarding.Gate {
	snap := s.session.Snapshot()
	return onboarding.Explain(snap.State == session.Authenticated, s.profiles.User(), s.now())
}

// Logout завершает сессию; профиль очищается вместе с ней.
func (s *Service) Logout(ctx context.Context) error {
	const op = "services.Logout"
	if err := s.session.ClearAuth(ctx); err != nil {
		s.log.Error("logout left storage dirty", sl.Op(op), sl.Err(err))
		return &ActionError{Action: ActionLogout, Message: "Failed to clear saved session", Err: err}
	}
	s.log.Info("user logged out", sl.Op(op))
	return nil
}

// fail превращает ошибку в *ActionError. Ошибки валидации отдают текст
// первого поля, остальные проходят через gateway.UserMessage.
func (s *Service) fail(action, fallback string, err error) error {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return &ActionError{Action: action, Message: vErr.First(), Err: err}
	}
	var aErr *ActionError
	if errors.As(err, &aErr) {
		return aErr
	}
	if errors.Is(err, profile.ErrCleared) {
		return &ActionError{Action: action, Message: MsgSessionExpired, Err: err}
	}
	msg := gateway.UserMessage(err, fallback)
	s.log.Warn("action failed", slog.String("action", action), slog.String("message", msg), sl.Err(err))
	return &ActionError{Action: action, Message: msg, Err: err}
}

// resetAfterFailure сбрасывает полуготовую сессию. При 401 сессию уже
// сбросил gateway, а при ErrCleared её сбросил выход; повторный сброс не нужен.
func (s *Service) resetAfterFailure(ctx context.Context, op string, cause error) {
	if gateway.IsAuthError(cause) || errors.Is(cause, profile.ErrCleared) {
		return
	}
	if err := s.session.ClearAuth(ctx); err != nil {
		s.log.Error("failed to reset session after error", sl.Op(op), sl.Err(err))
	}
}

// requireSession проверяет, что у клиента есть токены. Без них действие
// не отправляется, а остатки сессии сбрасываются.
func (s *Service) requireSession(ctx context.Context, action string) error {
	if s.session.Snapshot().HasTokens {
		return nil
	}
	if err := s.session.ClearAuth(ctx); err != nil {
		s.log.Error("failed to reset session", slog.String("action", action), sl.Err(err))
	}
	return &ActionError{Action: action, Message: MsgSessionExpired, Err: ErrNotAuthenticated}
}
