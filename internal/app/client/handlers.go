package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/http/response"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
	services "github.com/magabrotheeeer/capitalized/internal/services/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/session"
	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// StateView — ответ GET /api/v1/state.
type StateView struct {
	Session     session.Snapshot       `json:"session"`
	User        *models.UserProfile    `json:"user"`
	Destination onboarding.Destination `json:"destination"`
	Reason      string                 `json:"reason"`
	ProfileErr  string                 `json:"profile_error,omitempty"`
}

// LoginView — ответ POST /api/v1/login: итог входа и новое состояние.
type LoginView struct {
	services.LoginResult
	StateView
}

type sessionView interface {
	Snapshot() session.Snapshot
}

type profileView interface {
	User() *models.UserProfile
	Err() string
}

type onboardingActions interface {
	Explain() onboarding.Gate
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	VerifyPhone(ctx context.Context, in services.VerifyInput) error
	RefreshUser(ctx context.Context) error
	Logout(ctx context.Context) error
}

type handlers struct {
	log      *slog.Logger
	session  sessionView
	profiles profileView
	service  onboardingActions
}

// health godoc
// @Summary Проверка живости
// @Tags Status
// @Produce json
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"health": "ok"}))
}

// state godoc
// @Summary Текущее состояние клиента
// @Description Сессия без токенов, кэш профиля и экран, на который направлен пользователь.
// @Tags Status
// @Produce json
// @Success 200 {object} response.Response{data=StateView}
// @Router /api/v1/state [get]
func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.view()))
}

// login godoc
// @Summary Вход в аккаунт
// @Description Сохраняет токены и профиль. С неподтверждённым телефоном сессия остаётся в ожидании подтверждения.
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Email или телефон и пароль"
// @Success 200 {object} response.Response{data=LoginView}
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 401 {object} response.Response "Неверные учетные данные"
// @Failure 502 {object} response.Response "Сервер недоступен"
// @Router /api/v1/login [post]
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	const op = "client.handlers.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req services.LoginInput
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, log, "login failed", err)
		return
	}

	log.Info("user logged in", slog.Bool("needs_phone_verification", res.NeedsPhoneVerification))
	render.JSON(w, r, response.StatusOKWithData(LoginView{LoginResult: *res, StateView: h.view()}))
}

// verify godoc
// @Summary Подтверждение телефона
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body services.VerifyInput true "Телефон и код из SMS"
// @Success 200 {object} response.Response{data=StateView}
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 502 {object} response.Response "Сервер недоступен"
// @Router /api/v1/verify [post]
func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	const op = "client.handlers.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req services.VerifyInput
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.VerifyPhone(r.Context(), req); err != nil {
		h.fail(w, r, log, "phone verification failed", err)
		return
	}

	log.Info("phone verified")
	render.JSON(w, r, response.StatusOKWithData(h.view()))
}

// refresh godoc
// @Summary Перечитать профиль
// @Description Запрашивает GET /auth/me. Ответ 401 от сервера завершает сессию.
// @Tags Onboarding
// @Produce json
// @Success 200 {object} response.Response{data=StateView}
// @Failure 401 {object} response.Response "Нет сессии или она истекла"
// @Failure 502 {object} response.Response "Сервер недоступен"
// @Router /api/v1/refresh [post]
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	const op = "client.handlers.refresh"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.RefreshUser(r.Context()); err != nil {
		h.fail(w, r, log, "failed to refresh user", err)
		return
	}

	log.Info("user refreshed")
	render.JSON(w, r, response.StatusOKWithData(h.view()))
}

// logout godoc
// @Summary Выход
// @Description Стирает токены и профиль с устройства.
// @Tags Onboarding
// @Produce json
// @Success 200 {object} response.Response{data=StateView}
// @Failure 500 {object} response.Response "Хранилище не очищено"
// @Router /api/v1/logout [post]
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	const op = "client.handlers.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.Logout(r.Context()); err != nil {
		log.Error("logout failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(actionMessage(err)))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(h.view()))
}

// fail пишет ответ по ошибке действия. Ошибки формы уходят с 422 и
// текстами по полям.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.Error(msg, sl.Err(err))
	if validation.IsValidation(err) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err))
		return
	}
	w.WriteHeader(statusFor(err))
	render.JSON(w, r, response.Error(actionMessage(err)))
}

func (h *handlers) view() StateView {
	gate := h.service.Explain()
	return StateView{
		Session:     h.session.Snapshot(),
		User:        h.profiles.User(),
		Destination: gate.Destination,
		Reason:      gate.Reason,
		ProfileErr:  h.profiles.Err(),
	}
}

// statusFor подбирает код ответа статус-сервера по ошибке действия.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated), gateway.IsAuthError(err):
		return http.StatusUnauthorized
	case gateway.IsNetworkError(err):
		return http.StatusBadGateway
	default:
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func actionMessage(err error) string {
	var aErr *services.ActionError
	if errors.As(err, &aErr) {
		return aErr.Message
	}
	return err.Error()
}
