package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Сообщения для пользователя, когда сервер не прислал своего текста.
const (
	MsgTimeout      = "Request timeout. Please check your internet connection."
	MsgNetwork      = "Network error. Please check your internet connection."
	MsgUnauthorized = "Unauthorized. Please login again."
	MsgForbidden    = "Access denied. You do not have permission to perform this action."
	MsgNotFound     = "Resource not found."
	MsgServer       = "Server error. Please try again later."
	MsgGeneric      = "An error occurred"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
)

// APIError — ответ сервера со статусом 4xx/5xx.
type APIError struct {
	StatusCode int
	Message    string
	ServerErr  string
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	if text := e.text(); text != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, text)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap позволяет проверять класс ошибки через errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServer
	default:
		return nil
	}
}

// text — первое непустое из message, error, detail.
func (e *APIError) text() string {
	for _, s := range []string{e.Message, e.ServerErr, e.Detail} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// NetworkError — запрос не дошёл до сервера или ответ не получен.
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request timeout: %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UserMessage превращает ошибку в текст для показа пользователю:
// message → error → detail из тела ответа, затем типовой текст по статусу,
// затем fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if fallback == "" {
		fallback = MsgGeneric
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if text := apiErr.text(); text != "" {
			return text
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return MsgUnauthorized
		case apiErr.StatusCode == http.StatusForbidden:
			return MsgForbidden
		case apiErr.StatusCode == http.StatusNotFound:
			return MsgNotFound
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return MsgServer
		}
		return fallback
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout {
			return MsgTimeout
		}
		return MsgNetwork
	}
	return fallback
}

// IsAuthError сообщает, что сервер ответил 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNetworkError сообщает, что ошибка транспортная и действие можно повторить.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorBody — тело ошибки бэкенда. detail бывает строкой или списком
// ошибок валидации вида [{"msg": "..."}].
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return e
	}
	e.Message = eb.Message
	e.ServerErr = eb.Error
	e.Detail = detailText(eb.Detail)
	return e
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
