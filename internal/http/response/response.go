// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов локального статус-сервера.
package response

import (
	"errors"

	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Fields — ошибки по полям формы (опционально).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Data   any               `json:"data,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response по ошибке проверки формы.
// В Error попадает сообщение первого поля, в Fields все поля.
// Для прочих ошибок возвращается обычный Error с текстом err.
func ValidationError(err error) Response {
	var vErr *validation.Error
	if !errors.As(err, &vErr) {
		return Error(err.Error())
	}
	fields := make(map[string]string, len(vErr.Fields))
	for k, v := range vErr.Fields {
		fields[k] = v
	}
	return Response{
		Status: StatusError,
		Error:  vErr.First(),
		Fields: fields,
	}
}
