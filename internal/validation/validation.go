// Package validation — клиентская проверка ввода до сетевого вызова.
//
// Обёртка над go-playground/validator: имена полей берутся из json-тегов,
// подписи для сообщений из тега label. Ошибки собираются в *Error с картой
// "поле" -> "сообщение".
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

// Дополнительные правила.
const (
	TagKenyanPhone = "ke_phone"
	TagISODate     = "isodate"
	TagOTP         = "otp"
)

var (
	kenyanPhoneRe = regexp.MustCompile(`^(\+254|0)[17]\d{8}$`)
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	otpRe         = regexp.MustCompile(`^\d{6}$`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// Error — набор ошибок по полям.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First возвращает первое по алфавиту сообщение; удобно для одного алерта.
func (e *Error) First() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return e.Fields[keys[0]]
}

// IsValidation сообщает, что err является ошибкой клиентской проверки.
func IsValidation(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

// Validator проверяет структуры по тегам validate.
type Validator struct {
	validate *validator.Validate
}

// New создаёт Validator с зарегистрированными правилами.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %q: %v", tag, err))
		}
	}
	mustRegister(TagKenyanPhone, func(fl validator.FieldLevel) bool {
		return IsKenyanPhone(fl.Field().String())
	})
	mustRegister(TagISODate, func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	mustRegister(TagOTP, func(fl validator.FieldLevel) bool {
		return otpRe.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate проверяет структуру. Возвращает *Error при нарушениях.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	labels := labelsOf(i)
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		label := labels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		fields[fe.Field()] = message(fe, label)
	}
	return &Error{Fields: fields}
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return fmt.Sprintf("%s is invalid", label)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", label)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case TagKenyanPhone:
		return "Invalid Kenyan phone number"
	case TagISODate:
		return "Invalid date format. Use YYYY-MM-DD"
	case TagOTP:
		return "Please enter the complete 6-digit code"
	default:
		return fmt.Sprintf("%s is not valid", label)
	}
}

// labelsOf собирает теги label верхнего уровня структуры по json-именам.
func labelsOf(i any) map[string]string {
	t := reflect.TypeOf(i)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	labels := make(map[string]string, t.NumField())
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		if label := f.Tag.Get("label"); label != "" {
			labels[name] = label
		}
	}
	return labels
}

// IsKenyanPhone проверяет номер в форматах +2547XXXXXXXX / 07XXXXXXXX
// (а также 1 вместо 7). Пробелы игнорируются.
func IsKenyanPhone(phone string) bool {
	return kenyanPhoneRe.MatchString(spacesRe.ReplaceAllString(phone, ""))
}

// NormalizePhone убирает пробелы и приводит 0XXXXXXXXX к +254XXXXXXXXX.
func NormalizePhone(phone string) string {
	p := spacesRe.ReplaceAllString(phone, "")
	if strings.HasPrefix(p, "0") {
		return "+254" + p[1:]
	}
	return p
}

// IsISODate проверяет дату вида YYYY-MM-DD, включая существование дня.
func IsISODate(s string) bool {
	if !isoDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
