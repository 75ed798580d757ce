package errs

import (
	"errors"
	"fmt"
)

// Сентинелы для errors.Is. Конкретные типы ниже сопоставляются с ними через Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrRemote            = errors.New("remote system failure")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
)

// ValidationError: некорректный ввод пользователя. Обрабатывается локально (повторный запрос).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError: отсутствует пользователь или тикет, на который ссылается операция.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteSystemError: сбой вызова Mattermost или Plane.
type RemoteSystemError struct {
	System string
	Op     string
	Err    error
}

func (e *RemoteSystemError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.System, e.Op, e.Err)
}

func (e *RemoteSystemError) Unwrap() error { return e.Err }

func (e *RemoteSystemError) Is(target error) bool { return target == ErrRemote }

// AuthorizationError: неверный токен вебхука или admin API.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "forbidden: " + e.Reason
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

func UserNotFound(key any) error {
	return &NotFoundError{Entity: "user", Key: fmt.Sprint(key)}
}

func TicketNotFound(key any) error {
	return &NotFoundError{Entity: "ticket", Key: fmt.Sprint(key)}
}

func Remote(system, op string, err error) error {
	return &RemoteSystemError{System: system, Op: op, Err: err}
}

// RemoteSystem returns the system name of the first RemoteSystemError in err's chain.
func RemoteSystem(err error) string {
	var re *RemoteSystemError
	if errors.As(err, &re) {
		return re.System
	}
	return ""
}
