package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - документ не найден.
	ErrNotFound = errors.New("not found")
	// ErrTransactionConflict - CAS счетчика проиграл гонку.
	// Транзакция откатывается, ее можно повторить с теми же данными.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// ValidationError - операция нарушила бы инвариант. Ничего не записано.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError - конструктор ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFound оборачивает ErrNotFound с видом и id документа.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s with id %s: %w", kind, id, ErrNotFound)
}

// InvalidTransition - ValidationError для операции, недопустимой в текущем состоянии поста.
func InvalidTransition(op string, from PostStatus) *ValidationError {
	return NewValidationError("status", "cannot %s a %s post", op, from)
}
