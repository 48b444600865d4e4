package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies failures at the service boundary. Raw storage and
// transport errors never cross it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindGateway
	KindConfiguration
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *AppError {
	return New(KindValidation, message)
}

func NotFound(message string) *AppError {
	return New(KindNotFound, message)
}

func Gateway(message string, err error) *AppError {
	return Wrap(KindGateway, message, err)
}

func Configuration(message string) *AppError {
	return New(KindConfiguration, message)
}

func Internal(message string, err error) *AppError {
	return Wrap(KindInternal, message, err)
}

// KindOf extracts the Kind of err, or KindInternal if err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
