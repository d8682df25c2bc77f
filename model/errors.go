package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired access token")
	ErrAlreadySubmitted = errors.New("questionnaire already submitted")
	ErrNotSubmitted     = errors.New("questionnaire not submitted yet")
	ErrUnknownVariant   = errors.New("unknown questionnaire variant")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrSaveInFlight     = errors.New("save already in progress")
)

// UnknownVariantError wraps ErrUnknownVariant with the offending name.
func UnknownVariantError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// ValidationError maps question keys to messages. Order lists the keys in
// document order so the first offender can be focused.
type ValidationError struct {
	Fields map[string]string
	Order  []string
}

func (e *ValidationError) Add(key, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[key]; !ok {
		e.Order = append(e.Order, key)
	}
	e.Fields[key] = msg
}

func (e *ValidationError) First() string {
	if len(e.Order) == 0 {
		return ""
	}
	return e.Order[0]
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Order))
	for _, k := range e.Order {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type FileTooLargeError struct {
	Name string
	Size int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is too large (%d bytes), maximum size is 10MB", e.Name, e.Size)
}

type UploadFailedError struct {
	Name  string
	Cause error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Name, e.Cause)
}

func (e *UploadFailedError) Unwrap() error {
	return e.Cause
}

// PersistenceError reports a failed write during submission. The instance
// status is left untouched so the client can retry.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return "could not persist questionnaire: " + e.Cause.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
