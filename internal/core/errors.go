package core

import (
	"errors"
	"fmt"
)

// Error classes. Service-level sentinels wrap one of these so handlers can map
// any failure to an HTTP status with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrDecryption   = errors.New("decryption failed")
	ErrExchange     = errors.New("oauth2 exchange failed")
)

// Validationf returns an ErrValidation carrying a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OAuth2ExchangeError is returned when an external token endpoint rejects an
// exchange or cannot be reached.
type OAuth2ExchangeError struct {
	App        string
	StatusCode int    // 0 when the request never got a response
	Code       string // RFC 6749 error code from the upstream body, if any
	Body       string // raw upstream response body
	Err        error
}

func (e *OAuth2ExchangeError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("oauth2 exchange with %s failed: %v", e.App, e.Err)
	case e.Code != "":
		return fmt.Sprintf("oauth2 exchange with %s failed: %d %s", e.App, e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("oauth2 exchange with %s failed: status %d", e.App, e.StatusCode)
	}
}

func (e *OAuth2ExchangeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExchange) match any exchange failure.
func (e *OAuth2ExchangeError) Is(target error) bool { return target == ErrExchange }

type classError struct {
	class error
	msg   string
}

func (e *classError) Error() string        { return e.msg }
func (e *classError) Is(target error) bool { return target == e.class }

// NewError returns a sentinel whose message is msg and which matches class
// under errors.Is.
func NewError(class error, msg string) error {
	return &classError{class: class, msg: msg}
}
