// Package apperr defines the error taxonomy shared by the HTTP surface and
// renders it as {"error": "..."} JSON bodies.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/KennethHeine/chat-ai/internal/logger"

	"github.com/gin-gonic/gin"
)

type Kind string

const (
	KindClient    Kind = "client"
	KindAuth      Kind = "auth"
	KindForbidden Kind = "forbidden"
	KindUpstream  Kind = "upstream"
	KindConfig    Kind = "config"
	KindRateLimit Kind = "rate_limit"
	KindInternal  Kind = "internal"
)

// Error is a user-visible failure. Message is safe to return to clients;
// Err is the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Client(msg string) *Error {
	return &Error{Kind: KindClient, Status: http.StatusBadRequest, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindClient, Status: http.StatusNotFound, Message: msg}
}

func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: msg}
}

// Upstream reports a non-OK response from a provider. The provider's status
// is passed through.
func Upstream(status int, msg string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: msg}
}

// Transport reports a network-level failure talking to a provider.
func Transport(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Message: msg, Err: err}
}

func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msg}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimit, Status: http.StatusTooManyRequests, Message: "Too many requests. Please try again later."}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Write renders err and aborts the gin chain. Errors outside the taxonomy
// become a generic 500.
func Write(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal("internal server error", err)
	}

	fields := map[string]any{
		"kind":   string(appErr.Kind),
		"status": appErr.Status,
		"path":   c.Request.URL.Path,
	}
	if appErr.Err != nil {
		fields["error"] = appErr.Err.Error()
	}
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error(appErr.Message, fields)
	} else {
		logger.Debug(appErr.Message, fields)
	}

	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": appErr.Message})
}
