package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Kind categorises an LLM failure for the investigation error taxonomy.
type Kind string

const (
	KindContextLength Kind = "llm.context_length"
	KindModelNotFound Kind = "llm.model_not_found"
	KindRateLimit     Kind = "llm.rate_limit"
	KindTransient     Kind = "llm.transient"
)

// Fatal reports whether the kind aborts the investigation instead of being
// retried. Rate limits are fatal per the taxonomy: retry budget is spent on
// transient failures only.
func (k Kind) Fatal() bool {
	return k == KindContextLength || k == KindModelNotFound || k == KindRateLimit
}

// Error is a classified LLM failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Classify maps a provider error into the engine taxonomy. Unknown failures
// are treated as transient so they get the retry budget before going fatal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransient, Message: "request deadline exceeded", Cause: err}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(err.Error())
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimit, Cause: err}
		case apiErr.StatusCode == http.StatusNotFound,
			strings.Contains(msg, "model_not_found"),
			strings.Contains(msg, "model not found"):
			return &Error{Kind: KindModelNotFound, Cause: err}
		case apiErr.StatusCode == http.StatusBadRequest &&
			(strings.Contains(msg, "context length") ||
				strings.Contains(msg, "prompt is too long") ||
				strings.Contains(msg, "max_tokens")):
			return &Error{Kind: KindContextLength, Cause: err}
		}
	}

	return &Error{Kind: KindTransient, Cause: err}
}
