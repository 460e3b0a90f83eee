package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/llm"
)

// ErrorKind partitions generation failures by how the cascade reacts to
// them. The values double as metric and API labels.
type ErrorKind string

const (
	// KindTimeout is an attempt that exceeded the per-call deadline.
	KindTimeout ErrorKind = "timeout"

	// KindRateLimit covers rate limiting and other transient upstream
	// conditions worth retrying against the same model.
	KindRateLimit ErrorKind = "rate_limit"

	// KindModelUnavailable is a model the endpoint does not serve.
	KindModelUnavailable ErrorKind = "model_unavailable"

	// KindAuth is a credential failure. It is global misconfiguration,
	// not a per-model condition, so it aborts the whole cascade.
	KindAuth ErrorKind = "auth"

	// KindParse is model output with no extractable JSON object.
	KindParse ErrorKind = "parse"

	// KindSchemaMismatch is a JSON document that failed itinerary
	// validation.
	KindSchemaMismatch ErrorKind = "schema_mismatch"

	// KindValidation is a bad trip request, rejected before any model
	// call.
	KindValidation ErrorKind = "validation"

	// KindUnknown is everything else.
	KindUnknown ErrorKind = "unknown"
)

// Retryable reports whether the same model is worth retrying (with
// backoff) before the cascade advances. Structural failures are not:
// retrying a model that returned garbage is assumed useless.
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindRateLimit
}

// Fatal reports whether the whole cascade must abort instead of advancing.
func (k ErrorKind) Fatal() bool {
	return k == KindAuth
}

// ClassifiedError is the single error type a generation run surfaces. Kind
// is always one of the recognized kinds, Model is the model whose failure
// is being reported, and Attempts counts every invocation across the whole
// run.
type ClassifiedError struct {
	Kind     ErrorKind
	Message  string
	Model    string
	Attempts int
}

func (e *ClassifiedError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("generation failed (%s) on model %s after %d attempts: %s",
		e.Kind, e.Model, e.Attempts, e.Message)
}

// classify maps a raw failure to its kind. Typed checks run first; only
// errors nothing recognizes fall back to case-insensitive substring
// matching on the message. This is the one place such matching lives, so
// the rules can change without touching the cascade state machine.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var parseErr *llm.ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	var schemaErr *itinerary.SchemaError
	if errors.As(err, &schemaErr) {
		return KindSchemaMismatch
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return KindRateLimit
		case http.StatusNotFound:
			return KindModelUnavailable
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		}
		// Other statuses fall through to message matching.
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "network"):
		return KindRateLimit
	case strings.Contains(msg, "not found"), strings.Contains(msg, "404"):
		return KindModelUnavailable
	case strings.Contains(msg, "api key"), strings.Contains(msg, "401"):
		return KindAuth
	default:
		return KindUnknown
	}
}
