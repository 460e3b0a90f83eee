package llm

import (
	"fmt"
)

// APIError is a non-200 response from a model API. The message keeps the
// status code and a snippet of the body visible so downstream error
// classification can match on them.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.Status, e.Body)
}

// NewAPIError builds an APIError, truncating oversized bodies.
func NewAPIError(status int, body []byte) *APIError {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return &APIError{Status: status, Body: s}
}

// ParseError reports model output from which no JSON document could be
// extracted.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON object in model output: %s", e.Detail)
}
