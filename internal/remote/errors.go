package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"briefboard/internal/util"
)

type ErrorType string

const (
	ErrorAuth       ErrorType = "auth"
	ErrorNetwork    ErrorType = "network"
	ErrorPartial    ErrorType = "partial"
	ErrorValidation ErrorType = "validation"
	ErrorMalformed  ErrorType = "malformed"
	ErrorPermanent  ErrorType = "permanent"
)

// StatusError is a non-2xx reply from the summarization service. Body is a
// short preview and is never used for classification.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return util.ErrAuth
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return util.ErrNetwork
	}
	return nil
}

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, util.ErrAuth):
		return ErrorAuth
	case errors.Is(err, util.ErrValidation):
		return ErrorValidation
	case errors.Is(err, util.ErrPartialBatch):
		return ErrorPartial
	case errors.Is(err, util.ErrMalformedMetadata):
		return ErrorMalformed
	case errors.Is(err, util.ErrNetwork):
		return ErrorNetwork
	}
	var status *StatusError
	if errors.As(err, &status) {
		return ErrorPermanent
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "401"), strings.Contains(e, "403"), strings.Contains(e, "unauthorized"):
		return ErrorAuth
	case strings.Contains(e, "timeout"), strings.Contains(e, "connection refused"), strings.Contains(e, "unavailable"), strings.Contains(e, "eof"):
		return ErrorNetwork
	default:
		return ErrorPermanent
	}
}
