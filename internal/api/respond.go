package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"briefboard/internal/util"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, util.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, util.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrEmptySubmission),
		errors.Is(err, util.ErrUnknownKey),
		errors.Is(err, util.ErrValidation),
		errors.Is(err, util.ErrUnsupportedType),
		errors.Is(err, util.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrNetwork), errors.Is(err, util.ErrPartialBatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "BB-API-4000"

	switch {
	case status == http.StatusBadGateway:
		return apiError{
			Code:    "BB-API-5020",
			Message: "Summarization service unavailable. Retry shortly.",
		}
	case status >= 500:
		return apiError{
			Code:    "BB-API-5000",
			Message: "Internal server error. Please retry or check service logs.",
		}
	case status == http.StatusBadRequest:
		code = "BB-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusUnauthorized:
		code = "BB-API-4010"
		msg = "Session is missing or expired. Log in again."
	case status == http.StatusNotFound:
		code = "BB-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "BB-API-4009"
		msg = "Another operation is still running. Retry when it finishes."
	case status == http.StatusMethodNotAllowed:
		code = "BB-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case errors.Is(err, util.ErrEmptySubmission):
			msg = "Select file or enter text!"
		case errors.Is(err, util.ErrUnknownKey):
			msg = "Unknown leaderboard sort key."
		case strings.Contains(low, "unknown model"):
			msg = "Unknown model. Pick one from /models."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(low, "parse multipart"):
			msg = "Malformed multipart upload."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withAccessLog(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
