package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/lock"
	"github.com/yourorg/mfl-sync/internal/syncer"
)

// Helper functions for request parsing and responses

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// errorResponse writes a formatted error response
func errorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	if statusCode >= http.StatusInternalServerError {
		logrus.Error(errorMsg)
	} else {
		logrus.Debug(errorMsg)
	}
	writeJSON(w, statusCode, ErrorResponse{
		StatusCode: statusCode,
		Status:     "error",
		Error:      errorMsg,
	})
}

// statusFor maps a pipeline error to an HTTP status code.
func statusFor(err error) int {
	var ue *apperr.UpstreamError
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, syncer.ErrSyncInProgress), errors.Is(err, lock.ErrLocked):
		return http.StatusConflict
	case errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// queryBool parses a boolean query parameter. A missing parameter is false.
func queryBool(r *http.Request, key string) (bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q is not a boolean", key, value)
	}
	return parsed, nil
}

// queryInt parses an integer query parameter or returns the default.
func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, value)
	}
	return parsed, nil
}
