package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mediationd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONErrorFor(w, status, msg, "")
}

func writeJSONErrorFor(w http.ResponseWriter, status int, msg, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, RequestID: requestID})
}

// writeServiceError maps a service error onto a status code and logs the outcome.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error, requestID string) {
	status := http.StatusInternalServerError
	var he HTTPError
	if errors.As(err, &he) {
		status = he.StatusCode()
	}
	if status == http.StatusConflict {
		IncrementConflict(op)
	}
	logOutcome(r, op, status, start, err)
	writeJSONErrorFor(w, status, err.Error(), requestID)
}
