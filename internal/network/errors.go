package network

import (
	"fmt"
	"net/http"
)

// apiError carries the HTTP status the API layer should answer with.
type apiError struct {
	status int
	msg    string
}

func (e apiError) Error() string   { return e.msg }
func (e apiError) StatusCode() int { return e.status }

func errUnknownNetwork(name string) error {
	return apiError{status: http.StatusNotFound, msg: fmt.Sprintf("unknown network: %s", name)}
}

func errRequestNotFound(id string) error {
	return apiError{status: http.StatusNotFound, msg: fmt.Sprintf("request not found: %s", id)}
}

func errNotShowable(id string) error {
	return apiError{status: http.StatusConflict, msg: fmt.Sprintf("request %s has no ad to show", id)}
}

func errConflict(msg string) error { return apiError{status: http.StatusConflict, msg: msg} }

func errBadRequest(msg string) error { return apiError{status: http.StatusBadRequest, msg: msg} }
