// Package apierror carries an HTTP status alongside a coded error so
// handlers can translate a failure to the wire without a sentinel
// comparison per case.
package apierror

import "fmt"

// APIError is an error with a wire shape: a stable machine-readable
// code, a human message, optional details and the HTTP status it
// should travel with.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}
