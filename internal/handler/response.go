package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"shopsync/internal/model"
	"shopsync/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) || errors.Is(err, model.ErrScopeViolation) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrTokenExpired) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid or expired token"
	} else if errors.Is(err, model.ErrRecordNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Record not found"
	} else if errors.Is(err, model.ErrTrashEntryNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Trash entry not found"
	} else if errors.Is(err, model.ErrAlreadyRestored) {
		status = http.StatusConflict
		body.Code = "ALREADY_RESTORED"
		body.Message = "Trash entry already restored"
	} else if errors.Is(err, model.ErrDeletionNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Deletion request not found"
	} else if errors.Is(err, model.ErrDuplicateReference) {
		status = http.StatusConflict
		body.Code = "DUPLICATE_REFERENCE"
		body.Message = "A deletion request with this reference already exists"
	} else if errors.Is(err, model.ErrPreconditionFailed) {
		status = http.StatusConflict
		body.Code = "PRECONDITION_FAILED"
		body.Message = "Request already decided or not yet validated"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrValidation) {
		status = http.StatusBadRequest
		body.Code = "VALIDATION_FAILED"
		body.Message = "Validation failed"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		// Backing-store failures land here: retryable for the caller,
		// logged once for the operator.
		slog.Error("unhandled error in writeError", "error", err.Error())
		status = http.StatusServiceUnavailable
		body.Code = "STORE_ERROR"
		body.Message = "Storage temporarily unavailable, retry the sync cycle"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
