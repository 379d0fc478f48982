package controllers

import (
	"encoding/json"
	"net/http"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// errorStatus maps an error type to the status the worker's HTTP surface
// answers with. Chain failures are upstream failures, hence 502/504.
var errorStatus = map[apperrors.Type]int{
	apperrors.TypeValidation:          http.StatusBadRequest,
	apperrors.TypeNotFound:            http.StatusNotFound,
	apperrors.TypeConflict:            http.StatusConflict,
	apperrors.TypeUnavailable:         http.StatusServiceUnavailable,
	apperrors.TypeTransactionFailed:   http.StatusBadGateway,
	apperrors.TypeTransactionTimedOut: http.StatusGatewayTimeout,
}

func statusForError(appErr *apperrors.AppError) int {
	if status, ok := errorStatus[appErr.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeAppError uses the same {"error": {...}} envelope invoicectl prints.
func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	writeJSON(w, statusForError(appErr), struct {
		Error *apperrors.AppError `json:"error"`
	}{Error: appErr})
}
