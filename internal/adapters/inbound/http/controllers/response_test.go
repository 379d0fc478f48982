//go:build !integration

package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

func TestWriteAppError(t *testing.T) {
	testCases := []struct {
		errType    apperrors.Type
		wantStatus int
	}{
		{apperrors.TypeValidation, http.StatusBadRequest},
		{apperrors.TypeNotFound, http.StatusNotFound},
		{apperrors.TypeConflict, http.StatusConflict},
		{apperrors.TypeUnavailable, http.StatusServiceUnavailable},
		{apperrors.TypeTransactionFailed, http.StatusBadGateway},
		{apperrors.TypeTransactionTimedOut, http.StatusGatewayTimeout},
		{apperrors.TypeInternal, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(string(tc.errType), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, &apperrors.AppError{Type: tc.errType, Code: "SOME_CODE", Message: "boom"})

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var payload struct {
				Error apperrors.AppError `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("expected valid JSON body, got error: %v", err)
			}
			if payload.Error.Code != "SOME_CODE" || payload.Error.Type != tc.errType {
				t.Fatalf("expected code SOME_CODE type %s, got %+v", tc.errType, payload.Error)
			}
		})
	}
}
