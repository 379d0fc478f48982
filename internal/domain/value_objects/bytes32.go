package valueobjects

import (
	"regexp"
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

var bytes32Pattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// NormalizeBytes32 accepts 64 hex chars with or without 0x and returns the 0x lower-case form.
func NormalizeBytes32(field, raw string) (string, *apperrors.AppError) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(trimmed, "0x") {
		trimmed = "0x" + trimmed
	}
	if !bytes32Pattern.MatchString(trimmed) {
		return "", apperrors.NewValidation(
			"invalid_request",
			field+" must be 32 bytes of hex",
			map[string]any{"field": field},
		)
	}
	return trimmed, nil
}

// NormalizeInvoiceID returns the stored form of an invoice id: 64 lower-case hex chars without prefix.
func NormalizeInvoiceID(raw string) (string, *apperrors.AppError) {
	normalized, appErr := NormalizeBytes32("invoice_id", raw)
	if appErr != nil {
		return "", appErr
	}
	return strings.TrimPrefix(normalized, "0x"), nil
}
