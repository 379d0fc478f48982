package valueobjects

import (
	"math/big"
	"regexp"
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

var amountRawPattern = regexp.MustCompile(`^[0-9]{1,78}$`)

func NormalizeAmountRaw(field, raw string) (string, *apperrors.AppError) {
	value := strings.TrimSpace(raw)
	if !amountRawPattern.MatchString(value) {
		return "", apperrors.NewValidation(
			"invalid_request",
			field+" must be an integer string with 1 to 78 digits",
			map[string]any{"field": field},
		)
	}

	parsed, _ := new(big.Int).SetString(value, 10)
	if parsed.BitLen() > 256 {
		return "", apperrors.NewValidation(
			"invalid_request",
			field+" exceeds the uint256 range",
			map[string]any{"field": field},
		)
	}
	return parsed.String(), nil
}

// ParseAmountRaw parses a base-unit integer string. Empty input is zero.
func ParseAmountRaw(raw string) (*big.Int, *apperrors.AppError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return big.NewInt(0), nil
	}

	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, apperrors.NewInternal(
			"amount_raw_invalid",
			"amount must be a non-negative integer",
			map[string]any{"amount_raw": value},
		)
	}

	return parsed, nil
}
