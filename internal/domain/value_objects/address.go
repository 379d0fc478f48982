package valueobjects

import (
	"regexp"
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"

	"github.com/ethereum/go-ethereum/common"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func IsEVMAddress(raw string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(raw))
}

// NormalizeEVMAddress returns the lower-case 0x form used for storage and lookups.
func NormalizeEVMAddress(field, raw string) (string, *apperrors.AppError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperrors.NewValidation(
			"invalid_request",
			field+" is required",
			map[string]any{"field": field},
		)
	}
	if !evmAddressPattern.MatchString(trimmed) {
		return "", apperrors.NewValidation(
			"invalid_request",
			field+" must be a 0x-prefixed 20 byte hex address",
			map[string]any{"field": field},
		)
	}

	return "0x" + strings.ToLower(trimmed[2:]), nil
}

func NormalizeEVMAddresses(field string, raw []string) ([]string, *apperrors.AppError) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		normalized, appErr := NormalizeEVMAddress(field, value)
		if appErr != nil {
			return nil, appErr
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

// ToEIP55Checksum renders a stored lower-case address in its mixed-case
// display form.
func ToEIP55Checksum(canonical string) (string, *apperrors.AppError) {
	trimmed := strings.TrimSpace(canonical)
	if !evmAddressPattern.MatchString(trimmed) {
		return "", apperrors.NewInternal(
			"address_canonical_invalid",
			"canonical address is invalid",
			map[string]any{"address": canonical},
		)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}
