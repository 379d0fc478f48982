package valueobjects

import (
	"regexp"
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// NativeToken stands in for the network's native asset wherever a token address is expected.
const NativeToken = "0x0000000000000000000000000000000000000001"

var networkPattern = regexp.MustCompile(`^[A-Z0-9_]{1,32}$`)

func NormalizeNetwork(raw string) (string, *apperrors.AppError) {
	network := strings.ToUpper(strings.TrimSpace(raw))
	if network == "" || !networkPattern.MatchString(network) {
		return "", apperrors.NewValidation(
			"invalid_request",
			"network is invalid",
			map[string]any{"field": "network"},
		)
	}

	return network, nil
}

func NormalizeToken(raw string) (string, *apperrors.AppError) {
	return NormalizeEVMAddress("token", raw)
}

func IsNativeToken(token string) bool {
	return strings.EqualFold(strings.TrimSpace(token), NativeToken)
}

// ToCurrency joins network and token into the NETWORK:token composite.
func ToCurrency(network, token string) string {
	return strings.ToUpper(strings.TrimSpace(network)) + ":" + strings.TrimSpace(token)
}

// ParseCurrency splits NETWORK:token. The token part is returned as given: it is
// either a contract address or a native asset symbol such as ETH.
func ParseCurrency(raw string) (string, string, *apperrors.AppError) {
	trimmed := strings.TrimSpace(raw)
	separator := strings.Index(trimmed, ":")
	if separator <= 0 || separator == len(trimmed)-1 {
		return "", "", apperrors.NewValidation(
			"invalid_request",
			"currency must have the form NETWORK:token",
			map[string]any{"field": "currency", "currency": raw},
		)
	}

	network, appErr := NormalizeNetwork(trimmed[:separator])
	if appErr != nil {
		return "", "", appErr
	}
	token := strings.TrimSpace(trimmed[separator+1:])
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		normalized, tokenErr := NormalizeToken("0x" + token[2:])
		if tokenErr != nil {
			return "", "", tokenErr
		}
		token = normalized
	}

	return network, token, nil
}
