package valueobjects

import (
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type TransactionStatus string

const (
	TransactionStatusSubmitted  TransactionStatus = "submitted"
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusSuccessful TransactionStatus = "successful"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusTimedOut   TransactionStatus = "timedout"
)

func ParseTransactionStatus(raw string) (TransactionStatus, *apperrors.AppError) {
	switch status := TransactionStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case TransactionStatusSubmitted,
		TransactionStatusPending,
		TransactionStatusSuccessful,
		TransactionStatusFailed,
		TransactionStatusTimedOut:
		return status, nil
	default:
		return "", apperrors.NewInternal(
			"transaction_status_invalid",
			"transaction status is invalid",
			map[string]any{"status": raw},
		)
	}
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccessful || s == TransactionStatusFailed || s == TransactionStatusTimedOut
}

func (s TransactionStatus) String() string {
	return string(s)
}
