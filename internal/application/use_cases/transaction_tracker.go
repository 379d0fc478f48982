package use_cases

import (
	"context"
	"strings"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const (
	DefaultTransactionPollInterval = 500 * time.Millisecond
	DefaultTransactionTimeout      = 10 * time.Minute
)

// TransactionTracker polls a submitted transaction until it reaches a terminal state or
// its deadline, which is measured from submission rather than from when tracking began.
type TransactionTracker struct {
	gateway  portsout.TransactionStatusGateway
	log      portsout.SettlementTransactionLog
	clock    Clock
	interval time.Duration
	timeout  time.Duration
}

func NewTransactionTracker(
	gateway portsout.TransactionStatusGateway,
	log portsout.SettlementTransactionLog,
	clock Clock,
	interval time.Duration,
	timeout time.Duration,
) *TransactionTracker {
	if clock == nil {
		clock = NewSystemClock()
	}
	if interval <= 0 {
		interval = DefaultTransactionPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	return &TransactionTracker{
		gateway:  gateway,
		log:      log,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
	}
}

// Track returns successful with a nil error, or the terminal state with a
// transaction_failed or transaction_timed_out error. A canceled context leaves the
// logged transaction pending.
func (t *TransactionTracker) Track(
	ctx context.Context,
	command dto.TrackTransactionCommand,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	if t.gateway == nil || t.log == nil {
		return valueobjects.TransactionStatusPending, apperrors.NewInternal(
			"transaction_tracker_misconfigured",
			"transaction status gateway and settlement log are required",
			nil,
		)
	}
	txID := strings.TrimSpace(command.TxID)
	if txID == "" {
		return valueobjects.TransactionStatusPending, apperrors.NewValidation(
			"invalid_request",
			"transaction id is required",
			map[string]any{"field": "tx_id"},
		)
	}

	submittedAt := command.SubmittedAt.UTC()
	if command.SubmittedAt.IsZero() {
		submittedAt = t.clock.NowUTC()
	}
	deadline := submittedAt.Add(t.timeout)
	details := map[string]any{"network": command.Network, "tx_id": txID}

	markedPending := false
	var lastErr *apperrors.AppError
	for {
		status, appErr := t.gateway.TransactionStatus(ctx, command.Network, txID, submittedAt)
		if appErr != nil {
			lastErr = appErr
			status = valueobjects.TransactionStatusPending
		}

		switch status {
		case valueobjects.TransactionStatusSuccessful:
			if markErr := t.log.MarkStatus(ctx, txID, status, t.clock.NowUTC()); markErr != nil {
				return status, markErr
			}
			return status, nil
		case valueobjects.TransactionStatusFailed:
			if markErr := t.log.MarkStatus(ctx, txID, status, t.clock.NowUTC()); markErr != nil {
				return status, markErr
			}
			return status, apperrors.NewTransactionFailed("transaction_failed", "transaction failed", details)
		case valueobjects.TransactionStatusTimedOut:
			return t.timedOut(ctx, txID, details, lastErr)
		case valueobjects.TransactionStatusPending:
			if !markedPending && appErr == nil {
				if markErr := t.log.MarkStatus(ctx, txID, status, t.clock.NowUTC()); markErr != nil {
					return status, markErr
				}
				markedPending = true
			}
		}

		if !t.clock.NowUTC().Before(deadline) {
			return t.timedOut(ctx, txID, details, lastErr)
		}

		timer := time.NewTimer(t.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return valueobjects.TransactionStatusPending, apperrors.NewUnavailable(
				"transaction_tracking_canceled",
				"transaction tracking canceled before a terminal state",
				details,
			)
		case <-timer.C:
		}
	}
}

func (t *TransactionTracker) timedOut(
	ctx context.Context,
	txID string,
	details map[string]any,
	lastErr *apperrors.AppError,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	status := valueobjects.TransactionStatusTimedOut
	if markErr := t.log.MarkStatus(ctx, txID, status, t.clock.NowUTC()); markErr != nil {
		return status, markErr
	}
	if lastErr != nil {
		details["last_error"] = lastErr.Code
	}
	return status, apperrors.NewTransactionTimedOut("transaction_timed_out", "transaction timed out", details)
}
