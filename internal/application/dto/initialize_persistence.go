package dto

import (
	"time"

	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// InitializePersistenceCommand bounds how long startup waits for the invoice
// database before giving up.
type InitializePersistenceCommand struct {
	ReadinessTimeout       time.Duration
	ReadinessRetryInterval time.Duration
}

func (c InitializePersistenceCommand) Validate() *apperrors.AppError {
	switch {
	case c.ReadinessTimeout <= 0:
		return apperrors.NewValidation("READINESS_TIMEOUT_INVALID", "readiness timeout must be positive", nil)
	case c.ReadinessRetryInterval <= 0:
		return apperrors.NewValidation("READINESS_RETRY_INTERVAL_INVALID", "readiness retry interval must be positive", nil)
	case c.ReadinessRetryInterval > c.ReadinessTimeout:
		return apperrors.NewValidation(
			"READINESS_RETRY_INTERVAL_INVALID",
			"readiness retry interval must not exceed the timeout",
			map[string]any{"timeout": c.ReadinessTimeout.String(), "retry_interval": c.ReadinessRetryInterval.String()},
		)
	}
	return nil
}
