package use_cases

import (
	"context"
	"time"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type initializePersistenceUseCase struct {
	gateway portsout.PersistenceBootstrapGateway
}

// NewInitializePersistenceUseCase waits for the invoice database and
// migrates it. Only unavailable readiness errors are retried.
func NewInitializePersistenceUseCase(gateway portsout.PersistenceBootstrapGateway) portsin.InitializePersistenceUseCase {
	return &initializePersistenceUseCase{gateway: gateway}
}

func (u *initializePersistenceUseCase) Execute(ctx context.Context, command dto.InitializePersistenceCommand) *apperrors.AppError {
	if u.gateway == nil {
		return apperrors.NewInternal("PERSISTENCE_GATEWAY_MISSING", "persistence gateway is required", nil)
	}
	if appErr := command.Validate(); appErr != nil {
		return appErr
	}

	if appErr := u.awaitDatabase(ctx, command); appErr != nil {
		return appErr
	}
	return u.gateway.RunMigrations(ctx)
}

func (u *initializePersistenceUseCase) awaitDatabase(ctx context.Context, command dto.InitializePersistenceCommand) *apperrors.AppError {
	deadline, cancel := context.WithTimeout(ctx, command.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(command.ReadinessRetryInterval)
	defer ticker.Stop()

	var lastErr *apperrors.AppError
	for attempt := 1; ; attempt++ {
		lastErr = u.gateway.CheckReadiness(deadline)
		if lastErr == nil {
			return nil
		}
		if lastErr.Type != apperrors.TypeUnavailable {
			return lastErr
		}

		select {
		case <-deadline.Done():
			return apperrors.NewUnavailable(
				"DB_READINESS_TIMEOUT",
				"invoice database did not become ready in time",
				map[string]any{
					"attempts":  attempt,
					"timeout":   command.ReadinessTimeout.String(),
					"last_code": lastErr.Code,
				},
			)
		case <-ticker.C:
		}
	}
}
