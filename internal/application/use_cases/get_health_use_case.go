package use_cases

import (
	"context"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type getHealthUseCase struct {
	persistence portsout.PersistenceBootstrapGateway
}

// NewGetHealthUseCase reports degraded when the database readiness probe fails.
// A nil gateway skips the probe.
func NewGetHealthUseCase(persistence portsout.PersistenceBootstrapGateway) portsin.GetHealthUseCase {
	return &getHealthUseCase{persistence: persistence}
}

func (u *getHealthUseCase) Execute(ctx context.Context, _ dto.GetHealthCommand) (dto.HealthOutput, *apperrors.AppError) {
	status := valueobjects.NewHealthyStatus()
	database := "skipped"

	if u.persistence != nil {
		database = "ok"
		if appErr := u.persistence.CheckReadiness(ctx); appErr != nil {
			status = valueobjects.HealthStatusDegraded
			database = appErr.Code
		}
	}

	return dto.HealthOutput{
		Status:   status.String(),
		Database: database,
	}, nil
}
