package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type GetHealthUseCase interface {
	Execute(ctx context.Context, command dto.GetHealthCommand) (dto.HealthOutput, *apperrors.AppError)
}
