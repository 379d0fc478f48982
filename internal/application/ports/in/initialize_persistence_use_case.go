package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type InitializePersistenceUseCase interface {
	Execute(ctx context.Context, command dto.InitializePersistenceCommand) *apperrors.AppError
}
