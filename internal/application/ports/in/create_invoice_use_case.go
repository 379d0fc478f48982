package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/domain/entities"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type CreateInvoiceUseCase interface {
	Execute(ctx context.Context, command dto.CreateInvoiceCommand) (entities.Invoice, *apperrors.AppError)
}
