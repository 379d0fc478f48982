package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/domain/entities"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type InvoiceQueriesUseCase interface {
	GetInvoices(ctx context.Context, query dto.GetInvoicesQuery) ([]entities.Invoice, *apperrors.AppError)
	GetInvoiceByID(ctx context.Context, invoiceID string) (entities.Invoice, *apperrors.AppError)
	GetInvoicesByID(ctx context.Context, invoiceIDs []string) ([]entities.Invoice, *apperrors.AppError)
	UpdateInvoiceItem(ctx context.Context, command dto.UpdateInvoiceItemCommand) (entities.Invoice, *apperrors.AppError)
}
