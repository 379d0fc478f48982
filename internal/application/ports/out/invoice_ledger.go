package out

import (
	"context"
	"encoding/json"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/domain/entities"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// InvoiceLedger is the only mutable shared state. Updates are field-scoped so that
// concurrent reconcile and sweep cycles never clobber each other.
type InvoiceLedger interface {
	Create(ctx context.Context, invoice entities.Invoice) *apperrors.AppError
	FindByTimeRange(ctx context.Context, filter dto.InvoiceRangeFilter) ([]entities.Invoice, *apperrors.AppError)
	FindByIDs(ctx context.Context, ids []string) ([]entities.Invoice, *apperrors.AppError)
	UpdateDisposition(
		ctx context.Context,
		invoiceID string,
		update dto.InvoiceDispositionUpdate,
	) (bool, *apperrors.AppError)
	UpdateItem(ctx context.Context, invoiceID string, item json.RawMessage) (bool, *apperrors.AppError)
	AppendSweepTx(ctx context.Context, walletAddresses []string, txID string) (int, *apperrors.AppError)
}
