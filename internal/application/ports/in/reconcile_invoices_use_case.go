package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type ReconcileInvoicesUseCase interface {
	// CheckPayments records payments and marks fully paid invoices. Expired invoices are left alone.
	CheckPayments(
		ctx context.Context,
		command dto.ReconcileInvoicesCommand,
	) (dto.ReconcileInvoicesOutput, *apperrors.AppError)
	CheckAndUpdatePayments(
		ctx context.Context,
		command dto.ReconcileInvoicesCommand,
	) (dto.ReconcileInvoicesOutput, *apperrors.AppError)
}
