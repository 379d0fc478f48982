package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type SweepInvoicesUseCase interface {
	GetInvoicesForSweep(
		ctx context.Context,
		command dto.SweepInvoicesCommand,
	) (dto.InvoicesForSweepOutput, *apperrors.AppError)
	Sweep(ctx context.Context, command dto.SweepInvoicesCommand) (dto.SweepInvoicesOutput, *apperrors.AppError)
	BulkSweepPaidWallets(ctx context.Context, command dto.BulkSweepCommand) (dto.BulkSweepOutput, *apperrors.AppError)
}
