package out

import (
	"context"
	"time"

	"invoicewallet/internal/application/dto"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// SettlementTransactionLog persists every submitted transaction before it is tracked,
// so a restart can resume it to a terminal state.
type SettlementTransactionLog interface {
	RecordSubmitted(ctx context.Context, transaction dto.SettlementTransaction) *apperrors.AppError
	MarkStatus(
		ctx context.Context,
		txID string,
		status valueobjects.TransactionStatus,
		updatedAt time.Time,
	) *apperrors.AppError
	ListPending(
		ctx context.Context,
		network string,
		kinds []dto.SettlementTransactionKind,
	) ([]dto.SettlementTransaction, *apperrors.AppError)
	LatestByPayID(ctx context.Context, payID string) (dto.SettlementTransaction, bool, *apperrors.AppError)
}
