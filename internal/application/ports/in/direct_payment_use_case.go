package in

import (
	"context"

	"invoicewallet/internal/application/dto"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type DirectPaymentUseCase interface {
	IsPaid(ctx context.Context, network string, payID string) (bool, *apperrors.AppError)
	Pay(ctx context.Context, command dto.PayCommand) (dto.PayOutput, *apperrors.AppError)
	Liquidity(ctx context.Context, currency string) (dto.LiquidityOutput, *apperrors.AppError)
}

type SettlePayoutUseCase interface {
	Execute(ctx context.Context, command dto.SettlePayoutCommand) (dto.SettlePayoutOutput, *apperrors.AppError)
}
