package out

import (
	"context"
	"time"

	"invoicewallet/internal/application/dto"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// WalletFactoryGateway covers the per-invoice deposit wallets.
type WalletFactoryGateway interface {
	Implementation(ctx context.Context, network string) (string, *apperrors.AppError)
	CounterfactualAddress(ctx context.Context, network string, implementation string, salt string) (string, *apperrors.AppError)
	FilterWithBalance(ctx context.Context, network string, tokens []string, addresses []string) ([]dto.WalletBalance, *apperrors.AppError)
	NeedsDeploy(ctx context.Context, network string, addresses []string) ([]bool, *apperrors.AppError)
	MultiDeploy(ctx context.Context, network string, salts []string) (string, *apperrors.AppError)
	SweepMulti(ctx context.Context, network string, tokens []string, addresses []string) (string, *apperrors.AppError)
}

// HoldingWalletGateway covers the treasury contract and its pay-id registry.
type HoldingWalletGateway interface {
	IsPaid(ctx context.Context, network string, payID string) (bool, *apperrors.AppError)
	PayNative(ctx context.Context, network string, payID string, recipient string, amountRaw string) (string, *apperrors.AppError)
	PayToken(ctx context.Context, network string, token string, payID string, recipient string, amountRaw string) (string, *apperrors.AppError)
	Available(ctx context.Context, network string, token string) (string, *apperrors.AppError)
}

type TransactionStatusGateway interface {
	TransactionStatus(
		ctx context.Context,
		network string,
		txID string,
		submittedAt time.Time,
	) (valueobjects.TransactionStatus, *apperrors.AppError)
}

type TokenMetadataGateway interface {
	TokenMetadata(ctx context.Context, network string, token string) (dto.TokenMetadata, *apperrors.AppError)
}

type ChainGateway interface {
	WalletFactoryGateway
	HoldingWalletGateway
	TransactionStatusGateway
	TokenMetadataGateway
}
