package use_cases

import (
	"context"
	"strings"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type directPaymentUseCase struct {
	holding portsout.HoldingWalletGateway
}

func NewDirectPaymentUseCase(holding portsout.HoldingWalletGateway) portsin.DirectPaymentUseCase {
	return &directPaymentUseCase{holding: holding}
}

func (u *directPaymentUseCase) IsPaid(ctx context.Context, network string, payID string) (bool, *apperrors.AppError) {
	if appErr := requireHolding(u.holding); appErr != nil {
		return false, appErr
	}
	normalizedNetwork, appErr := valueobjects.NormalizeNetwork(network)
	if appErr != nil {
		return false, appErr
	}
	normalizedPayID, appErr := valueobjects.NormalizeBytes32("pay_id", payID)
	if appErr != nil {
		return false, appErr
	}
	return u.holding.IsPaid(ctx, normalizedNetwork, normalizedPayID)
}

// Pay checks the on-chain registry first, so repeating a pay id never pays twice.
func (u *directPaymentUseCase) Pay(ctx context.Context, command dto.PayCommand) (dto.PayOutput, *apperrors.AppError) {
	if appErr := requireHolding(u.holding); appErr != nil {
		return dto.PayOutput{}, appErr
	}
	request, appErr := normalizePayCommand(command)
	if appErr != nil {
		return dto.PayOutput{}, appErr
	}
	return submitPayment(ctx, u.holding, request)
}

func (u *directPaymentUseCase) Liquidity(ctx context.Context, currency string) (dto.LiquidityOutput, *apperrors.AppError) {
	if appErr := requireHolding(u.holding); appErr != nil {
		return dto.LiquidityOutput{}, appErr
	}
	network, token, appErr := parsePaymentCurrency(currency)
	if appErr != nil {
		return dto.LiquidityOutput{}, appErr
	}
	available, appErr := u.holding.Available(ctx, network, token)
	if appErr != nil {
		return dto.LiquidityOutput{}, appErr
	}
	return dto.LiquidityOutput{Network: network, Token: token, AvailableRaw: available}, nil
}

type payRequest struct {
	network   string
	token     string
	payID     string
	recipient string
	amountRaw string
}

func normalizePayCommand(command dto.PayCommand) (payRequest, *apperrors.AppError) {
	network, token, appErr := parsePaymentCurrency(command.Currency)
	if appErr != nil {
		return payRequest{}, appErr
	}
	payID, appErr := valueobjects.NormalizeBytes32("pay_id", command.PayID)
	if appErr != nil {
		return payRequest{}, appErr
	}
	recipient, appErr := valueobjects.NormalizeEVMAddress("recipient", command.Recipient)
	if appErr != nil {
		return payRequest{}, appErr
	}
	amountRaw, appErr := valueobjects.NormalizeAmountRaw("amount_raw", command.AmountRaw)
	if appErr != nil {
		return payRequest{}, appErr
	}
	if amountRaw == "0" {
		return payRequest{}, apperrors.NewValidation(
			"invalid_request",
			"amount_raw must be greater than zero",
			map[string]any{"field": "amount_raw"},
		)
	}
	return payRequest{
		network:   network,
		token:     token,
		payID:     payID,
		recipient: recipient,
		amountRaw: amountRaw,
	}, nil
}

// parsePaymentCurrency maps a non-address token such as ETH to the native sentinel.
func parsePaymentCurrency(currency string) (string, string, *apperrors.AppError) {
	network, token, appErr := valueobjects.ParseCurrency(currency)
	if appErr != nil {
		return "", "", appErr
	}
	if !strings.HasPrefix(token, "0x") {
		token = valueobjects.NativeToken
	}
	return network, token, nil
}

func submitPayment(
	ctx context.Context,
	holding portsout.HoldingWalletGateway,
	request payRequest,
) (dto.PayOutput, *apperrors.AppError) {
	output := dto.PayOutput{
		Network: request.network,
		Token:   request.token,
		PayID:   request.payID,
	}

	paid, appErr := holding.IsPaid(ctx, request.network, request.payID)
	if appErr != nil {
		return output, appErr
	}
	if paid {
		output.AlreadyPaid = true
		return output, nil
	}

	var txID string
	if valueobjects.IsNativeToken(request.token) {
		txID, appErr = holding.PayNative(ctx, request.network, request.payID, request.recipient, request.amountRaw)
	} else {
		txID, appErr = holding.PayToken(ctx, request.network, request.token, request.payID, request.recipient, request.amountRaw)
	}
	if appErr != nil {
		return output, appErr
	}
	output.TxID = txID
	return output, nil
}

func requireHolding(holding portsout.HoldingWalletGateway) *apperrors.AppError {
	if holding == nil {
		return apperrors.NewInternal(
			"holding_wallet_gateway_missing",
			"holding wallet gateway is required",
			nil,
		)
	}
	return nil
}
