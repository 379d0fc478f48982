package use_cases

import (
	"context"
	"encoding/json"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"

	"github.com/shopspring/decimal"
)

type createInvoiceUseCase struct {
	ledger   portsout.InvoiceLedger
	metadata portsout.TokenMetadataGateway
	deriver  *WalletDeriver
	random   RandomSource
	clock    Clock
}

func NewCreateInvoiceUseCase(
	ledger portsout.InvoiceLedger,
	metadata portsout.TokenMetadataGateway,
	deriver *WalletDeriver,
	random RandomSource,
	clock Clock,
) portsin.CreateInvoiceUseCase {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &createInvoiceUseCase{
		ledger:   ledger,
		metadata: metadata,
		deriver:  deriver,
		random:   random,
		clock:    clock,
	}
}

func (u *createInvoiceUseCase) Execute(
	ctx context.Context,
	command dto.CreateInvoiceCommand,
) (entities.Invoice, *apperrors.AppError) {
	if u.ledger == nil {
		return entities.Invoice{}, apperrors.NewInternal(
			"invoice_ledger_missing",
			"invoice ledger is required",
			nil,
		)
	}
	if u.metadata == nil {
		return entities.Invoice{}, apperrors.NewInternal(
			"token_metadata_gateway_missing",
			"token metadata gateway is required",
			nil,
		)
	}
	if u.deriver == nil || u.random == nil {
		return entities.Invoice{}, apperrors.NewInternal(
			"wallet_deriver_missing",
			"wallet deriver and random source are required",
			nil,
		)
	}

	network, appErr := valueobjects.NormalizeNetwork(command.Network)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	token, appErr := valueobjects.NormalizeToken(command.Token)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	amountRaw, appErr := valueobjects.NormalizeAmountRaw("amount_raw", command.AmountRaw)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	if len(command.Item) > 0 && !json.Valid(command.Item) {
		return entities.Invoice{}, apperrors.NewValidation(
			"invalid_request",
			"item must be valid JSON",
			map[string]any{"field": "item"},
		)
	}

	metadata, appErr := u.metadata.TokenMetadata(ctx, network, token)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	amountDisplay, appErr := formatAmountDisplay(amountRaw, metadata.Decimals)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}

	now := u.clock.NowUTC()
	wallet, appErr := u.deriver.DeriveWallet(ctx, network, token, now.Unix())
	if appErr != nil {
		return entities.Invoice{}, appErr
	}

	invoiceID, err := randomHex32(u.random)
	if err != nil {
		return entities.Invoice{}, apperrors.NewInternal(
			"invoice_id_generation_failed",
			"failed to generate invoice id",
			map[string]any{"error": err.Error()},
		)
	}

	invoice, appErr := entities.NewInvoice(entities.NewInvoiceInput{
		InvoiceID:     invoiceID,
		Wallet:        wallet,
		AmountRaw:     amountRaw,
		AmountDisplay: amountDisplay,
		Symbol:        metadata.Symbol,
		CreationTime:  now,
		Item:          command.Item,
	})
	if appErr != nil {
		return entities.Invoice{}, appErr
	}

	if appErr := u.ledger.Create(ctx, invoice); appErr != nil {
		return entities.Invoice{}, appErr
	}
	return invoice, nil
}

// formatAmountDisplay renders amountRaw / 10^decimals without trailing zeros.
func formatAmountDisplay(amountRaw string, decimals int) (string, *apperrors.AppError) {
	if decimals < 0 || decimals > 77 {
		return "", apperrors.NewInternal(
			"token_decimals_invalid",
			"token decimals out of range",
			map[string]any{"decimals": decimals},
		)
	}
	amount, appErr := valueobjects.ParseAmountRaw(amountRaw)
	if appErr != nil {
		return "", appErr
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String(), nil
}
