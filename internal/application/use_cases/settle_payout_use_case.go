package use_cases

import (
	"context"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type settlePayoutUseCase struct {
	holding      portsout.HoldingWalletGateway
	transactions portsout.SettlementTransactionLog
	tracker      *TransactionTracker
	clock        Clock
}

// NewSettlePayoutUseCase pays an invoice out through the holding wallet under the pay
// id 0x<invoiceID>. A payout in flight is tracked, never submitted a second time.
func NewSettlePayoutUseCase(
	holding portsout.HoldingWalletGateway,
	transactions portsout.SettlementTransactionLog,
	tracker *TransactionTracker,
	clock Clock,
) portsin.SettlePayoutUseCase {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &settlePayoutUseCase{
		holding:      holding,
		transactions: transactions,
		tracker:      tracker,
		clock:        clock,
	}
}

func (u *settlePayoutUseCase) Execute(
	ctx context.Context,
	command dto.SettlePayoutCommand,
) (dto.SettlePayoutOutput, *apperrors.AppError) {
	if appErr := requireHolding(u.holding); appErr != nil {
		return dto.SettlePayoutOutput{}, appErr
	}
	if u.transactions == nil || u.tracker == nil {
		return dto.SettlePayoutOutput{}, apperrors.NewInternal(
			"settlement_tracking_missing",
			"settlement transaction log and tracker are required",
			nil,
		)
	}
	invoiceID, appErr := valueobjects.NormalizeInvoiceID(command.InvoiceID)
	if appErr != nil {
		return dto.SettlePayoutOutput{}, appErr
	}
	request, appErr := normalizePayCommand(dto.PayCommand{
		Currency:  command.Currency,
		PayID:     "0x" + invoiceID,
		Recipient: command.Recipient,
		AmountRaw: command.AmountRaw,
	})
	if appErr != nil {
		return dto.SettlePayoutOutput{}, appErr
	}

	output := dto.SettlePayoutOutput{InvoiceID: invoiceID, PayID: request.payID}

	latest, found, appErr := u.transactions.LatestByPayID(ctx, request.payID)
	if appErr != nil {
		return output, appErr
	}
	if found {
		output.TxID = latest.TxID
		status := latest.Status
		if !status.IsTerminal() {
			var trackErr *apperrors.AppError
			status, trackErr = u.tracker.Track(ctx, dto.TrackTransactionCommand{
				Network:     latest.Network,
				TxID:        latest.TxID,
				SubmittedAt: latest.SubmittedAt,
			})
			if trackErr != nil && !status.IsTerminal() {
				output.Outcome = dto.PayoutOutcomePending
				return output, trackErr
			}
		}
		if status == valueobjects.TransactionStatusSuccessful {
			output.Outcome = dto.PayoutOutcomePaid
			return output, nil
		}
		output.ReplacedTxID = latest.TxID
		output.TxID = ""
	}

	payOutput, appErr := submitPayment(ctx, u.holding, request)
	if appErr != nil {
		output.Outcome = dto.PayoutOutcomeFailed
		return output, appErr
	}
	if payOutput.AlreadyPaid {
		output.Outcome = dto.PayoutOutcomeAlreadyPaid
		return output, nil
	}
	output.TxID = payOutput.TxID

	now := u.clock.NowUTC()
	if appErr := u.transactions.RecordSubmitted(ctx, dto.SettlementTransaction{
		TxID:        payOutput.TxID,
		Network:     request.network,
		Kind:        dto.SettlementTransactionKindPayout,
		Status:      valueobjects.TransactionStatusSubmitted,
		Tokens:      []string{request.token},
		PayID:       request.payID,
		InvoiceID:   invoiceID,
		SubmittedAt: now,
		UpdatedAt:   now,
	}); appErr != nil {
		output.Outcome = dto.PayoutOutcomePending
		return output, appErr
	}

	status, trackErr := u.tracker.Track(ctx, dto.TrackTransactionCommand{
		Network:     request.network,
		TxID:        payOutput.TxID,
		SubmittedAt: now,
	})
	switch {
	case status == valueobjects.TransactionStatusSuccessful && trackErr == nil:
		output.Outcome = dto.PayoutOutcomePaid
		return output, nil
	case status.IsTerminal():
		output.Outcome = dto.PayoutOutcomeFailed
	default:
		output.Outcome = dto.PayoutOutcomePending
	}
	return output, trackErr
}
