package use_cases

import (
	"context"
	"time"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const DefaultInvoiceTimeout = 48 * time.Hour

type ReconcileInvoicesOptions struct {
	InvoiceTimeout     time.Duration
	BalanceChunkSize   int
	BalanceConcurrency int
}

type reconcileInvoicesUseCase struct {
	ledger         portsout.InvoiceLedger
	factory        portsout.WalletFactoryGateway
	balances       balanceFilter
	clock          Clock
	invoiceTimeout time.Duration
}

func NewReconcileInvoicesUseCase(
	ledger portsout.InvoiceLedger,
	factory portsout.WalletFactoryGateway,
	clock Clock,
	options ReconcileInvoicesOptions,
) portsin.ReconcileInvoicesUseCase {
	if clock == nil {
		clock = NewSystemClock()
	}
	invoiceTimeout := options.InvoiceTimeout
	if invoiceTimeout <= 0 {
		invoiceTimeout = DefaultInvoiceTimeout
	}
	return &reconcileInvoicesUseCase{
		ledger:         ledger,
		factory:        factory,
		balances:       newBalanceFilter(factory, options.BalanceChunkSize, options.BalanceConcurrency),
		clock:          clock,
		invoiceTimeout: invoiceTimeout,
	}
}

func (u *reconcileInvoicesUseCase) CheckPayments(
	ctx context.Context,
	command dto.ReconcileInvoicesCommand,
) (dto.ReconcileInvoicesOutput, *apperrors.AppError) {
	return u.reconcile(ctx, command, false)
}

func (u *reconcileInvoicesUseCase) CheckAndUpdatePayments(
	ctx context.Context,
	command dto.ReconcileInvoicesCommand,
) (dto.ReconcileInvoicesOutput, *apperrors.AppError) {
	return u.reconcile(ctx, command, true)
}

func (u *reconcileInvoicesUseCase) reconcile(
	ctx context.Context,
	command dto.ReconcileInvoicesCommand,
	applyTimeouts bool,
) (dto.ReconcileInvoicesOutput, *apperrors.AppError) {
	if u.ledger == nil {
		return dto.ReconcileInvoicesOutput{}, apperrors.NewInternal(
			"invoice_ledger_missing",
			"invoice ledger is required",
			nil,
		)
	}
	if u.factory == nil {
		return dto.ReconcileInvoicesOutput{}, apperrors.NewInternal(
			"wallet_factory_gateway_missing",
			"wallet factory gateway is required",
			nil,
		)
	}
	network, appErr := valueobjects.NormalizeNetwork(command.Network)
	if appErr != nil {
		return dto.ReconcileInvoicesOutput{}, appErr
	}
	if appErr := validateWindow(command.From, command.To); appErr != nil {
		return dto.ReconcileInvoicesOutput{}, appErr
	}

	invoices, appErr := u.ledger.FindByTimeRange(ctx, dto.InvoiceRangeFilter{
		Network:     network,
		Disposition: dto.InvoiceDispositionUnpaid,
		From:        command.From.UTC(),
		To:          command.To.UTC(),
	})
	if appErr != nil {
		return dto.ReconcileInvoicesOutput{}, appErr
	}

	output := dto.ReconcileInvoicesOutput{
		Network:  network,
		Scanned:  len(invoices),
		Invoices: []entities.Invoice{},
	}
	if len(invoices) == 0 {
		return output, nil
	}

	balances, appErr := u.balances.byAddress(ctx, network, invoices, nil)
	if appErr != nil {
		return output, appErr
	}

	now := u.clock.NowUTC()
	for _, invoice := range invoices {
		observed := invoice
		hasBalance := false
		if balance, exists := balances[invoice.Wallet.Address]; exists {
			if amount, ok := tokenBalance(balance, invoice.Wallet.Token()); ok {
				hasBalance = true
				observed.Payments = []entities.InvoicePayment{{
					Network:   network,
					Currency:  invoice.Wallet.Currency,
					AmountRaw: amount,
					Timestamp: now.Unix(),
				}}
			}
		}
		if hasBalance {
			output.WithBalance++
		}

		enough, appErr := observed.HasEnoughPayments()
		if appErr != nil {
			return output, appErr
		}

		update := dto.InvoiceDispositionUpdate{UpdatedAt: now}
		switch {
		case enough:
			paid := true
			update.Paid = &paid
			update.Payments = observed.Payments
			observed.Paid = true
		case applyTimeouts && invoice.IsExpired(now, u.invoiceTimeout):
			sameObservation := !hasBalance || entities.PaymentsEqual(invoice.Payments, observed.Payments)
			if invoice.TimedOut && sameObservation {
				output.Unchanged++
				continue
			}
			timedOut := true
			update.TimedOut = &timedOut
			if hasBalance {
				update.Payments = observed.Payments
			} else {
				observed.Payments = invoice.Payments
			}
			observed.TimedOut = true
		default:
			output.Insufficient++
			continue
		}

		updated, appErr := u.ledger.UpdateDisposition(ctx, invoice.InvoiceID, update)
		if appErr != nil {
			return output, appErr
		}
		if !updated {
			output.Unchanged++
			continue
		}
		if observed.Paid {
			output.Paid++
		} else {
			output.TimedOut++
		}
		output.Invoices = append(output.Invoices, observed)
	}

	return output, nil
}

func validateWindow(from time.Time, to time.Time) *apperrors.AppError {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return apperrors.NewValidation(
			"invalid_request",
			"time window requires from before to",
			map[string]any{"from": from.UTC().Format(time.RFC3339), "to": to.UTC().Format(time.RFC3339)},
		)
	}
	return nil
}
