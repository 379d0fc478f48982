package use_cases

import (
	"context"
	"encoding/json"
	"strings"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type invoiceQueriesUseCase struct {
	ledger portsout.InvoiceLedger
	clock  Clock
}

func NewInvoiceQueriesUseCase(ledger portsout.InvoiceLedger, clock Clock) portsin.InvoiceQueriesUseCase {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &invoiceQueriesUseCase{ledger: ledger, clock: clock}
}

// GetInvoices returns every invoice created in [From, To], both ends inclusive.
func (u *invoiceQueriesUseCase) GetInvoices(
	ctx context.Context,
	query dto.GetInvoicesQuery,
) ([]entities.Invoice, *apperrors.AppError) {
	if appErr := u.requireLedger(); appErr != nil {
		return nil, appErr
	}
	if query.From.IsZero() || query.To.IsZero() || query.To.Before(query.From) {
		return nil, apperrors.NewValidation(
			"invalid_request",
			"from and to are required and from must not be after to",
			map[string]any{"field": "from"},
		)
	}

	return u.ledger.FindByTimeRange(ctx, dto.InvoiceRangeFilter{
		Disposition: dto.InvoiceDispositionAny,
		From:        query.From.UTC(),
		To:          query.To.UTC(),
		ToInclusive: true,
	})
}

func (u *invoiceQueriesUseCase) GetInvoiceByID(
	ctx context.Context,
	invoiceID string,
) (entities.Invoice, *apperrors.AppError) {
	invoices, appErr := u.GetInvoicesByID(ctx, []string{invoiceID})
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	if len(invoices) == 0 {
		return entities.Invoice{}, apperrors.NewNotFound(
			"invoice_not_found",
			"invoice not found",
			map[string]any{"invoice_id": strings.TrimSpace(invoiceID)},
		)
	}
	return invoices[0], nil
}

func (u *invoiceQueriesUseCase) GetInvoicesByID(
	ctx context.Context,
	invoiceIDs []string,
) ([]entities.Invoice, *apperrors.AppError) {
	if appErr := u.requireLedger(); appErr != nil {
		return nil, appErr
	}
	if len(invoiceIDs) == 0 {
		return []entities.Invoice{}, nil
	}

	normalized := make([]string, 0, len(invoiceIDs))
	seen := make(map[string]struct{}, len(invoiceIDs))
	for _, raw := range invoiceIDs {
		id, appErr := valueobjects.NormalizeInvoiceID(raw)
		if appErr != nil {
			return nil, appErr
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}

	return u.ledger.FindByIDs(ctx, normalized)
}

func (u *invoiceQueriesUseCase) UpdateInvoiceItem(
	ctx context.Context,
	command dto.UpdateInvoiceItemCommand,
) (entities.Invoice, *apperrors.AppError) {
	if appErr := u.requireLedger(); appErr != nil {
		return entities.Invoice{}, appErr
	}
	invoiceID, appErr := valueobjects.NormalizeInvoiceID(command.InvoiceID)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	if len(command.Item) == 0 || !json.Valid(command.Item) {
		return entities.Invoice{}, apperrors.NewValidation(
			"invalid_request",
			"item must be valid JSON",
			map[string]any{"field": "item"},
		)
	}

	updated, appErr := u.ledger.UpdateItem(ctx, invoiceID, command.Item)
	if appErr != nil {
		return entities.Invoice{}, appErr
	}
	if !updated {
		return entities.Invoice{}, apperrors.NewNotFound(
			"invoice_not_found",
			"invoice not found",
			map[string]any{"invoice_id": invoiceID},
		)
	}
	return u.GetInvoiceByID(ctx, invoiceID)
}

func (u *invoiceQueriesUseCase) requireLedger() *apperrors.AppError {
	if u.ledger == nil {
		return apperrors.NewInternal(
			"invoice_ledger_missing",
			"invoice ledger is required",
			nil,
		)
	}
	return nil
}
