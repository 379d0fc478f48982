package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// InvoiceLedger keeps invoices in process memory. It backs the devtest persistence mode and the CLI dry runs.
type InvoiceLedger struct {
	mu       sync.RWMutex
	invoices map[string]entities.Invoice
}

var _ portsout.InvoiceLedger = (*InvoiceLedger)(nil)

func NewInvoiceLedger() *InvoiceLedger {
	return &InvoiceLedger{invoices: map[string]entities.Invoice{}}
}

func (l *InvoiceLedger) Create(_ context.Context, invoice entities.Invoice) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.invoices[invoice.InvoiceID]; exists {
		return apperrors.NewConflict(
			"invoice_duplicate",
			"invoice already exists",
			map[string]any{"invoice_id": invoice.InvoiceID},
		)
	}
	l.invoices[invoice.InvoiceID] = cloneInvoice(invoice)
	return nil
}

func (l *InvoiceLedger) FindByTimeRange(
	_ context.Context,
	filter dto.InvoiceRangeFilter,
) ([]entities.Invoice, *apperrors.AppError) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []entities.Invoice{}
	for _, invoice := range l.invoices {
		if !matchesRange(invoice, filter) {
			continue
		}
		out = append(out, cloneInvoice(invoice))
	}
	sortInvoices(out)
	return out, nil
}

func (l *InvoiceLedger) FindByIDs(_ context.Context, ids []string) ([]entities.Invoice, *apperrors.AppError) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := map[string]struct{}{}
	out := []entities.Invoice{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if invoice, exists := l.invoices[id]; exists {
			out = append(out, cloneInvoice(invoice))
		}
	}
	sortInvoices(out)
	return out, nil
}

func (l *InvoiceLedger) UpdateDisposition(
	_ context.Context,
	invoiceID string,
	update dto.InvoiceDispositionUpdate,
) (bool, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	invoice, exists := l.invoices[invoiceID]
	if !exists {
		return false, nil
	}
	if update.Paid != nil {
		invoice.Paid = invoice.Paid || *update.Paid
	}
	if update.TimedOut != nil {
		invoice.TimedOut = *update.TimedOut
	}
	if update.Payments != nil {
		invoice.Payments = append([]entities.InvoicePayment{}, update.Payments...)
	}
	l.invoices[invoiceID] = invoice
	return true, nil
}

func (l *InvoiceLedger) UpdateItem(_ context.Context, invoiceID string, item json.RawMessage) (bool, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	invoice, exists := l.invoices[invoiceID]
	if !exists {
		return false, nil
	}
	invoice.Item = cloneRaw(item)
	l.invoices[invoiceID] = invoice
	return true, nil
}

func (l *InvoiceLedger) AppendSweepTx(_ context.Context, walletAddresses []string, txID string) (int, *apperrors.AppError) {
	if len(walletAddresses) == 0 || txID == "" {
		return 0, nil
	}
	wanted := make(map[string]struct{}, len(walletAddresses))
	for _, address := range walletAddresses {
		wanted[strings.ToLower(address)] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for id, invoice := range l.invoices {
		if _, match := wanted[strings.ToLower(invoice.Wallet.Address)]; !match || invoice.HasSweepTx(txID) {
			continue
		}
		invoice.SweepTxIDs = append(append([]string{}, invoice.SweepTxIDs...), txID)
		l.invoices[id] = invoice
		updated++
	}
	return updated, nil
}

func matchesRange(invoice entities.Invoice, filter dto.InvoiceRangeFilter) bool {
	if filter.Network != "" && invoice.Wallet.Network != filter.Network {
		return false
	}
	if invoice.CreationTime.Before(filter.From) {
		return false
	}
	if filter.ToInclusive {
		if invoice.CreationTime.After(filter.To) {
			return false
		}
	} else if !invoice.CreationTime.Before(filter.To) {
		return false
	}

	switch filter.Disposition {
	case dto.InvoiceDispositionUnpaid:
		return !invoice.Paid
	case dto.InvoiceDispositionSettled:
		return invoice.Paid || invoice.TimedOut
	default:
		return true
	}
}

func sortInvoices(invoices []entities.Invoice) {
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].CreationTime.Equal(invoices[j].CreationTime) {
			return invoices[i].CreationTime.Before(invoices[j].CreationTime)
		}
		return invoices[i].InvoiceID < invoices[j].InvoiceID
	})
}

func cloneInvoice(invoice entities.Invoice) entities.Invoice {
	out := invoice
	out.Payments = append([]entities.InvoicePayment{}, invoice.Payments...)
	out.SweepTxIDs = append([]string{}, invoice.SweepTxIDs...)
	out.Item = cloneRaw(invoice.Item)
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}
