package dto

import (
	"encoding/json"
	"time"

	"invoicewallet/internal/domain/entities"
)

type CreateInvoiceCommand struct {
	Network   string
	Token     string
	AmountRaw string
	Item      json.RawMessage
}

type InvoiceDisposition string

const (
	InvoiceDispositionAny     InvoiceDisposition = ""
	InvoiceDispositionUnpaid  InvoiceDisposition = "unpaid"
	InvoiceDispositionSettled InvoiceDisposition = "settled"
)

// InvoiceRangeFilter selects invoices by creation time. To is exclusive unless ToInclusive is set.
type InvoiceRangeFilter struct {
	Network     string
	Disposition InvoiceDisposition
	From        time.Time
	To          time.Time
	ToInclusive bool
}

// InvoiceDispositionUpdate is a field-scoped update: nil fields are left untouched.
type InvoiceDispositionUpdate struct {
	Paid      *bool
	TimedOut  *bool
	Payments  []entities.InvoicePayment
	UpdatedAt time.Time
}

type GetInvoicesQuery struct {
	From time.Time
	To   time.Time
}

type UpdateInvoiceItemCommand struct {
	InvoiceID string
	Item      json.RawMessage
}
