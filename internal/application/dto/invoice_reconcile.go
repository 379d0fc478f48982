package dto

import (
	"time"

	"invoicewallet/internal/domain/entities"
)

type ReconcileInvoicesCommand struct {
	Network string
	From    time.Time
	To      time.Time
}

type ReconcileInvoicesOutput struct {
	Network      string
	Scanned      int
	WithBalance  int
	Paid         int
	TimedOut     int
	Insufficient int
	Unchanged    int
	Invoices     []entities.Invoice
}
