package dto

import (
	"time"

	valueobjects "invoicewallet/internal/domain/value_objects"
)

type SettlementTransactionKind string

const (
	SettlementTransactionKindDeploy SettlementTransactionKind = "deploy"
	SettlementTransactionKindSweep  SettlementTransactionKind = "sweep"
	SettlementTransactionKindPayout SettlementTransactionKind = "payout"
)

type SettlementTransaction struct {
	TxID        string
	Network     string
	Kind        SettlementTransactionKind
	Status      valueobjects.TransactionStatus
	Addresses   []string
	Tokens      []string
	PayID       string
	InvoiceID   string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

type TrackTransactionCommand struct {
	Network     string
	TxID        string
	SubmittedAt time.Time
}
