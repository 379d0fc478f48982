package dto

import (
	"time"

	"invoicewallet/internal/domain/entities"
)

type SweepInvoicesCommand struct {
	Network string
	From    time.Time
	To      time.Time
}

// DeployAndSweepBatch is built per network per run and never persisted.
type DeployAndSweepBatch struct {
	Network          string
	Tokens           []string
	Addresses        []string
	NeedsDeploy      []string
	NeedsDeploySalts []string
	AlreadyDeployed  []string
}

type SweepInvoicesOutput struct {
	Network    string
	Resumed    int
	Candidates int
	Deployed   int
	DeployTxID string
	SweepTxID  string
	Swept      int
}

type InvoicesForSweepOutput struct {
	Network  string
	Invoices []entities.Invoice
	Tokens   []string
}

type BulkSweepCommand struct {
	Network string
	Wallets []string
	Tokens  []string
}

// BulkSweepOutput reports a submitted sweep. Wallets counts the deduplicated
// wallets in the transaction; invoices are updated after it confirms.
type BulkSweepOutput struct {
	Network string
	TxID    string
	Wallets int
}
