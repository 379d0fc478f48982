package dto

type PayCommand struct {
	Currency  string
	PayID     string
	Recipient string
	AmountRaw string
}

type PayOutput struct {
	Network     string
	Token       string
	PayID       string
	TxID        string
	AlreadyPaid bool
}

type SettlePayoutCommand struct {
	InvoiceID string
	Currency  string
	Recipient string
	AmountRaw string
}

type PayoutOutcome string

const (
	PayoutOutcomePaid        PayoutOutcome = "paid"
	PayoutOutcomeAlreadyPaid PayoutOutcome = "already_paid"
	PayoutOutcomePending     PayoutOutcome = "pending"
	PayoutOutcomeFailed      PayoutOutcome = "failed"
)

type SettlePayoutOutput struct {
	InvoiceID    string
	PayID        string
	TxID         string
	ReplacedTxID string
	Outcome      PayoutOutcome
}

type LiquidityOutput struct {
	Network      string
	Token        string
	AvailableRaw string
}
