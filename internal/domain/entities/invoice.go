package entities

import (
	"encoding/json"
	"math/big"
	"time"

	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type WalletInstance struct {
	Network              string `json:"network"`
	Address              string `json:"address"`
	AddressForDisplay    string `json:"addressForDisplay"`
	Currency             string `json:"currency"`
	TimeBucket           int64  `json:"timeBucket"`
	TimeBucketWithMargin int64  `json:"timeBucketWithMargin"`
	RandomSeed           string `json:"randomSeed"`
	Salt                 string `json:"salt"`
}

// Token returns the token half of the wallet currency.
func (w WalletInstance) Token() string {
	_, token, appErr := valueobjects.ParseCurrency(w.Currency)
	if appErr != nil {
		return ""
	}
	return token
}

type InvoicePayment struct {
	Network   string `json:"network"`
	Currency  string `json:"currency"`
	TxID      string `json:"txId"`
	From      string `json:"from"`
	To        string `json:"to"`
	AmountRaw string `json:"amountRaw"`
	Timestamp int64  `json:"timestamp"`
}

// SameObservation compares the on-chain facts of two payments and ignores when they were seen.
func (p InvoicePayment) SameObservation(other InvoicePayment) bool {
	return p.Network == other.Network &&
		p.Currency == other.Currency &&
		p.TxID == other.TxID &&
		p.AmountRaw == other.AmountRaw
}

type Invoice struct {
	InvoiceID     string           `json:"invoiceId"`
	Wallet        WalletInstance   `json:"wallet"`
	AmountRaw     string           `json:"amountRaw"`
	AmountDisplay string           `json:"amountDisplay,omitempty"`
	Symbol        string           `json:"symbol,omitempty"`
	Currency      string           `json:"currency"`
	Payments      []InvoicePayment `json:"payments"`
	Paid          bool             `json:"paid"`
	TimedOut      bool             `json:"timedOut"`
	CreationTime  time.Time        `json:"creationTime"`
	Item          json.RawMessage  `json:"item,omitempty"`
	SweepTxIDs    []string         `json:"sweepTxs"`
}

type NewInvoiceInput struct {
	InvoiceID     string
	Wallet        WalletInstance
	AmountRaw     string
	AmountDisplay string
	Symbol        string
	CreationTime  time.Time
	Item          json.RawMessage
}

func NewInvoice(input NewInvoiceInput) (Invoice, *apperrors.AppError) {
	if input.InvoiceID == "" {
		return Invoice{}, apperrors.NewInternal(
			"invoice_id_missing",
			"invoice id is required",
			nil,
		)
	}
	if input.Wallet.Address == "" || input.Wallet.Salt == "" {
		return Invoice{}, apperrors.NewInternal(
			"invoice_wallet_missing",
			"invoice wallet address and salt are required",
			map[string]any{"invoice_id": input.InvoiceID},
		)
	}
	if input.CreationTime.IsZero() {
		return Invoice{}, apperrors.NewInternal(
			"invoice_creation_time_missing",
			"invoice creation time is required",
			map[string]any{"invoice_id": input.InvoiceID},
		)
	}
	if len(input.Item) > 0 && !json.Valid(input.Item) {
		return Invoice{}, apperrors.NewValidation(
			"invalid_request",
			"item must be valid JSON",
			map[string]any{"field": "item"},
		)
	}

	return Invoice{
		InvoiceID:     input.InvoiceID,
		Wallet:        input.Wallet,
		AmountRaw:     input.AmountRaw,
		AmountDisplay: input.AmountDisplay,
		Symbol:        input.Symbol,
		Currency:      input.Wallet.Currency,
		Payments:      []InvoicePayment{},
		Paid:          false,
		TimedOut:      false,
		CreationTime:  input.CreationTime.UTC(),
		Item:          cloneRaw(input.Item),
		SweepTxIDs:    []string{},
	}, nil
}

// PaymentsTotal sums the recorded payment amounts.
func (i Invoice) PaymentsTotal() (*big.Int, *apperrors.AppError) {
	total := big.NewInt(0)
	for _, payment := range i.Payments {
		amount, appErr := valueobjects.ParseAmountRaw(payment.AmountRaw)
		if appErr != nil {
			return nil, appErr
		}
		total.Add(total, amount)
	}
	return total, nil
}

// HasEnoughPayments is true iff the payment total covers the requested amount.
func (i Invoice) HasEnoughPayments() (bool, *apperrors.AppError) {
	if len(i.Payments) == 0 {
		return false, nil
	}
	total, appErr := i.PaymentsTotal()
	if appErr != nil {
		return false, appErr
	}
	requested, appErr := valueobjects.ParseAmountRaw(i.AmountRaw)
	if appErr != nil {
		return false, appErr
	}
	return total.Cmp(requested) >= 0, nil
}

func (i Invoice) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(i.CreationTime) > timeout
}

// HasSweepTx reports whether txID is already recorded against the invoice.
func (i Invoice) HasSweepTx(txID string) bool {
	for _, existing := range i.SweepTxIDs {
		if existing == txID {
			return true
		}
	}
	return false
}

// PaymentsEqual compares two payment lists observation by observation.
func PaymentsEqual(left, right []InvoicePayment) bool {
	if len(left) != len(right) {
		return false
	}
	for index := range left {
		if !left[index].SameObservation(right[index]) {
			return false
		}
	}
	return true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
