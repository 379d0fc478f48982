//go:build !integration

package entities

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHasEnoughPaymentsThresholdLaw(t *testing.T) {
	testCases := []struct {
		name      string
		requested string
		payments  []string
		expected  bool
	}{
		{name: "one short", requested: "1000", payments: []string{"999"}, expected: false},
		{name: "exact", requested: "1000", payments: []string{"1000"}, expected: true},
		{name: "big integers", requested: "999999999999999999", payments: []string{"1000000000000000000"}, expected: true},
		{name: "beyond uint64", requested: "100000000000000000000000", payments: []string{"99999999999999999999999"}, expected: false},
		{name: "no payments", requested: "0", payments: nil, expected: false},
		{name: "sum of payments", requested: "1000", payments: []string{"400", "600"}, expected: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			invoice := Invoice{AmountRaw: testCase.requested}
			for _, amount := range testCase.payments {
				invoice.Payments = append(invoice.Payments, InvoicePayment{AmountRaw: amount})
			}

			enough, appErr := invoice.HasEnoughPayments()
			if appErr != nil {
				t.Fatalf("expected no error, got %+v", appErr)
			}
			if enough != testCase.expected {
				t.Fatalf("expected %t, got %t", testCase.expected, enough)
			}
		})
	}
}

func TestHasEnoughPaymentsRejectsGarbage(t *testing.T) {
	invoice := Invoice{AmountRaw: "10", Payments: []InvoicePayment{{AmountRaw: "ten"}}}
	if _, appErr := invoice.HasEnoughPayments(); appErr == nil {
		t.Fatalf("expected error for malformed payment amount")
	}
}

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	invoice := Invoice{CreationTime: created}

	if invoice.IsExpired(created.Add(48*time.Hour), 48*time.Hour) {
		t.Fatalf("expected invoice at exactly the timeout to be live")
	}
	if !invoice.IsExpired(created.Add(48*time.Hour+time.Millisecond), 48*time.Hour) {
		t.Fatalf("expected invoice past the timeout to be expired")
	}
}

func TestNewInvoiceCopiesItemVerbatim(t *testing.T) {
	item := json.RawMessage(`{"order":"A-1","lines":[1,2]}`)
	invoice, appErr := NewInvoice(NewInvoiceInput{
		InvoiceID:    "ab",
		Wallet:       WalletInstance{Address: "0x01", Salt: "0x02", Currency: "ETHEREUM:0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1"},
		AmountRaw:    "500",
		CreationTime: time.Now(),
		Item:         item,
	})
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	item[2] = 'X'
	if string(invoice.Item) != `{"order":"A-1","lines":[1,2]}` {
		t.Fatalf("expected item to be stored verbatim, got %s", string(invoice.Item))
	}
	if invoice.Paid || invoice.TimedOut || len(invoice.Payments) != 0 {
		t.Fatalf("expected fresh invoice, got %+v", invoice)
	}
	if invoice.Wallet.Token() != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1" {
		t.Fatalf("unexpected wallet token %s", invoice.Wallet.Token())
	}
}

func TestNewInvoiceRejectsInvalidItem(t *testing.T) {
	_, appErr := NewInvoice(NewInvoiceInput{
		InvoiceID:    "ab",
		Wallet:       WalletInstance{Address: "0x01", Salt: "0x02"},
		CreationTime: time.Now(),
		Item:         json.RawMessage(`{not json`),
	})
	if appErr == nil || appErr.Code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %+v", appErr)
	}
}

func TestPaymentsEqualIgnoresTimestamp(t *testing.T) {
	left := []InvoicePayment{{Network: "ETHEREUM", Currency: "ETHEREUM:0x01", AmountRaw: "5", Timestamp: 1}}
	right := []InvoicePayment{{Network: "ETHEREUM", Currency: "ETHEREUM:0x01", AmountRaw: "5", Timestamp: 99}}
	if !PaymentsEqual(left, right) {
		t.Fatalf("expected equal payments")
	}
	right[0].AmountRaw = "6"
	if PaymentsEqual(left, right) {
		t.Fatalf("expected amount change to break equality")
	}
}
