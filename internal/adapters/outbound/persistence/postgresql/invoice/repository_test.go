//go:build !integration

package invoice

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"invoicewallet/internal/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for index, value := range r.values {
		switch target := dest[index].(type) {
		case *string:
			*target = value.(string)
		case *bool:
			*target = value.(bool)
		case *time.Time:
			*target = value.(time.Time)
		case *[]byte:
			if value == nil {
				*target = nil
				continue
			}
			*target = []byte(value.(string))
		default:
			return fmt.Errorf("unsupported destination %T", target)
		}
	}
	return nil
}

func invoiceRow(item any, payments string) stubRow {
	return stubRow{values: []any{
		strings.Repeat("ab", 32),
		`{"network":"sepolia","address":"0x1111111111111111111111111111111111111111","currency":"sepolia:0x0000000000000000000000000000000000000000","salt":"0x01"}`,
		"1500",
		"0.0000000000000015",
		"ETH",
		"sepolia:0x0000000000000000000000000000000000000000",
		payments,
		true,
		false,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)),
		item,
		`["0xsweep"]`,
	}}
}

func TestScanInvoiceDecodesJSONColumns(t *testing.T) {
	payments := `[{"network":"sepolia","currency":"sepolia:0x0000000000000000000000000000000000000000","txId":"","amountRaw":"1500","timestamp":1}]`
	invoice, appErr := scanInvoice(invoiceRow(`{"sku": "a-1"}`, payments))
	if appErr != nil {
		t.Fatalf("expected scan success, got %+v", appErr)
	}

	if invoice.Wallet.Address != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("expected wallet address decoded, got %q", invoice.Wallet.Address)
	}
	if len(invoice.Payments) != 1 || invoice.Payments[0].AmountRaw != "1500" {
		t.Fatalf("expected one payment of 1500, got %+v", invoice.Payments)
	}
	if string(invoice.Item) != `{"sku": "a-1"}` {
		t.Fatalf("expected item returned verbatim, got %s", invoice.Item)
	}
	if len(invoice.SweepTxIDs) != 1 || invoice.SweepTxIDs[0] != "0xsweep" {
		t.Fatalf("expected sweep tx ids decoded, got %v", invoice.SweepTxIDs)
	}
	if invoice.CreationTime.Location() != time.UTC {
		t.Fatalf("expected creation time in UTC, got %v", invoice.CreationTime.Location())
	}
	if !invoice.Paid || invoice.TimedOut {
		t.Fatalf("expected paid=true timedOut=false, got paid=%v timedOut=%v", invoice.Paid, invoice.TimedOut)
	}
}

func TestScanInvoiceLeavesMissingItemNil(t *testing.T) {
	invoice, appErr := scanInvoice(invoiceRow(nil, `[]`))
	if appErr != nil {
		t.Fatalf("expected scan success, got %+v", appErr)
	}
	if invoice.Item != nil {
		t.Fatalf("expected nil item, got %s", invoice.Item)
	}
	if invoice.Payments == nil || len(invoice.Payments) != 0 {
		t.Fatalf("expected empty non-nil payments, got %#v", invoice.Payments)
	}
}

func TestScanInvoiceRejectsCorruptPayload(t *testing.T) {
	_, appErr := scanInvoice(invoiceRow(nil, `{not-json`))
	if appErr == nil {
		t.Fatalf("expected decode error")
	}
	if appErr.Code != "invoice_payload_invalid" {
		t.Fatalf("expected invoice_payload_invalid, got %s", appErr.Code)
	}
	if appErr.Details["field"] != "payments" {
		t.Fatalf("expected field=payments, got %v", appErr.Details["field"])
	}
}

func TestScanInvoicePropagatesScanError(t *testing.T) {
	_, appErr := scanInvoice(stubRow{err: errors.New("boom")})
	if appErr == nil || appErr.Code != "invoice_row_scan_failed" {
		t.Fatalf("expected invoice_row_scan_failed, got %+v", appErr)
	}
}

func TestEncodeListWritesEmptyArrayForNil(t *testing.T) {
	encoded, err := encodeList[entities.InvoicePayment](nil)
	if err != nil {
		t.Fatalf("expected encode success, got %v", err)
	}
	if string(encoded) != "[]" {
		t.Fatalf("expected [], got %s", encoded)
	}
}

func TestNullableJSON(t *testing.T) {
	if value := nullableJSON(nil); value.Valid {
		t.Fatalf("expected NULL for empty item")
	}
	if value := nullableJSON([]byte(`[1,2]`)); !value.Valid || value.String != "[1,2]" {
		t.Fatalf("expected verbatim item, got %+v", value)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("expected 23503 not to be a unique violation")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Fatalf("expected plain error not to be a unique violation")
	}
}
