//go:build !integration

package valueobjects

import "testing"

func TestParseTransactionStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		valid    bool
		status   TransactionStatus
		terminal bool
	}{
		{name: "submitted", raw: "submitted", valid: true, status: TransactionStatusSubmitted},
		{name: "pending", raw: "PENDING", valid: true, status: TransactionStatusPending},
		{name: "successful", raw: "successful", valid: true, status: TransactionStatusSuccessful, terminal: true},
		{name: "failed", raw: "failed", valid: true, status: TransactionStatusFailed, terminal: true},
		{name: "timedout", raw: "timedout", valid: true, status: TransactionStatusTimedOut, terminal: true},
		{name: "invalid", raw: "mined", valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, appErr := ParseTransactionStatus(tc.raw)
			if !tc.valid {
				if appErr == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if appErr != nil {
				t.Fatalf("expected no error, got %+v", appErr)
			}
			if status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, status)
			}
			if status.IsTerminal() != tc.terminal {
				t.Fatalf("expected terminal=%t for %s", tc.terminal, status)
			}
		})
	}
}
