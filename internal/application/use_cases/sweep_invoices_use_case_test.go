//go:build !integration

package use_cases

import (
	"context"
	"testing"
	"time"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const configuredToken = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb2"

var sweepNow = time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

func sweepWindow() dto.SweepInvoicesCommand {
	return dto.SweepInvoicesCommand{
		Network: "ETHEREUM",
		From:    sweepNow.Add(-72 * time.Hour),
		To:      sweepNow.Add(-24 * time.Hour),
	}
}

func newTestSweepUseCase(ledger *fakeLedger, chain *fakeChain, log *fakeSettlementLog) *sweepInvoicesUseCase {
	clock := &fakeClock{now: sweepNow}
	tracker := NewTransactionTracker(chain, log, clock, time.Millisecond, time.Minute)
	return NewSweepInvoicesUseCase(ledger, chain, log, tracker, clock, SweepInvoicesOptions{
		NetworkTokens: map[string][]string{"ethereum": {configuredToken}},
	}).(*sweepInvoicesUseCase)
}

func TestSweepEndToEndAfterReconcile(t *testing.T) {
	created := sweepNow.Add(-30 * time.Hour)
	invoice := testInvoice("a1", "ETHEREUM", testToken, "500", created)
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	chain.fund(invoice.Wallet.Address, testToken, "500")
	log := &fakeSettlementLog{}

	reconciler := NewReconcileInvoicesUseCase(ledger, chain, &fakeClock{now: sweepNow}, ReconcileInvoicesOptions{})
	if _, appErr := reconciler.CheckAndUpdatePayments(context.Background(), dto.ReconcileInvoicesCommand{
		Network: "ETHEREUM",
		From:    created.Add(-time.Hour),
		To:      sweepNow,
	}); appErr != nil {
		t.Fatalf("expected no reconcile error, got %+v", appErr)
	}

	output, appErr := newTestSweepUseCase(ledger, chain, log).Sweep(context.Background(), sweepWindow())
	if appErr != nil {
		t.Fatalf("expected no sweep error, got %+v", appErr)
	}
	if output.Candidates != 1 || output.Deployed != 1 || output.Swept != 1 {
		t.Fatalf("expected one deployed and swept invoice, got %+v", output)
	}
	if len(chain.deployCalls) != 1 || len(chain.deployCalls[0]) != 1 || chain.deployCalls[0][0] != invoice.Wallet.Salt {
		t.Fatalf("expected deploy of the invoice salt, got %+v", chain.deployCalls)
	}
	if len(chain.sweepCalls) != 1 {
		t.Fatalf("expected one sweep, got %d", len(chain.sweepCalls))
	}

	stored := ledger.get(invoice.InvoiceID)
	if len(stored.SweepTxIDs) != 1 || stored.SweepTxIDs[0] != output.SweepTxID {
		t.Fatalf("expected exactly one sweep tx id %s, got %+v", output.SweepTxID, stored.SweepTxIDs)
	}
	if log.statusOf(output.DeployTxID) != valueobjects.TransactionStatusSuccessful ||
		log.statusOf(output.SweepTxID) != valueobjects.TransactionStatusSuccessful {
		t.Fatalf("expected both transactions logged successful, got %+v", log.transactions)
	}

	second, appErr := newTestSweepUseCase(ledger, chain, log).Sweep(context.Background(), sweepWindow())
	if appErr != nil {
		t.Fatalf("expected no error on second sweep, got %+v", appErr)
	}
	if second.Candidates != 0 || len(chain.sweepCalls) != 1 {
		t.Fatalf("expected nothing left to sweep, got %+v", second)
	}
}

func TestSweepDeploysOnlyUndeployedWalletsBeforeSweeping(t *testing.T) {
	deployed := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	deployed.Paid = true
	fresh := testInvoice("b2", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	fresh.TimedOut = true
	ledger := newFakeLedger(deployed, fresh)
	chain := newFakeChain()
	chain.deployed[deployed.Wallet.Address] = true
	chain.fund(deployed.Wallet.Address, testToken, "500")
	chain.fund(fresh.Wallet.Address, valueobjects.NativeToken, "7")

	output, appErr := newTestSweepUseCase(ledger, chain, &fakeSettlementLog{}).Sweep(context.Background(), sweepWindow())
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if output.Candidates != 2 || output.Deployed != 1 {
		t.Fatalf("expected two candidates and one deploy, got %+v", output)
	}
	if len(chain.deployCalls) != 1 || len(chain.deployCalls[0]) != 1 || chain.deployCalls[0][0] != fresh.Wallet.Salt {
		t.Fatalf("expected deploy of the undeployed wallet only, got %+v", chain.deployCalls)
	}

	deployIndex, sweepIndex := -1, -1
	for index, call := range chain.calls {
		if call == "deploy" && deployIndex < 0 {
			deployIndex = index
		}
		if call == "sweep" && sweepIndex < 0 {
			sweepIndex = index
		}
	}
	if deployIndex < 0 || sweepIndex < deployIndex {
		t.Fatalf("expected deploy before sweep, got %v", chain.calls)
	}

	sweep := chain.sweepCalls[0]
	if len(sweep.addresses) != 2 {
		t.Fatalf("expected both wallets swept, got %v", sweep.addresses)
	}
	expectedTokens := map[string]bool{testToken: false, configuredToken: false, valueobjects.NativeToken: false}
	for _, token := range sweep.tokens {
		if _, exists := expectedTokens[token]; exists {
			expectedTokens[token] = true
		}
	}
	for token, seen := range expectedTokens {
		if !seen {
			t.Fatalf("expected sweep tokens to include %s, got %v", token, sweep.tokens)
		}
	}
}

func TestSweepFailedDeployNeverSweeps(t *testing.T) {
	invoice := testInvoice("b2", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	invoice.Paid = true
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	chain.failDeploy = true
	chain.fund(invoice.Wallet.Address, testToken, "500")
	log := &fakeSettlementLog{}

	output, appErr := newTestSweepUseCase(ledger, chain, log).Sweep(context.Background(), sweepWindow())
	if appErr == nil {
		t.Fatalf("expected deploy failure")
	}
	if appErr.Type != apperrors.TypeTransactionFailed {
		t.Fatalf("expected transaction_failed, got %s", appErr.Type)
	}
	if len(chain.sweepCalls) != 0 {
		t.Fatalf("expected no sweep after failed deploy, got %d", len(chain.sweepCalls))
	}
	if log.statusOf(output.DeployTxID) != valueobjects.TransactionStatusFailed {
		t.Fatalf("expected failed deploy in log, got %s", log.statusOf(output.DeployTxID))
	}
	if stored := ledger.get(invoice.InvoiceID); !stored.Paid || len(stored.SweepTxIDs) != 0 {
		t.Fatalf("expected paid invoice without sweep tx, got %+v", stored)
	}
}

func TestSweepResumesPendingSweepFromLog(t *testing.T) {
	invoice := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	invoice.Paid = true
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	log := &fakeSettlementLog{transactions: []dto.SettlementTransaction{{
		TxID:        "0xresumed",
		Network:     "ETHEREUM",
		Kind:        dto.SettlementTransactionKindSweep,
		Status:      valueobjects.TransactionStatusPending,
		Addresses:   []string{invoice.Wallet.Address},
		SubmittedAt: sweepNow.Add(-time.Minute),
	}}}

	output, appErr := newTestSweepUseCase(ledger, chain, log).Sweep(context.Background(), sweepWindow())
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if output.Resumed != 1 {
		t.Fatalf("expected one resumed transaction, got %d", output.Resumed)
	}
	if stored := ledger.get(invoice.InvoiceID); len(stored.SweepTxIDs) != 1 || stored.SweepTxIDs[0] != "0xresumed" {
		t.Fatalf("expected resumed sweep tx recorded once, got %+v", stored.SweepTxIDs)
	}

	if _, appErr := ledger.AppendSweepTx(context.Background(), []string{invoice.Wallet.Address}, "0xresumed"); appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if stored := ledger.get(invoice.InvoiceID); len(stored.SweepTxIDs) != 1 {
		t.Fatalf("expected append to be idempotent, got %+v", stored.SweepTxIDs)
	}
}

func TestSweepUnsuccessfulSweepLeavesInvoicesUnswept(t *testing.T) {
	testCases := []struct {
		name     string
		status   valueobjects.TransactionStatus
		step     time.Duration
		wantType apperrors.Type
		wantLog  valueobjects.TransactionStatus
	}{
		{
			name:     "reverted sweep",
			status:   valueobjects.TransactionStatusFailed,
			wantType: apperrors.TypeTransactionFailed,
			wantLog:  valueobjects.TransactionStatusFailed,
		},
		{
			name:     "chain reports timed out",
			status:   valueobjects.TransactionStatusTimedOut,
			wantType: apperrors.TypeTransactionTimedOut,
			wantLog:  valueobjects.TransactionStatusTimedOut,
		},
		{
			name:     "still pending at the deadline",
			status:   valueobjects.TransactionStatusPending,
			step:     time.Minute,
			wantType: apperrors.TypeTransactionTimedOut,
			wantLog:  valueobjects.TransactionStatusTimedOut,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paid := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
			paid.Paid = true
			expired := testInvoice("b2", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
			expired.TimedOut = true
			ledger := newFakeLedger(paid, expired)
			chain := newFakeChain()
			chain.sweepStatus = tc.status
			for _, invoice := range []entities.Invoice{paid, expired} {
				chain.deployed[invoice.Wallet.Address] = true
				chain.fund(invoice.Wallet.Address, testToken, "500")
			}
			log := &fakeSettlementLog{}

			clock := &fakeClock{now: sweepNow, step: tc.step}
			tracker := NewTransactionTracker(chain, log, clock, time.Millisecond, 5*time.Minute)
			useCase := NewSweepInvoicesUseCase(ledger, chain, log, tracker, clock, SweepInvoicesOptions{})

			output, appErr := useCase.Sweep(context.Background(), sweepWindow())
			if appErr == nil {
				t.Fatalf("expected sweep error")
			}
			if appErr.Type != tc.wantType {
				t.Fatalf("expected %s, got %s", tc.wantType, appErr.Type)
			}
			if output.SweepTxID == "" || output.Swept != 0 {
				t.Fatalf("expected a submitted but unrecorded sweep, got %+v", output)
			}
			if got := log.statusOf(output.SweepTxID); got != tc.wantLog {
				t.Fatalf("expected logged status %s, got %s", tc.wantLog, got)
			}
			if ledger.appendCalls != 0 {
				t.Fatalf("expected no sweep tx appended, got %d appends", ledger.appendCalls)
			}

			storedPaid := ledger.get(paid.InvoiceID)
			if !storedPaid.Paid || storedPaid.TimedOut || len(storedPaid.SweepTxIDs) != 0 {
				t.Fatalf("expected paid invoice unchanged, got %+v", storedPaid)
			}
			storedExpired := ledger.get(expired.InvoiceID)
			if !storedExpired.TimedOut || storedExpired.Paid || len(storedExpired.SweepTxIDs) != 0 {
				t.Fatalf("expected timed out invoice unchanged, got %+v", storedExpired)
			}
		})
	}
}

func TestBulkSweepPaidWalletsRecordsTransaction(t *testing.T) {
	invoice := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	invoice.Paid = true
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	chain.deployed[invoice.Wallet.Address] = true
	log := &fakeSettlementLog{}

	output, appErr := newTestSweepUseCase(ledger, chain, log).BulkSweepPaidWallets(context.Background(), dto.BulkSweepCommand{
		Network: "ethereum",
		Wallets: []string{invoice.Wallet.Address, invoice.Wallet.Address},
	})
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if output.TxID == "" || output.Wallets != 1 {
		t.Fatalf("expected tx id and one wallet, got %+v", output)
	}
	if len(chain.sweepCalls) != 1 || len(chain.sweepCalls[0].addresses) != 1 {
		t.Fatalf("expected one deduplicated sweep call, got %+v", chain.sweepCalls)
	}
	if len(log.transactions) != 1 || log.transactions[0].Status != valueobjects.TransactionStatusSubmitted {
		t.Fatalf("expected submitted sweep in log, got %+v", log.transactions)
	}
	if stored := ledger.get(invoice.InvoiceID); len(stored.SweepTxIDs) != 0 {
		t.Fatalf("expected no sweep tx before confirmation, got %+v", stored.SweepTxIDs)
	}

	if _, appErr := newTestSweepUseCase(ledger, chain, log).Sweep(context.Background(), sweepWindow()); appErr != nil {
		t.Fatalf("expected no error resuming the bulk sweep, got %+v", appErr)
	}
	if stored := ledger.get(invoice.InvoiceID); len(stored.SweepTxIDs) != 1 || stored.SweepTxIDs[0] != output.TxID {
		t.Fatalf("expected confirmed bulk sweep tx %s recorded, got %+v", output.TxID, stored.SweepTxIDs)
	}
}

func TestBulkSweepPaidWalletsRejectsUndeployedWallets(t *testing.T) {
	invoice := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	invoice.Paid = true
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	log := &fakeSettlementLog{}

	_, appErr := newTestSweepUseCase(ledger, chain, log).BulkSweepPaidWallets(context.Background(), dto.BulkSweepCommand{
		Network: "ethereum",
		Wallets: []string{invoice.Wallet.Address},
	})
	if appErr == nil || appErr.Code != "wallets_not_deployed" {
		t.Fatalf("expected wallets_not_deployed, got %+v", appErr)
	}
	if len(chain.sweepCalls) != 0 || len(log.transactions) != 0 {
		t.Fatalf("expected nothing submitted, got sweeps=%d log=%d", len(chain.sweepCalls), len(log.transactions))
	}
	if stored := ledger.get(invoice.InvoiceID); len(stored.SweepTxIDs) != 0 {
		t.Fatalf("expected no sweep tx recorded, got %+v", stored.SweepTxIDs)
	}
}

func TestBulkSweepFailureIsNeverRecordedAgainstInvoices(t *testing.T) {
	invoice := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	invoice.Paid = true
	ledger := newFakeLedger(invoice)
	chain := newFakeChain()
	chain.deployed[invoice.Wallet.Address] = true
	chain.sweepStatus = valueobjects.TransactionStatusFailed
	log := &fakeSettlementLog{}

	output, appErr := newTestSweepUseCase(ledger, chain, log).BulkSweepPaidWallets(context.Background(), dto.BulkSweepCommand{
		Network: "ethereum",
		Wallets: []string{invoice.Wallet.Address},
	})
	if appErr != nil {
		t.Fatalf("expected submission to succeed, got %+v", appErr)
	}

	resumed, appErr := newTestSweepUseCase(ledger, chain, log).resumePending(context.Background(), "ETHEREUM")
	if appErr != nil {
		t.Fatalf("expected resume to absorb the terminal failure, got %+v", appErr)
	}
	if resumed != 1 || log.statusOf(output.TxID) != valueobjects.TransactionStatusFailed {
		t.Fatalf("expected one resumed failed tx, got resumed=%d status=%s", resumed, log.statusOf(output.TxID))
	}
	if stored := ledger.get(invoice.InvoiceID); !stored.Paid || len(stored.SweepTxIDs) != 0 {
		t.Fatalf("expected paid invoice without the failed sweep tx, got %+v", stored)
	}
}

func TestGetInvoicesForSweepSkipsEmptyWallets(t *testing.T) {
	funded := testInvoice("a1", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	funded.Paid = true
	drained := testInvoice("b2", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	drained.TimedOut = true
	open := testInvoice("c3", "ETHEREUM", testToken, "500", sweepNow.Add(-30*time.Hour))
	ledger := newFakeLedger(funded, drained, open)
	chain := newFakeChain()
	chain.fund(funded.Wallet.Address, testToken, "500")
	chain.fund(open.Wallet.Address, testToken, "500")

	output, appErr := newTestSweepUseCase(ledger, chain, &fakeSettlementLog{}).GetInvoicesForSweep(context.Background(), sweepWindow())
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if len(output.Invoices) != 1 || output.Invoices[0].InvoiceID != funded.InvoiceID {
		t.Fatalf("expected only the funded settled invoice, got %+v", output.Invoices)
	}
	if len(chain.deployCalls) != 0 || len(chain.sweepCalls) != 0 {
		t.Fatalf("expected no transactions from a read")
	}
}
