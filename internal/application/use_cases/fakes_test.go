//go:build !integration

package use_cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) NowUTC() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now.UTC()
}

type fakeRandom struct {
	next byte
}

func (r *fakeRandom) Bytes(size int) ([]byte, error) {
	r.next++
	out := make([]byte, size)
	for index := range out {
		out[index] = r.next
	}
	return out, nil
}

type fakeDispositionWrite struct {
	invoiceID string
	update    dto.InvoiceDispositionUpdate
}

type fakeLedger struct {
	mu          sync.Mutex
	invoices    map[string]entities.Invoice
	order       []string
	creates     int
	writes      []fakeDispositionWrite
	appendCalls int
	findErr     *apperrors.AppError
}

func newFakeLedger(invoices ...entities.Invoice) *fakeLedger {
	ledger := &fakeLedger{invoices: map[string]entities.Invoice{}}
	for _, invoice := range invoices {
		ledger.put(invoice)
	}
	return ledger
}

func (l *fakeLedger) put(invoice entities.Invoice) {
	if _, exists := l.invoices[invoice.InvoiceID]; !exists {
		l.order = append(l.order, invoice.InvoiceID)
	}
	l.invoices[invoice.InvoiceID] = invoice
}

func (l *fakeLedger) get(invoiceID string) entities.Invoice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invoices[invoiceID]
}

func (l *fakeLedger) Create(_ context.Context, invoice entities.Invoice) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.invoices[invoice.InvoiceID]; exists {
		return apperrors.NewConflict("invoice_duplicate", "duplicate", nil)
	}
	l.creates++
	l.put(invoice)
	return nil
}

func (l *fakeLedger) FindByTimeRange(_ context.Context, filter dto.InvoiceRangeFilter) ([]entities.Invoice, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	out := []entities.Invoice{}
	for _, id := range l.order {
		invoice := l.invoices[id]
		if filter.Network != "" && invoice.Wallet.Network != filter.Network {
			continue
		}
		if invoice.CreationTime.Before(filter.From) {
			continue
		}
		if filter.ToInclusive && invoice.CreationTime.After(filter.To) {
			continue
		}
		if !filter.ToInclusive && !invoice.CreationTime.Before(filter.To) {
			continue
		}
		switch filter.Disposition {
		case dto.InvoiceDispositionUnpaid:
			if invoice.Paid {
				continue
			}
		case dto.InvoiceDispositionSettled:
			if !invoice.Paid && !invoice.TimedOut {
				continue
			}
		}
		out = append(out, invoice)
	}
	return out, nil
}

func (l *fakeLedger) FindByIDs(_ context.Context, ids []string) ([]entities.Invoice, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []entities.Invoice{}
	for _, id := range ids {
		if invoice, exists := l.invoices[id]; exists {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (l *fakeLedger) UpdateDisposition(
	_ context.Context,
	invoiceID string,
	update dto.InvoiceDispositionUpdate,
) (bool, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	invoice, exists := l.invoices[invoiceID]
	if !exists {
		return false, nil
	}
	l.writes = append(l.writes, fakeDispositionWrite{invoiceID: invoiceID, update: update})
	if update.Paid != nil {
		invoice.Paid = invoice.Paid || *update.Paid
	}
	if update.TimedOut != nil {
		invoice.TimedOut = *update.TimedOut
	}
	if update.Payments != nil {
		invoice.Payments = append([]entities.InvoicePayment(nil), update.Payments...)
	}
	l.invoices[invoiceID] = invoice
	return true, nil
}

func (l *fakeLedger) UpdateItem(_ context.Context, invoiceID string, item json.RawMessage) (bool, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	invoice, exists := l.invoices[invoiceID]
	if !exists {
		return false, nil
	}
	invoice.Item = append(json.RawMessage(nil), item...)
	l.invoices[invoiceID] = invoice
	return true, nil
}

func (l *fakeLedger) AppendSweepTx(_ context.Context, walletAddresses []string, txID string) (int, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendCalls++
	wanted := map[string]struct{}{}
	for _, address := range walletAddresses {
		wanted[address] = struct{}{}
	}
	updated := 0
	for _, id := range l.order {
		invoice := l.invoices[id]
		if _, exists := wanted[invoice.Wallet.Address]; !exists || invoice.HasSweepTx(txID) {
			continue
		}
		invoice.SweepTxIDs = append(invoice.SweepTxIDs, txID)
		l.invoices[id] = invoice
		updated++
	}
	return updated, nil
}

type fakeSettlementLog struct {
	mu           sync.Mutex
	transactions []dto.SettlementTransaction
	marks        []string
}

func (l *fakeSettlementLog) RecordSubmitted(_ context.Context, transaction dto.SettlementTransaction) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = append(l.transactions, transaction)
	return nil
}

func (l *fakeSettlementLog) MarkStatus(
	_ context.Context,
	txID string,
	status valueobjects.TransactionStatus,
	updatedAt time.Time,
) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks = append(l.marks, txID+":"+status.String())
	for index := range l.transactions {
		if l.transactions[index].TxID == txID {
			l.transactions[index].Status = status
			l.transactions[index].UpdatedAt = updatedAt
		}
	}
	return nil
}

func (l *fakeSettlementLog) ListPending(
	_ context.Context,
	network string,
	kinds []dto.SettlementTransactionKind,
) ([]dto.SettlementTransaction, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []dto.SettlementTransaction{}
	for _, transaction := range l.transactions {
		if transaction.Network != network || transaction.Status.IsTerminal() {
			continue
		}
		for _, kind := range kinds {
			if transaction.Kind == kind {
				out = append(out, transaction)
			}
		}
	}
	return out, nil
}

func (l *fakeSettlementLog) LatestByPayID(_ context.Context, payID string) (dto.SettlementTransaction, bool, *apperrors.AppError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for index := len(l.transactions) - 1; index >= 0; index-- {
		if l.transactions[index].PayID == payID {
			return l.transactions[index], true, nil
		}
	}
	return dto.SettlementTransaction{}, false, nil
}

func (l *fakeSettlementLog) statusOf(txID string) valueobjects.TransactionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, transaction := range l.transactions {
		if transaction.TxID == txID {
			return transaction.Status
		}
	}
	return ""
}

// fakeChain simulates the wallet factory and holding wallet contracts. Deploy and sweep
// transactions settle immediately unless a status is pinned in txStatuses or, for
// every sweep, in sweepStatus.
type fakeChain struct {
	mu sync.Mutex

	balances   map[string]map[string]string
	deployed   map[string]bool
	paidIDs    map[string]bool
	available  map[string]string
	txStatuses map[string]valueobjects.TransactionStatus
	payTxs     map[string]string

	filterCalls   int
	filterErr     *apperrors.AppError
	deployCalls   [][]string
	sweepCalls    []fakeSweepCall
	nativePays    int
	tokenPays     int
	failDeploy    bool
	sweepStatus   valueobjects.TransactionStatus
	nextTx        int
	calls         []string
	metadataCalls int
}

type fakeSweepCall struct {
	tokens    []string
	addresses []string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:   map[string]map[string]string{},
		deployed:   map[string]bool{},
		paidIDs:    map[string]bool{},
		available:  map[string]string{},
		txStatuses: map[string]valueobjects.TransactionStatus{},
		payTxs:     map[string]string{},
	}
}

func (c *fakeChain) fund(address string, token string, amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balances[address] == nil {
		c.balances[address] = map[string]string{}
	}
	c.balances[address][token] = amount
}

func (c *fakeChain) newTxID() string {
	c.nextTx++
	return fmt.Sprintf("0x%064x", c.nextTx)
}

func (c *fakeChain) Implementation(_ context.Context, _ string) (string, *apperrors.AppError) {
	return "0x00000000000000000000000000000000000000aa", nil
}

func (c *fakeChain) CounterfactualAddress(_ context.Context, _ string, _ string, salt string) (string, *apperrors.AppError) {
	return "0x" + strings.ToUpper(salt[len(salt)-40:]), nil
}

func (c *fakeChain) FilterWithBalance(
	_ context.Context,
	_ string,
	tokens []string,
	addresses []string,
) ([]dto.WalletBalance, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterCalls++
	c.calls = append(c.calls, "filter")
	if c.filterErr != nil {
		return nil, c.filterErr
	}
	out := []dto.WalletBalance{}
	for _, address := range addresses {
		balance := dto.WalletBalance{Address: address}
		for _, token := range tokens {
			amount := c.balances[address][token]
			if amount == "" || amount == "0" {
				continue
			}
			balance.Tokens = append(balance.Tokens, token)
			balance.Balances = append(balance.Balances, amount)
		}
		out = append(out, balance)
	}
	return out, nil
}

func (c *fakeChain) NeedsDeploy(_ context.Context, _ string, addresses []string) ([]bool, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "needs_deploy")
	out := make([]bool, len(addresses))
	for index, address := range addresses {
		out[index] = !c.deployed[address]
	}
	return out, nil
}

func (c *fakeChain) MultiDeploy(_ context.Context, _ string, salts []string) (string, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "deploy")
	c.deployCalls = append(c.deployCalls, append([]string(nil), salts...))
	txID := c.newTxID()
	if c.failDeploy {
		c.txStatuses[txID] = valueobjects.TransactionStatusFailed
		return txID, nil
	}
	for _, salt := range salts {
		c.deployed[saltAddress(salt)] = true
	}
	return txID, nil
}

func (c *fakeChain) SweepMulti(_ context.Context, _ string, tokens []string, addresses []string) (string, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "sweep")
	c.sweepCalls = append(c.sweepCalls, fakeSweepCall{
		tokens:    append([]string(nil), tokens...),
		addresses: append([]string(nil), addresses...),
	})
	txID := c.newTxID()
	if c.sweepStatus != "" {
		c.txStatuses[txID] = c.sweepStatus
		return txID, nil
	}
	for _, address := range addresses {
		if !c.deployed[address] {
			c.txStatuses[txID] = valueobjects.TransactionStatusFailed
			return txID, nil
		}
	}
	for _, address := range addresses {
		delete(c.balances, address)
	}
	return txID, nil
}

func (c *fakeChain) TransactionStatus(
	_ context.Context,
	_ string,
	txID string,
	_ time.Time,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, exists := c.txStatuses[txID]
	if !exists {
		status = valueobjects.TransactionStatusSuccessful
	}
	if status == valueobjects.TransactionStatusSuccessful {
		if payID, isPay := c.payTxs[txID]; isPay {
			c.paidIDs[payID] = true
		}
	}
	return status, nil
}

func (c *fakeChain) IsPaid(_ context.Context, _ string, payID string) (bool, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paidIDs[payID], nil
}

func (c *fakeChain) PayNative(_ context.Context, _ string, payID string, _ string, _ string) (string, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nativePays++
	txID := c.newTxID()
	c.payTxs[txID] = payID
	return txID, nil
}

func (c *fakeChain) PayToken(_ context.Context, _ string, _ string, payID string, _ string, _ string) (string, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenPays++
	txID := c.newTxID()
	c.payTxs[txID] = payID
	return txID, nil
}

func (c *fakeChain) Available(_ context.Context, _ string, token string) (string, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amount, exists := c.available[token]; exists {
		return amount, nil
	}
	return "0", nil
}

func (c *fakeChain) TokenMetadata(_ context.Context, _ string, token string) (dto.TokenMetadata, *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadataCalls++
	if valueobjects.IsNativeToken(token) {
		return dto.TokenMetadata{Symbol: "ETH", Decimals: 18}, nil
	}
	return dto.TokenMetadata{Symbol: "TKN", Decimals: 6}, nil
}

func testInvoice(id string, network string, token string, amountRaw string, created time.Time) entities.Invoice {
	salt := "0x" + strings.Repeat(id[:2], 32)
	address := saltAddress(salt)
	return entities.Invoice{
		InvoiceID: strings.Repeat(id[:2], 32),
		Wallet: entities.WalletInstance{
			Network:  network,
			Address:  address,
			Currency: valueobjects.ToCurrency(network, token),
			Salt:     salt,
		},
		AmountRaw:    amountRaw,
		Currency:     valueobjects.ToCurrency(network, token),
		Payments:     []entities.InvoicePayment{},
		CreationTime: created,
		SweepTxIDs:   []string{},
	}
}

// saltAddress mirrors the fake factory: the wallet address is the low 20 bytes of the salt.
func saltAddress(salt string) string {
	return "0x" + strings.ToLower(salt[len(salt)-40:])
}
