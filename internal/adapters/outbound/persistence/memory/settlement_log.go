package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type SettlementLog struct {
	mu           sync.RWMutex
	transactions map[string]dto.SettlementTransaction
}

var _ portsout.SettlementTransactionLog = (*SettlementLog)(nil)

func NewSettlementLog() *SettlementLog {
	return &SettlementLog{transactions: map[string]dto.SettlementTransaction{}}
}

func (l *SettlementLog) RecordSubmitted(_ context.Context, transaction dto.SettlementTransaction) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.transactions[transaction.TxID]; exists {
		return nil
	}
	if transaction.Status == "" {
		transaction.Status = valueobjects.TransactionStatusSubmitted
	}
	if transaction.UpdatedAt.IsZero() {
		transaction.UpdatedAt = transaction.SubmittedAt
	}
	transaction.Addresses = append([]string{}, transaction.Addresses...)
	transaction.Tokens = append([]string{}, transaction.Tokens...)
	l.transactions[transaction.TxID] = transaction
	return nil
}

func (l *SettlementLog) MarkStatus(
	_ context.Context,
	txID string,
	status valueobjects.TransactionStatus,
	updatedAt time.Time,
) *apperrors.AppError {
	l.mu.Lock()
	defer l.mu.Unlock()

	transaction, exists := l.transactions[txID]
	if !exists || transaction.Status.IsTerminal() {
		return nil
	}
	transaction.Status = status
	transaction.UpdatedAt = updatedAt
	l.transactions[txID] = transaction
	return nil
}

func (l *SettlementLog) ListPending(
	_ context.Context,
	network string,
	kinds []dto.SettlementTransactionKind,
) ([]dto.SettlementTransaction, *apperrors.AppError) {
	wanted := map[dto.SettlementTransactionKind]struct{}{}
	for _, kind := range kinds {
		wanted[kind] = struct{}{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []dto.SettlementTransaction{}
	for _, transaction := range l.transactions {
		if transaction.Network != network || transaction.Status.IsTerminal() {
			continue
		}
		if _, match := wanted[transaction.Kind]; !match {
			continue
		}
		out = append(out, transaction)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].TxID < out[j].TxID
	})
	return out, nil
}

func (l *SettlementLog) LatestByPayID(_ context.Context, payID string) (dto.SettlementTransaction, bool, *apperrors.AppError) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		latest dto.SettlementTransaction
		found  bool
	)
	for _, transaction := range l.transactions {
		if payID == "" || transaction.PayID != payID {
			continue
		}
		if !found || transaction.SubmittedAt.After(latest.SubmittedAt) {
			latest = transaction
			found = true
		}
	}
	return latest, found, nil
}
