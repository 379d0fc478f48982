package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const selectColumns = `
  tx_id,
  network,
  kind,
  status,
  addresses,
  tokens,
  pay_id,
  invoice_id,
  submitted_at,
  updated_at`

type Repository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ portsout.SettlementTransactionLog = (*Repository)(nil)

func NewRepository(db *sql.DB, logger *log.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// RecordSubmitted is idempotent on tx id; a replayed record keeps the stored status.
func (r *Repository) RecordSubmitted(ctx context.Context, transaction dto.SettlementTransaction) *apperrors.AppError {
	addresses, err := encodeStrings(transaction.Addresses)
	if err != nil {
		return encodeError(transaction.TxID, err)
	}
	tokens, err := encodeStrings(transaction.Tokens)
	if err != nil {
		return encodeError(transaction.TxID, err)
	}
	status := transaction.Status
	if status == "" {
		status = valueobjects.TransactionStatusSubmitted
	}
	updatedAt := transaction.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = transaction.SubmittedAt
	}

	const query = `
INSERT INTO app.settlement_transactions (
  tx_id,
  network,
  kind,
  status,
  addresses,
  tokens,
  pay_id,
  invoice_id,
  submitted_at,
  updated_at
) VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10)
ON CONFLICT (tx_id) DO NOTHING`

	_, err = r.db.ExecContext(
		ctx,
		query,
		transaction.TxID,
		transaction.Network,
		string(transaction.Kind),
		string(status),
		string(addresses),
		string(tokens),
		transaction.PayID,
		transaction.InvoiceID,
		transaction.SubmittedAt.UTC(),
		updatedAt.UTC(),
	)
	if err != nil {
		r.logf("settlement transaction insert failed tx_id=%s kind=%s error=%v", transaction.TxID, transaction.Kind, err)
		return apperrors.NewInternal(
			"settlement_transaction_insert_failed",
			"failed to record settlement transaction",
			map[string]any{"error": err.Error(), "tx_id": transaction.TxID},
		)
	}
	return nil
}

// MarkStatus never moves a transaction out of a terminal status.
func (r *Repository) MarkStatus(
	ctx context.Context,
	txID string,
	status valueobjects.TransactionStatus,
	updatedAt time.Time,
) *apperrors.AppError {
	const query = `
UPDATE app.settlement_transactions
SET status = $2, updated_at = $3
WHERE tx_id = $1
  AND status IN ('submitted', 'pending')`

	if _, err := r.db.ExecContext(ctx, query, txID, string(status), updatedAt.UTC()); err != nil {
		r.logf("settlement transaction status update failed tx_id=%s status=%s error=%v", txID, status, err)
		return apperrors.NewInternal(
			"settlement_transaction_update_failed",
			"failed to update settlement transaction status",
			map[string]any{"error": err.Error(), "tx_id": txID, "status": string(status)},
		)
	}
	return nil
}

func (r *Repository) ListPending(
	ctx context.Context,
	network string,
	kinds []dto.SettlementTransactionKind,
) ([]dto.SettlementTransaction, *apperrors.AppError) {
	if len(kinds) == 0 {
		return []dto.SettlementTransaction{}, nil
	}
	kindValues := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		kindValues = append(kindValues, string(kind))
	}

	query := `
SELECT` + selectColumns + `
FROM app.settlement_transactions
WHERE network = $1
  AND kind = ANY($2)
  AND status IN ('submitted', 'pending')
ORDER BY submitted_at ASC, tx_id ASC`

	rows, err := r.db.QueryContext(ctx, query, network, kindValues)
	if err != nil {
		return nil, queryError("settlement_transaction_query_failed", err)
	}
	defer rows.Close()

	transactions := []dto.SettlementTransaction{}
	for rows.Next() {
		transaction, appErr := scanTransaction(rows)
		if appErr != nil {
			return nil, appErr
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("settlement_transaction_rows_iteration_failed", err)
	}
	return transactions, nil
}

func (r *Repository) LatestByPayID(
	ctx context.Context,
	payID string,
) (dto.SettlementTransaction, bool, *apperrors.AppError) {
	query := `
SELECT` + selectColumns + `
FROM app.settlement_transactions
WHERE pay_id = $1
ORDER BY submitted_at DESC, updated_at DESC
LIMIT 1`

	transaction, appErr := scanTransaction(r.db.QueryRowContext(ctx, query, payID))
	if appErr != nil {
		if appErr.Code == "settlement_transaction_not_found" {
			return dto.SettlementTransaction{}, false, nil
		}
		return dto.SettlementTransaction{}, false, appErr
	}
	return transaction, true, nil
}

func (r *Repository) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (dto.SettlementTransaction, *apperrors.AppError) {
	var (
		transaction dto.SettlementTransaction
		kind        string
		status      string
		addresses   []byte
		tokens      []byte
	)
	err := row.Scan(
		&transaction.TxID,
		&transaction.Network,
		&kind,
		&status,
		&addresses,
		&tokens,
		&transaction.PayID,
		&transaction.InvoiceID,
		&transaction.SubmittedAt,
		&transaction.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return dto.SettlementTransaction{}, apperrors.NewNotFound(
			"settlement_transaction_not_found",
			"settlement transaction not found",
			nil,
		)
	}
	if err != nil {
		return dto.SettlementTransaction{}, queryError("settlement_transaction_row_scan_failed", err)
	}

	parsedStatus, appErr := valueobjects.ParseTransactionStatus(status)
	if appErr != nil {
		return dto.SettlementTransaction{}, appErr
	}
	transaction.Status = parsedStatus
	transaction.Kind = dto.SettlementTransactionKind(kind)
	transaction.Addresses = []string{}
	if err := json.Unmarshal(addresses, &transaction.Addresses); err != nil {
		return dto.SettlementTransaction{}, decodeError(transaction.TxID, "addresses", err)
	}
	transaction.Tokens = []string{}
	if err := json.Unmarshal(tokens, &transaction.Tokens); err != nil {
		return dto.SettlementTransaction{}, decodeError(transaction.TxID, "tokens", err)
	}
	transaction.SubmittedAt = transaction.SubmittedAt.UTC()
	transaction.UpdatedAt = transaction.UpdatedAt.UTC()

	return transaction, nil
}

func encodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func encodeError(txID string, err error) *apperrors.AppError {
	return apperrors.NewInternal(
		"settlement_transaction_encode_failed",
		"failed to encode settlement transaction",
		map[string]any{"error": err.Error(), "tx_id": txID},
	)
}

func decodeError(txID, field string, err error) *apperrors.AppError {
	return apperrors.NewInternal(
		"settlement_transaction_payload_invalid",
		"stored settlement transaction is invalid",
		map[string]any{"error": err.Error(), "field": field, "tx_id": txID},
	)
}

func queryError(code string, err error) *apperrors.AppError {
	return apperrors.NewInternal(
		code,
		"failed to query settlement transactions",
		map[string]any{"error": err.Error()},
	)
}
