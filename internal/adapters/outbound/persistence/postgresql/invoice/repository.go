package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log"
	"strings"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	apperrors "invoicewallet/internal/shared_kernel/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const selectColumns = `
  invoice_id,
  wallet,
  amount_raw::text,
  amount_display,
  symbol,
  currency,
  payments,
  paid,
  timed_out,
  creation_time,
  item,
  sweep_tx_ids`

type Repository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ portsout.InvoiceLedger = (*Repository)(nil)

func NewRepository(db *sql.DB, logger *log.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Create(ctx context.Context, invoice entities.Invoice) *apperrors.AppError {
	wallet, err := json.Marshal(invoice.Wallet)
	if err != nil {
		return encodeError("wallet", err)
	}
	payments, err := encodeList(invoice.Payments)
	if err != nil {
		return encodeError("payments", err)
	}
	sweepTxIDs, err := encodeList(invoice.SweepTxIDs)
	if err != nil {
		return encodeError("sweep_tx_ids", err)
	}

	const query = `
INSERT INTO app.invoices (
  invoice_id,
  network,
  wallet_address,
  wallet,
  currency,
  amount_raw,
  amount_display,
  symbol,
  payments,
  paid,
  timed_out,
  creation_time,
  item,
  sweep_tx_ids
) VALUES (
  $1, $2, $3, $4::jsonb, $5, $6::numeric, $7, $8, $9::jsonb, $10, $11, $12, $13::json, $14::jsonb
)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		invoice.InvoiceID,
		invoice.Wallet.Network,
		strings.ToLower(invoice.Wallet.Address),
		string(wallet),
		invoice.Currency,
		invoice.AmountRaw,
		invoice.AmountDisplay,
		invoice.Symbol,
		string(payments),
		invoice.Paid,
		invoice.TimedOut,
		invoice.CreationTime.UTC(),
		nullableJSON(invoice.Item),
		string(sweepTxIDs),
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict(
			"invoice_duplicate",
			"invoice already exists",
			map[string]any{"invoice_id": invoice.InvoiceID},
		)
	}
	if err != nil {
		r.logf("invoice insert failed invoice_id=%s error=%v", invoice.InvoiceID, err)
		return apperrors.NewInternal(
			"invoice_insert_failed",
			"failed to insert invoice",
			map[string]any{"error": err.Error(), "invoice_id": invoice.InvoiceID},
		)
	}
	return nil
}

func (r *Repository) FindByTimeRange(
	ctx context.Context,
	filter dto.InvoiceRangeFilter,
) ([]entities.Invoice, *apperrors.AppError) {
	query := `
SELECT` + selectColumns + `
FROM app.invoices
WHERE creation_time >= $1
  AND (creation_time < $2 OR ($3 AND creation_time = $2))
  AND ($4 = '' OR network = $4)
  AND (
    $5 = ''
    OR ($5 = 'unpaid' AND NOT paid)
    OR ($5 = 'settled' AND (paid OR timed_out))
  )
ORDER BY creation_time ASC, invoice_id ASC`

	rows, err := r.db.QueryContext(
		ctx,
		query,
		filter.From.UTC(),
		filter.To.UTC(),
		filter.ToInclusive,
		filter.Network,
		string(filter.Disposition),
	)
	if err != nil {
		return nil, queryError("invoice_range_query_failed", err)
	}
	return scanInvoices(rows)
}

func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]entities.Invoice, *apperrors.AppError) {
	if len(ids) == 0 {
		return []entities.Invoice{}, nil
	}

	query := `
SELECT` + selectColumns + `
FROM app.invoices
WHERE invoice_id = ANY($1)
ORDER BY creation_time ASC, invoice_id ASC`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, queryError("invoice_ids_query_failed", err)
	}
	return scanInvoices(rows)
}

// UpdateDisposition never clears paid: the stored flag is OR-ed with the update.
func (r *Repository) UpdateDisposition(
	ctx context.Context,
	invoiceID string,
	update dto.InvoiceDispositionUpdate,
) (bool, *apperrors.AppError) {
	paid := sql.NullBool{}
	if update.Paid != nil {
		paid = sql.NullBool{Bool: *update.Paid, Valid: true}
	}
	timedOut := sql.NullBool{}
	if update.TimedOut != nil {
		timedOut = sql.NullBool{Bool: *update.TimedOut, Valid: true}
	}
	payments := sql.NullString{}
	if update.Payments != nil {
		encoded, err := json.Marshal(update.Payments)
		if err != nil {
			return false, encodeError("payments", err)
		}
		payments = sql.NullString{String: string(encoded), Valid: true}
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	const query = `
UPDATE app.invoices
SET
  paid = paid OR COALESCE($2, FALSE),
  timed_out = COALESCE($3, timed_out),
  payments = COALESCE($4::jsonb, payments),
  updated_at = $5
WHERE invoice_id = $1`

	result, err := r.db.ExecContext(ctx, query, invoiceID, paid, timedOut, payments, updatedAt.UTC())
	if err != nil {
		r.logf("invoice disposition update failed invoice_id=%s error=%v", invoiceID, err)
		return false, apperrors.NewInternal(
			"invoice_update_failed",
			"failed to update invoice",
			map[string]any{"error": err.Error(), "invoice_id": invoiceID},
		)
	}
	return affectedAny(result)
}

func (r *Repository) UpdateItem(ctx context.Context, invoiceID string, item json.RawMessage) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.invoices
SET item = $2::json, updated_at = NOW()
WHERE invoice_id = $1`

	result, err := r.db.ExecContext(ctx, query, invoiceID, nullableJSON(item))
	if err != nil {
		return false, apperrors.NewInternal(
			"invoice_item_update_failed",
			"failed to update invoice item",
			map[string]any{"error": err.Error(), "invoice_id": invoiceID},
		)
	}
	return affectedAny(result)
}

// AppendSweepTx pushes txID onto every invoice owned by the wallets unless it is already recorded.
func (r *Repository) AppendSweepTx(
	ctx context.Context,
	walletAddresses []string,
	txID string,
) (int, *apperrors.AppError) {
	if len(walletAddresses) == 0 || txID == "" {
		return 0, nil
	}
	addresses := make([]string, 0, len(walletAddresses))
	for _, address := range walletAddresses {
		addresses = append(addresses, strings.ToLower(address))
	}

	const query = `
UPDATE app.invoices
SET sweep_tx_ids = sweep_tx_ids || jsonb_build_array($2::text), updated_at = NOW()
WHERE wallet_address = ANY($1)
  AND NOT (sweep_tx_ids @> jsonb_build_array($2::text))`

	result, err := r.db.ExecContext(ctx, query, addresses, txID)
	if err != nil {
		r.logf("sweep tx append failed tx_id=%s wallets=%d error=%v", txID, len(addresses), err)
		return 0, apperrors.NewInternal(
			"invoice_sweep_append_failed",
			"failed to append sweep transaction",
			map[string]any{"error": err.Error(), "tx_id": txID},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, queryError("invoice_rows_affected_failed", err)
	}
	return int(affected), nil
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

func scanInvoices(rows *sql.Rows) ([]entities.Invoice, *apperrors.AppError) {
	defer rows.Close()

	invoices := []entities.Invoice{}
	for rows.Next() {
		invoice, appErr := scanInvoice(rows)
		if appErr != nil {
			return nil, appErr
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("invoice_rows_iteration_failed", err)
	}
	return invoices, nil
}

func scanInvoice(row rowScanner) (entities.Invoice, *apperrors.AppError) {
	var (
		invoice    entities.Invoice
		wallet     []byte
		payments   []byte
		item       []byte
		sweepTxIDs []byte
	)
	if err := row.Scan(
		&invoice.InvoiceID,
		&wallet,
		&invoice.AmountRaw,
		&invoice.AmountDisplay,
		&invoice.Symbol,
		&invoice.Currency,
		&payments,
		&invoice.Paid,
		&invoice.TimedOut,
		&invoice.CreationTime,
		&item,
		&sweepTxIDs,
	); err != nil {
		return entities.Invoice{}, queryError("invoice_row_scan_failed", err)
	}

	if err := json.Unmarshal(wallet, &invoice.Wallet); err != nil {
		return entities.Invoice{}, decodeError(invoice.InvoiceID, "wallet", err)
	}
	invoice.Payments = []entities.InvoicePayment{}
	if err := json.Unmarshal(payments, &invoice.Payments); err != nil {
		return entities.Invoice{}, decodeError(invoice.InvoiceID, "payments", err)
	}
	invoice.SweepTxIDs = []string{}
	if err := json.Unmarshal(sweepTxIDs, &invoice.SweepTxIDs); err != nil {
		return entities.Invoice{}, decodeError(invoice.InvoiceID, "sweep_tx_ids", err)
	}
	if len(item) > 0 {
		invoice.Item = json.RawMessage(item)
	}
	invoice.CreationTime = invoice.CreationTime.UTC()

	return invoice, nil
}

func encodeList[T any](values []T) ([]byte, error) {
	if values == nil {
		values = []T{}
	}
	return json.Marshal(values)
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func affectedAny(result sql.Result) (bool, *apperrors.AppError) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, queryError("invoice_rows_affected_failed", err)
	}
	return affected > 0, nil
}

func encodeError(field string, err error) *apperrors.AppError {
	return apperrors.NewInternal(
		"invoice_payload_encode_failed",
		"failed to encode invoice payload",
		map[string]any{"error": err.Error(), "field": field},
	)
}

func decodeError(invoiceID, field string, err error) *apperrors.AppError {
	return apperrors.NewInternal(
		"invoice_payload_invalid",
		"stored invoice payload is invalid",
		map[string]any{"error": err.Error(), "field": field, "invoice_id": invoiceID},
	)
}

func queryError(code string, err error) *apperrors.AppError {
	return apperrors.NewInternal(code, "failed to query invoices", map[string]any{"error": err.Error()})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "23505"
}
