package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerd/internal/core"
)

// TransactionFilter narrows transaction queries. Zero values mean "no
// constraint". Date bounds are inclusive.
type TransactionFilter struct {
	Type       core.TransactionType
	CategoryID string
	DateFrom   time.Time
	DateTo     time.Time
	Search     string
}

// ListOptions controls pagination and ordering for ListTransactions.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// sortColumns whitelists client-supplied sort keys.
var sortColumns = map[string]string{
	"date":        "date",
	"amount":      "amount_cents",
	"description": "description",
	"createdAt":   "created_at",
}

func (o ListOptions) normalize() (page, limit int, orderBy string) {
	page = o.Page
	if page < 1 {
		page = 1
	}
	limit = o.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	col, ok := sortColumns[o.SortBy]
	if !ok {
		col = "date"
	}
	dir := "DESC"
	if strings.EqualFold(o.SortOrder, "asc") {
		dir = "ASC"
	}
	return page, limit, col + " " + dir
}

func buildTransactionWhere(userID string, f TransactionFilter) (string, []any) {
	where := "user_id = ?"
	args := []any{userID}

	if f.Type != "" {
		where += " AND type = ?"
		args = append(args, string(f.Type))
	}
	if f.CategoryID != "" {
		where += " AND category_id = ?"
		args = append(args, f.CategoryID)
	}
	if !f.DateFrom.IsZero() {
		where += " AND date >= ?"
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		where += " AND date <= ?"
		args = append(args, f.DateTo)
	}
	if f.Search != "" {
		where += " AND (LOWER(description) LIKE ? OR LOWER(notes) LIKE ?)"
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern)
	}
	return where, args
}

const transactionColumns = `id, user_id, category_id, description, amount_cents, type, date,
	notes, tags, payment_method, is_recurring, recurring_frequency, last_recurred_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		tagsJSON  string
		frequency sql.NullString
		recurred  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Description, &t.Amount.Cents, &t.Type,
		&t.Date, &t.Notes, &tagsJSON, &t.PaymentMethod, &t.IsRecurring, &frequency, &recurred,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if frequency.Valid {
		t.RecurringFrequency = core.RecurringFrequency(frequency.String)
	}
	if recurred.Valid {
		t.LastRecurredAt = recurred.Time
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return core.Transaction{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return t, nil
}

// checkCategoryTx re-validates category ownership and type agreement inside
// the write transaction, closing the read-then-write race against concurrent
// category deletion or re-typing.
func checkCategoryTx(ctx context.Context, tx *sql.Tx, userID, categoryID string, txnType core.TransactionType) error {
	var catType core.TransactionType
	err := tx.QueryRowContext(ctx,
		`SELECT type FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID).Scan(&catType)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if catType != txnType {
		return core.ErrTypeMismatch
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tagsJSON, err := json.Marshal(core.NormalizeTags(t.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCategoryTx(ctx, tx, t.UserID, t.CategoryID, t.Type); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, category_id, description, amount_cents, type, date,
			notes, tags, payment_method, is_recurring, recurring_frequency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.CategoryID, t.Description, t.Amount.Cents, string(t.Type), t.Date,
		t.Notes, string(tagsJSON), string(t.PaymentMethod), t.IsRecurring,
		nullString(string(t.RecurringFrequency)), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"transaction_type", string(t.Type),
		"amount_cents", t.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

// UpdateTransaction replaces the mutable fields of an owner-scoped
// transaction. The category recheck runs in the same database transaction as
// the write.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tagsJSON, err := json.Marshal(core.NormalizeTags(t.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCategoryTx(ctx, tx, t.UserID, t.CategoryID, t.Type); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, description = ?, amount_cents = ?, type = ?, date = ?,
			notes = ?, tags = ?, payment_method = ?, is_recurring = ?, recurring_frequency = ?,
			exported_at = NULL, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		t.CategoryID, t.Description, t.Amount.Cents, string(t.Type), t.Date,
		t.Notes, string(tagsJSON), string(t.PaymentMethod), t.IsRecurring,
		nullString(string(t.RecurringFrequency)), t.UpdatedAt, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "user_id", userID)
	return nil
}

// ListTransactions returns one page of owner-scoped transactions plus the
// total match count for pagination.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, filter TransactionFilter, opts ListOptions) ([]core.Transaction, int64, error) {
	where, args := buildTransactionWhere(userID, filter)
	page, limit, orderBy := opts.normalize()

	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " + where +
		" ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, total, rows.Err()
}

// ListAllTransactions returns every owner-scoped transaction matching the
// filter, without pagination. Used by the summary service, which derives
// aggregates on every read.
func (r *SQLiteRepository) ListAllTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]core.Transaction, error) {
	where, args := buildTransactionWhere(userID, filter)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+where+" ORDER BY date DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// SummarizeTransactions computes the per-type sums for the filtered set in
// SQL. Sums are integer cents end to end.
func (r *SQLiteRepository) SummarizeTransactions(ctx context.Context, userID string, filter TransactionFilter) (core.Totals, error) {
	where, args := buildTransactionWhere(userID, filter)

	rows, err := r.db.QueryContext(ctx,
		"SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions WHERE "+where+" GROUP BY type", args...)
	if err != nil {
		return core.Totals{}, fmt.Errorf("summarize transactions: %w", err)
	}
	defer rows.Close()

	var totals core.Totals
	for rows.Next() {
		var (
			txnType core.TransactionType
			sum     int64
			count   int
		)
		if err := rows.Scan(&txnType, &sum, &count); err != nil {
			return core.Totals{}, fmt.Errorf("scan summary row: %w", err)
		}
		switch txnType {
		case core.Income:
			totals.TotalIncome = core.Money{Cents: sum}
		case core.Expense:
			totals.TotalExpense = core.Money{Cents: sum}
		}
		totals.Count += count
	}
	return totals, rows.Err()
}

// --- Export queue ---

// GetTransactionByID fetches a transaction without owner scoping. Only the
// export worker uses this; it acts on ids taken from the message queue, not
// from clients.
func (r *SQLiteRepository) GetTransactionByID(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

// GetPendingExportTransactions returns transactions not yet written to the
// export log, oldest first. Fallback path for lost queue messages.
func (r *SQLiteRepository) GetPendingExportTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE exported_at IS NULL
		ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending export: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET exported_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// --- Recurring templates ---

// ListRecurringTemplates returns all recurring transactions across users.
// The recurring worker materializes due instances from them.
func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE is_recurring = 1
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *SQLiteRepository) UpdateLastRecurred(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET last_recurred_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("update last recurred: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
