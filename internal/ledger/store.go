package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/db"
)

const dateLayout = "2006-01-02"

// Filter narrows List and Summary. Nil bounds are open; both are inclusive.
type Filter struct {
	From *time.Time
	To   *time.Time
	Kind Kind
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists ledger entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store backed by database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Record validates and stores e.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	id, err := s.insert(ctx, s.db, e)
	if err != nil {
		return Entry{}, err
	}
	return s.Get(ctx, id)
}

// RecordSale books the final value of a delivered order using the caller's
// transaction.
func (s *Store) RecordSale(ctx context.Context, tx *sql.Tx, orderID int64, amount decimal.Decimal, description string) error {
	if amount.IsZero() {
		return nil
	}
	_, err := s.insert(ctx, tx, Entry{
		Kind:        KindSale,
		Category:    SalesCategory,
		Description: description,
		Amount:      amount,
		OccurredOn:  s.now(),
		OrderID:     &orderID,
	})
	return err
}

func (s *Store) insert(ctx context.Context, exec execer, e Entry) (int64, error) {
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var orderID any
	if e.OrderID != nil {
		orderID = *e.OrderID
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO ledger_entries (kind, category, description, amount, occurred_on, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Kind, e.Category, e.Description, e.Amount, e.OccurredOn.Format(dateLayout), orderID, db.Timestamp(s.now()))
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read ledger entry id: %w", err)
	}
	return id, nil
}

const entryColumns = `id, kind, category, description, amount, occurred_on, order_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                     Entry
		occurredOn, createdAt string
		orderID               sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Kind, &e.Category, &e.Description, &e.Amount, &occurredOn, &orderID, &createdAt); err != nil {
		return Entry{}, err
	}

	var err error
	if e.OccurredOn, err = time.Parse(dateLayout, occurredOn); err != nil {
		return Entry{}, fmt.Errorf("parse occurred_on: %w", err)
	}
	if e.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
		return Entry{}, err
	}
	if orderID.Valid {
		id := orderID.Int64
		e.OrderID = &id
	}
	return e, nil
}

// Get returns the entry with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query ledger entry %d: %w", id, err)
	}
	return e, nil
}

// List returns entries matching f ordered by date.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "occurred_on >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		where = append(where, "occurred_on <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_on, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary totals the entries within f.
func (s *Store) Summary(ctx context.Context, f Filter) (Summary, error) {
	entries, err := s.List(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}
