package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/molduraria/internal/db"
	"github.com/Simplici0/molduraria/internal/pricing"
)

const dateLayout = "2006-01-02"

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Stage  Stage
	Source Source
	Sector string
}

// Store persists orders in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store backed by database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const orderColumns = `
	id, customer, description, height_cm, width_cm, quantity, request_json, items_json,
	total_cost, total_sale, final_value, margin_pct, stage, source, external_ref, sector,
	due_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                     Order
		requestJSON, itemsRaw string
		dueDate               sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&o.ID, &o.Customer, &o.Description, &o.HeightCm, &o.WidthCm, &o.Quantity,
		&requestJSON, &itemsRaw,
		&o.TotalCost, &o.TotalSale, &o.FinalValue, &o.MarginPct,
		&o.Stage, &o.Source, &o.ExternalRef, &o.Sector,
		&dueDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return Order{}, err
	}

	if requestJSON != "null" && requestJSON != "{}" && requestJSON != "" {
		o.Request = &pricing.Request{}
		if err := json.Unmarshal([]byte(requestJSON), o.Request); err != nil {
			return Order{}, fmt.Errorf("decode request snapshot: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(itemsRaw), &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode line items: %w", err)
	}
	if o.Items == nil {
		o.Items = []pricing.LineItem{}
	}
	if dueDate.Valid && dueDate.String != "" {
		d, err := time.Parse(dateLayout, dueDate.String)
		if err != nil {
			return Order{}, fmt.Errorf("parse due date: %w", err)
		}
		o.DueDate = &d
	}
	if o.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
		return Order{}, err
	}
	if o.UpdatedAt, err = db.ParseTimestamp(updatedAt); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Create inserts o with stage pendente unless another stage is set.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	if o.Stage == "" {
		o.Stage = StagePending
	}
	if o.Source == "" {
		o.Source = SourceManual
	}
	if o.Items == nil {
		o.Items = []pricing.LineItem{}
	}

	requestJSON, err := json.Marshal(o.Request)
	if err != nil {
		return Order{}, fmt.Errorf("encode request snapshot: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode line items: %w", err)
	}

	var dueDate any
	if o.DueDate != nil {
		dueDate = o.DueDate.Format(dateLayout)
	}

	now := db.Timestamp(s.now())
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			customer, description, height_cm, width_cm, quantity, request_json, items_json,
			total_cost, total_sale, final_value, margin_pct, stage, source, external_ref, sector,
			due_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.Customer, o.Description, o.HeightCm, o.WidthCm, o.Quantity, string(requestJSON), string(itemsJSON),
		o.TotalCost, o.TotalSale, o.FinalValue, o.MarginPct, o.Stage, o.Source, o.ExternalRef, o.Sector,
		dueDate, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Order{}, ErrDuplicateExternalRef
		}
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Order{}, fmt.Errorf("read order id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the order with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("query order %d: %w", id, err)
	}
	return o, nil
}

// List returns orders matching f, oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, f.Stage)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.Sector != "" {
		where = append(where, "sector = ?")
		args = append(args, f.Sector)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(due_date, '9999-12-31'), id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// ExistsExternal reports whether a marketplace order was already stored.
func (s *Store) ExistsExternal(ctx context.Context, source Source, ref string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM orders WHERE source = ? AND external_ref = ? LIMIT 1)
	`, source, ref).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external order: %w", err)
	}
	return exists, nil
}

// MoveHook runs inside the stage-change transaction after the update.
type MoveHook func(ctx context.Context, tx *sql.Tx, o Order) error

// UpdateStage moves the order from one stage to another in a transaction.
// It returns ErrStageConflict when the stored stage is no longer from.
func (s *Store) UpdateStage(ctx context.Context, id int64, from, to Stage, hook MoveHook) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("begin stage transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET stage = ?, updated_at = ? WHERE id = ? AND stage = ?
	`, to, db.Timestamp(s.now()), id, from)
	if err != nil {
		_ = tx.Rollback()
		return Order{}, fmt.Errorf("update order stage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return Order{}, ErrStageConflict
	}

	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		_ = tx.Rollback()
		return Order{}, fmt.Errorf("reload order %d: %w", id, err)
	}

	if hook != nil {
		if err := hook(ctx, tx, o); err != nil {
			_ = tx.Rollback()
			return Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("commit stage transaction: %w", err)
	}
	return o, nil
}
