package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/molduraria/internal/db"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Family     Family
	ActiveOnly bool
	Query      string
}

// Store persists products in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store backed by database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const productColumns = `
	id, reference, description, family, cost, manufacturing_price, retail_price,
	bar_length_cm, bar_width_cm, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p                    Product
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID,
		&p.Reference,
		&p.Description,
		&p.Family,
		&p.Cost,
		&p.ManufacturingPrice,
		&p.RetailPrice,
		&p.BarLengthCm,
		&p.BarWidthCm,
		&p.Active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	if p.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
		return Product{}, err
	}
	if p.UpdatedAt, err = db.ParseTimestamp(updatedAt); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Get returns the product with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

// List returns products matching f ordered by family then reference.
func (s *Store) List(ctx context.Context, f Filter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Family != "" {
		where = append(where, "family = ?")
		args = append(args, f.Family)
	}
	if f.ActiveOnly {
		where = append(where, "active = TRUE")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(reference LIKE ? OR description LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY family, reference"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// Create validates and inserts p, returning the stored product.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	now := db.Timestamp(s.now())
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			reference, description, family, cost, manufacturing_price, retail_price,
			bar_length_cm, bar_width_cm, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Reference, p.Description, p.Family, p.Cost, p.ManufacturingPrice, p.RetailPrice,
		p.BarLengthCm, p.BarWidthCm, p.Active, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrDuplicateReference
		}
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Product{}, fmt.Errorf("read product id: %w", err)
	}
	return s.Get(ctx, id)
}

// Update overwrites every editable field of the product identified by p.ID.
func (s *Store) Update(ctx context.Context, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET
			reference = ?,
			description = ?,
			family = ?,
			cost = ?,
			manufacturing_price = ?,
			retail_price = ?,
			bar_length_cm = ?,
			bar_width_cm = ?,
			active = ?,
			updated_at = ?
		WHERE id = ?
	`,
		p.Reference, p.Description, p.Family, p.Cost, p.ManufacturingPrice, p.RetailPrice,
		p.BarLengthCm, p.BarWidthCm, p.Active, db.Timestamp(s.now()), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrDuplicateReference
		}
		return Product{}, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if err := requireAffected(result); err != nil {
		return Product{}, err
	}
	return s.Get(ctx, p.ID)
}

// SetActive toggles whether the product is offered for new calculations.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products SET active = ?, updated_at = ? WHERE id = ?
	`, active, db.Timestamp(s.now()), id)
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
