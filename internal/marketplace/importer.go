package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/idempotency"
	"github.com/Simplici0/molduraria/internal/orders"
)

// OrderImporter stores an already priced order.
type OrderImporter interface {
	Import(ctx context.Context, o orders.Order) (orders.Order, error)
}

// RowCounter receives per-outcome row counts.
type RowCounter interface {
	MarketplaceRows(marketplace, outcome string, n int)
}

// DefaultLeadTime is added to the sale date to give the due date.
const DefaultLeadTime = 5 * 24 * time.Hour

// Importer stores marketplace sales as pending orders.
type Importer struct {
	orders   OrderImporter
	dedup    idempotency.Store
	dedupTTL time.Duration
	counter  RowCounter
	log      *zap.Logger
	leadTime time.Duration
}

// NewImporter wires an Importer. counter may be nil.
func NewImporter(o OrderImporter, dedup idempotency.Store, dedupTTL time.Duration, counter RowCounter, log *zap.Logger) *Importer {
	return &Importer{
		orders:   o,
		dedup:    dedup,
		dedupTTL: dedupTTL,
		counter:  counter,
		log:      log,
		leadTime: DefaultLeadTime,
	}
}

// ImportFile imports an export file. The same bytes are accepted once per
// dedup TTL; a file that could not be read can be sent again.
func (imp *Importer) ImportFile(ctx context.Context, m Marketplace, filename string, data []byte) (Report, error) {
	sum := sha256.Sum256(data)
	key := string(m) + ":" + hex.EncodeToString(sum[:])

	claimed, err := imp.dedup.Claim(ctx, key, imp.dedupTTL)
	if err != nil {
		return Report{}, err
	}
	if !claimed {
		return Report{}, ErrDuplicateFile
	}

	release := func() {
		if err := imp.dedup.Release(context.WithoutCancel(ctx), key); err != nil {
			imp.log.Warn("release import key", zap.String("key", key), zap.Error(err))
		}
	}

	cells, err := ReadSheet(filename, data)
	if err != nil {
		release()
		return Report{}, err
	}
	rows, rowErrs, err := ParseRows(m, cells)
	if err != nil {
		release()
		return Report{}, err
	}

	report := imp.ImportRows(ctx, m, rows)
	report.Rows += len(rowErrs)
	report.Failed += len(rowErrs)
	report.Errors = append(rowErrs, report.Errors...)
	imp.count(m, "invalid", len(rowErrs))

	if hasStoreFailure(report.Errors) {
		release()
	}

	imp.log.Info("marketplace file imported",
		zap.String("batch_id", report.BatchID),
		zap.String("marketplace", string(m)),
		zap.String("file", filename),
		zap.Int("rows", report.Rows),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ImportRows groups rows by sale and stores one order per sale. Sales that
// were already imported are skipped.
func (imp *Importer) ImportRows(ctx context.Context, m Marketplace, rows []Row) Report {
	report := Report{
		BatchID:     uuid.NewString(),
		Marketplace: m,
		Rows:        len(rows),
		OrderIDs:    []int64{},
		Errors:      []RowError{},
	}

	for _, sale := range groupBySale(rows) {
		o := imp.toOrder(m, sale)

		stored, err := imp.orders.Import(ctx, o)
		switch {
		case errors.Is(err, orders.ErrDuplicateExternalRef):
			report.Skipped += len(sale)
			imp.count(m, "skipped", len(sale))
		case err != nil:
			report.Failed += len(sale)
			imp.count(m, "failed", len(sale))
			report.Errors = append(report.Errors, RowError{
				Row:     sale[0].Line,
				Column:  FieldExternalID,
				Code:    ErrCodeStoreFailed,
				Message: err.Error(),
				Value:   o.ExternalRef,
			})
			imp.log.Error("store marketplace order",
				zap.String("marketplace", string(m)),
				zap.String("external_ref", o.ExternalRef),
				zap.Error(err),
			)
		default:
			report.Imported += len(sale)
			report.OrderIDs = append(report.OrderIDs, stored.ID)
			imp.count(m, "imported", len(sale))
		}
	}
	return report
}

// groupBySale keeps file order. Shopee repeats the order id on every item
// line of a multi-item sale.
func groupBySale(rows []Row) [][]Row {
	var (
		groups [][]Row
		index  = make(map[string]int)
	)
	for _, r := range rows {
		i, ok := index[r.ExternalID]
		if !ok {
			i = len(groups)
			index[r.ExternalID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

func (imp *Importer) toOrder(m Marketplace, sale []Row) orders.Order {
	first := sale[0]

	var (
		titles     []string
		quantity   int
		total      decimal.Decimal
		orderTotal decimal.Decimal
	)
	for _, r := range sale {
		title := r.Title
		if r.Variation != "" {
			title += " (" + r.Variation + ")"
		}
		if r.Quantity > 1 {
			title = fmt.Sprintf("%dx %s", r.Quantity, title)
		}
		titles = append(titles, title)
		quantity += r.Quantity
		total = total.Add(r.Total)
		if orderTotal.IsZero() {
			orderTotal = r.OrderTotal
		}
	}
	// The sale-level amount is counted once, not once per item line.
	if !orderTotal.IsZero() {
		total = orderTotal
	}
	total = total.Round(2)

	o := orders.Order{
		Customer:    first.Buyer,
		Description: strings.Join(titles, "; "),
		Quantity:    quantity,
		TotalSale:   total,
		FinalValue:  total,
		Source:      m.Source(),
		ExternalRef: first.ExternalID,
		Sector:      DetectSector(first.Title + " " + first.Variation),
	}
	for _, r := range sale {
		if h, w, ok := Dimensions(r.Title + " " + r.Variation); ok {
			o.HeightCm, o.WidthCm = h, w
			break
		}
	}
	if first.CreatedAt != nil {
		due := first.CreatedAt.Add(imp.leadTime)
		due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
		o.DueDate = &due
	}
	return o
}

func (imp *Importer) count(m Marketplace, outcome string, n int) {
	if imp.counter != nil {
		imp.counter.MarketplaceRows(string(m), outcome, n)
	}
}

func hasStoreFailure(errs []RowError) bool {
	for _, e := range errs {
		if e.Code == ErrCodeStoreFailed {
			return true
		}
	}
	return false
}
