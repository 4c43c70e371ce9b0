package marketplace

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical columns of a marketplace export.
const (
	FieldExternalID = "external_id"
	FieldBuyer      = "buyer"
	FieldTitle      = "title"
	FieldVariation  = "variation"
	FieldQuantity   = "quantity"
	FieldUnitPrice  = "unit_price"
	FieldTotal      = "total"
	FieldOrderTotal = "order_total"
	FieldCreatedAt  = "created_at"
)

var requiredFields = []string{FieldExternalID, FieldTitle, FieldQuantity}

// headerScanRows bounds the search for the header row. Shopee exports start
// with a few banner lines.
const headerScanRows = 10

// aliases lists, per marketplace, the headers each canonical column is
// exported under. Matching ignores case, accents and punctuation.
var aliases = map[Marketplace]map[string][]string{
	Shopee: {
		FieldExternalID: {"ID do pedido", "Order ID", "N.º do pedido"},
		FieldBuyer:      {"Nome de usuário (comprador)", "Username (Buyer)", "Nome do destinatário"},
		FieldTitle:      {"Nome do Produto", "Product Name"},
		FieldVariation:  {"Nome da variação", "Variation Name"},
		FieldQuantity:   {"Quantidade", "Quantity"},
		FieldUnitPrice:  {"Preço acordado", "Deal Price", "Preço original"},
		FieldTotal:      {"Valor Total", "Subtotal do produto", "Product Subtotal"},
		FieldOrderTotal: {"Total do pedido", "Order Total Amount"},
		FieldCreatedAt:  {"Data de criação do pedido", "Order Creation Date"},
	},
	MercadoLivre: {
		FieldExternalID: {"N.º de venda", "Nº de venda", "Número da venda", "Order ID"},
		FieldBuyer:      {"Comprador", "Buyer"},
		FieldTitle:      {"Título do anúncio", "Title"},
		FieldVariation:  {"Variação", "Variation"},
		FieldQuantity:   {"Unidades", "Quantidade"},
		FieldUnitPrice:  {"Preço unitário de venda do anúncio (BRL)", "Preço unitário"},
		FieldTotal:      {"Total (BRL)", "Total"},
		FieldCreatedAt:  {"Data da venda", "Date"},
	},
}

var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// columnIndex maps canonical fields to column positions.
type columnIndex map[string]int

func matchHeader(m Marketplace, header []string) columnIndex {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, seen := normalized[key]; !seen && key != "" {
			normalized[key] = i
		}
	}

	idx := make(columnIndex)
	for field, names := range aliases[m] {
		for _, name := range names {
			if i, ok := normalized[normalizeHeader(name)]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

func (idx columnIndex) missing() []string {
	var out []string
	for _, f := range requiredFields {
		if _, ok := idx[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func (idx columnIndex) cell(row []string, field string) string {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// findHeader returns the position and mapping of the header row. When no
// candidate has every required column the best candidate's gaps are reported.
func findHeader(m Marketplace, rows [][]string) (int, columnIndex, error) {
	var best columnIndex
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		idx := matchHeader(m, rows[i])
		if len(idx.missing()) == 0 {
			return i, idx, nil
		}
		if best == nil || len(idx) > len(best) {
			best = idx
		}
	}
	if best == nil {
		best = columnIndex{}
	}
	missing := best.missing()
	sort.Strings(missing)
	return 0, nil, &MissingColumnsError{Columns: missing}
}

// ParseRows maps the cells of an export to rows. Lines with errors are
// reported and left out; the whole file fails only when the header is
// unusable.
func ParseRows(m Marketplace, cells [][]string) ([]Row, []RowError, error) {
	headerAt, idx, err := findHeader(m, cells)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []Row
		rowErrs []RowError
	)
	for i := headerAt + 1; i < len(cells); i++ {
		line := i + 1
		record := cells[i]
		if blank(record) {
			continue
		}

		row, errs := parseRow(idx, record, line)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func parseRow(idx columnIndex, record []string, line int) (Row, []RowError) {
	row := Row{
		Line:       line,
		ExternalID: idx.cell(record, FieldExternalID),
		Buyer:      idx.cell(record, FieldBuyer),
		Title:      idx.cell(record, FieldTitle),
		Variation:  idx.cell(record, FieldVariation),
	}

	var errs []RowError
	fail := func(column, code, message, value string) {
		errs = append(errs, RowError{Row: line, Column: column, Code: code, Message: message, Value: value})
	}

	if row.ExternalID == "" {
		fail(FieldExternalID, ErrCodeRequiredField, "is required", "")
	}
	if row.Title == "" {
		fail(FieldTitle, ErrCodeRequiredField, "is required", "")
	}

	qty := idx.cell(record, FieldQuantity)
	switch n, err := strconv.Atoi(qty); {
	case qty == "":
		fail(FieldQuantity, ErrCodeRequiredField, "is required", "")
	case err != nil:
		fail(FieldQuantity, ErrCodeInvalidType, "must be a whole number", qty)
	case n < 1:
		fail(FieldQuantity, ErrCodeInvalidRange, "must be at least 1", qty)
	default:
		row.Quantity = n
	}

	parseMoney := func(field string) decimal.Decimal {
		raw := idx.cell(record, field)
		if raw == "" {
			return decimal.Zero
		}
		v, err := ParseNumber(raw)
		if err != nil {
			fail(field, ErrCodeInvalidFormat, "is not a number", raw)
			return decimal.Zero
		}
		if v.IsNegative() {
			fail(field, ErrCodeInvalidRange, "must not be negative", raw)
		}
		return v
	}
	row.UnitPrice = parseMoney(FieldUnitPrice)
	row.Total = parseMoney(FieldTotal)
	row.OrderTotal = parseMoney(FieldOrderTotal)
	if row.Total.IsZero() && row.Quantity > 0 {
		row.Total = row.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity)))
	}

	if raw := idx.cell(record, FieldCreatedAt); raw != "" {
		if t, ok := parseDate(raw); ok {
			row.CreatedAt = &t
		} else {
			fail(FieldCreatedAt, ErrCodeInvalidFormat, "is not a recognised date", raw)
		}
	}

	return row, errs
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
