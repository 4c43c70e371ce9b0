// Package orders stores manufacturing orders and moves them across the
// production board.
package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/pricing"
)

// Stage is a column of the production board.
type Stage string

const (
	StagePending   Stage = "pendente"
	StageCutting   Stage = "corte"
	StageAssembly  Stage = "montagem"
	StageFinishing Stage = "acabamento"
	StageReady     Stage = "pronto"
	StageDelivered Stage = "entregue"
	StageCancelled Stage = "cancelado"
)

// flow is the forward path of an order through the workshop.
var flow = []Stage{StagePending, StageCutting, StageAssembly, StageFinishing, StageReady, StageDelivered}

// Stages returns every board column in display order.
func Stages() []Stage {
	out := make([]Stage, 0, len(flow)+1)
	out = append(out, flow...)
	return append(out, StageCancelled)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s == StageCancelled || s.position() >= 0
}

// Final reports whether no further moves are allowed from s.
func (s Stage) Final() bool {
	return s == StageDelivered || s == StageCancelled
}

func (s Stage) position() int {
	for i, st := range flow {
		if st == s {
			return i
		}
	}
	return -1
}

// CanMoveTo reports whether an order in s may move to next: one step
// forward, or to cancelado from any open stage.
func (s Stage) CanMoveTo(next Stage) bool {
	if s.Final() || !next.Valid() {
		return false
	}
	if next == StageCancelled {
		return true
	}
	return next.position() == s.position()+1
}

// Source tells where an order came from.
type Source string

const (
	SourceManual       Source = "manual"
	SourceShopee       Source = "shopee"
	SourceMercadoLivre Source = "mercadolivre"
)

// Order is a stored manufacturing order.
type Order struct {
	ID          int64              `json:"id"`
	Customer    string             `json:"customer"`
	Description string             `json:"description"`
	HeightCm    decimal.Decimal    `json:"height_cm"`
	WidthCm     decimal.Decimal    `json:"width_cm"`
	Quantity    int                `json:"quantity"`
	Request     *pricing.Request   `json:"request,omitempty"`
	Items       []pricing.LineItem `json:"items"`
	TotalCost   decimal.Decimal    `json:"total_cost"`
	TotalSale   decimal.Decimal    `json:"total_sale"`
	FinalValue  decimal.Decimal    `json:"final_value"`
	MarginPct   decimal.Decimal    `json:"margin_pct"`
	Stage       Stage              `json:"stage"`
	Source      Source             `json:"source"`
	ExternalRef string             `json:"external_ref,omitempty"`
	Sector      string             `json:"sector,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

var (
	// ErrNotFound is returned when no order has the requested id.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateExternalRef is returned when a marketplace order was already stored.
	ErrDuplicateExternalRef = errors.New("order already imported")
	// ErrStageConflict is returned when the order changed stage concurrently.
	ErrStageConflict = errors.New("order stage changed concurrently")
)

// TransitionError reports a move the board does not allow.
type TransitionError struct {
	From, To Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
