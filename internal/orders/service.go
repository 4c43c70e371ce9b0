package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/pricing"
)

// Calculator prices a manufacturing request.
type Calculator interface {
	Calculate(ctx context.Context, req pricing.Request) (pricing.PricedOrder, error)
}

// SaleRecorder books the revenue of a delivered order inside the move transaction.
type SaleRecorder interface {
	RecordSale(ctx context.Context, tx *sql.Tx, orderID int64, amount decimal.Decimal, description string) error
}

// NewOrder is a manufacturing order as submitted by the shop counter.
type NewOrder struct {
	Customer    string
	Description string
	DueDate     *time.Time
	Request     pricing.Request
}

// Column is one stage of the production board.
type Column struct {
	Stage  Stage   `json:"stage"`
	Count  int     `json:"count"`
	Orders []Order `json:"orders"`
}

// Service applies business rules on top of Store.
type Service struct {
	store *Store
	calc  Calculator
	sales SaleRecorder
	log   *zap.Logger
}

// NewService wires the order service.
func NewService(store *Store, calc Calculator, sales SaleRecorder, log *zap.Logger) *Service {
	return &Service{store: store, calc: calc, sales: sales, log: log}
}

// Create prices in.Request again and stores the result, so stored totals
// always come from the current catalog and never from the client.
func (s *Service) Create(ctx context.Context, in NewOrder) (Order, error) {
	priced, err := s.calc.Calculate(ctx, in.Request)
	if err != nil {
		return Order{}, err
	}

	req := in.Request
	o, err := s.store.Create(ctx, Order{
		Customer:    strings.TrimSpace(in.Customer),
		Description: strings.TrimSpace(in.Description),
		HeightCm:    req.HeightCm,
		WidthCm:     req.WidthCm,
		Quantity:    priced.Quantity,
		Request:     &req,
		Items:       priced.Items,
		TotalCost:   priced.TotalCost,
		TotalSale:   priced.TotalSale,
		FinalValue:  priced.FinalValue,
		MarginPct:   priced.MarginPct,
		Stage:       StagePending,
		Source:      SourceManual,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return Order{}, err
	}

	s.log.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("final_value", o.FinalValue.StringFixed(2)),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

// Import stores an order that was already priced by a marketplace.
func (s *Service) Import(ctx context.Context, o Order) (Order, error) {
	if o.ExternalRef == "" {
		return Order{}, fmt.Errorf("import order: external reference is required")
	}
	o.Stage = StagePending
	return s.store.Create(ctx, o)
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.store.Get(ctx, id)
}

// List returns orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.store.List(ctx, f)
}

// Move advances the order to stage to. Delivering an order books its final
// value as a sale in the same transaction.
func (s *Service) Move(ctx context.Context, id int64, to Stage) (Order, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !current.Stage.CanMoveTo(to) {
		return Order{}, &TransitionError{From: current.Stage, To: to}
	}

	var hook MoveHook
	if to == StageDelivered && s.sales != nil {
		hook = func(ctx context.Context, tx *sql.Tx, o Order) error {
			desc := fmt.Sprintf("Pedido #%d", o.ID)
			if o.Customer != "" {
				desc += " - " + o.Customer
			}
			if err := s.sales.RecordSale(ctx, tx, o.ID, o.FinalValue, desc); err != nil {
				return fmt.Errorf("record sale for order %d: %w", o.ID, err)
			}
			return nil
		}
	}

	moved, err := s.store.UpdateStage(ctx, id, current.Stage, to, hook)
	if err != nil {
		if errors.Is(err, ErrStageConflict) {
			s.log.Warn("stage changed concurrently", zap.Int64("order_id", id), zap.String("expected", string(current.Stage)))
		}
		return Order{}, err
	}

	s.log.Info("order moved",
		zap.Int64("order_id", id),
		zap.String("from", string(current.Stage)),
		zap.String("to", string(to)),
	)
	return moved, nil
}

// Board groups every order by stage in board order.
func (s *Service) Board(ctx context.Context) ([]Column, error) {
	all, err := s.store.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	byStage := make(map[Stage][]Order)
	for _, o := range all {
		byStage[o.Stage] = append(byStage[o.Stage], o)
	}

	columns := make([]Column, 0, len(Stages()))
	for _, st := range Stages() {
		list := byStage[st]
		if list == nil {
			list = []Order{}
		}
		columns = append(columns, Column{Stage: st, Count: len(list), Orders: list})
	}
	return columns, nil
}
