package main

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/ledger"
)

type entryRequest struct {
	Kind        string          `json:"kind" validate:"required,oneof=compra venda despesa receita"`
	Category    string          `json:"category" validate:"max=60"`
	Description string          `json:"description" validate:"max=300"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredOn  string          `json:"occurred_on" validate:"required,datetime=2006-01-02"`
	OrderID     *int64          `json:"order_id"`
}

func (s *server) handleLedgerRecord(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	occurred, err := time.Parse(dateLayout, req.OccurredOn)
	if err != nil {
		s.writeError(w, r, &requestError{Field: "occurred_on", Message: "must be a date in the format YYYY-MM-DD"})
		return
	}

	e, err := s.ledger.Record(r.Context(), ledger.Entry{
		Kind:        ledger.Kind(req.Kind),
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		OccurredOn:  occurred,
		OrderID:     req.OrderID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func ledgerFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{Kind: ledger.Kind(q.Get("kind"))}
	if f.Kind != "" && !f.Kind.Valid() {
		return ledger.Filter{}, &requestError{Field: "kind", Message: "unknown kind"}
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return ledger.Filter{}, &requestError{Field: bound.name, Message: "must be a date in the format YYYY-MM-DD"}
		}
		*bound.dst = &d
	}
	return f, nil
}

func (s *server) handleLedgerList(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.ledger.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.ledger.Summary(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleLedgerDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.ledger.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
