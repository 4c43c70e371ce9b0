package main

import (
	"net/http"
	"time"

	"github.com/Simplici0/molduraria/internal/orders"
	"github.com/Simplici0/molduraria/internal/pricing"
)

const dateLayout = "2006-01-02"

type orderRequest struct {
	Customer    string          `json:"customer" validate:"max=120"`
	Description string          `json:"description" validate:"max=500"`
	DueDate     string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Request     pricing.Request `json:"request"`
}

type stageRequest struct {
	Stage string `json:"stage" validate:"required,oneof=pendente corte montagem acabamento pronto entregue cancelado"`
}

func (s *server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := orders.NewOrder{
		Customer:    req.Customer,
		Description: req.Description,
		Request:     req.Request,
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			s.writeError(w, r, &requestError{Field: "due_date", Message: "must be a date in the format YYYY-MM-DD"})
			return
		}
		in.DueDate = &due
	}

	o, err := s.orders.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.Filter{
		Stage:  orders.Stage(q.Get("stage")),
		Source: orders.Source(q.Get("source")),
		Sector: q.Get("sector"),
	}
	if f.Stage != "" && !f.Stage.Valid() {
		s.writeError(w, r, &requestError{Field: "stage", Message: "unknown stage"})
		return
	}

	list, err := s.orders.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	o, err := s.orders.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *server) handleOrderMove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req stageRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	o, err := s.orders.Move(r.Context(), id, orders.Stage(req.Stage))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.orders.Board(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
