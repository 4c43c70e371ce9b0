package main

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/catalog"
)

type productRequest struct {
	Reference          string          `json:"reference" validate:"required,max=40"`
	Description        string          `json:"description" validate:"required,max=200"`
	Family             string          `json:"family" validate:"required,oneof=moldura vidro mdf papel passepartout acessorio"`
	Cost               decimal.Decimal `json:"cost"`
	ManufacturingPrice decimal.Decimal `json:"manufacturing_price"`
	RetailPrice        decimal.Decimal `json:"retail_price"`
	BarLengthCm        decimal.Decimal `json:"bar_length_cm"`
	BarWidthCm         decimal.Decimal `json:"bar_width_cm"`
	Active             *bool           `json:"active"`
}

func (req productRequest) product() catalog.Product {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return catalog.Product{
		Reference:          req.Reference,
		Description:        req.Description,
		Family:             catalog.Family(req.Family),
		Cost:               catalog.NewCost(req.Cost),
		ManufacturingPrice: catalog.NewManufacturingPrice(req.ManufacturingPrice),
		RetailPrice:        catalog.NewRetailPrice(req.RetailPrice),
		BarLengthCm:        req.BarLengthCm,
		BarWidthCm:         req.BarWidthCm,
		Active:             active,
	}
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Family: catalog.Family(q.Get("family")),
		Query:  q.Get("q"),
	}
	if raw := q.Get("active"); raw != "" {
		activeOnly, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, &requestError{Field: "active", Message: "must be true or false"})
			return
		}
		f.ActiveOnly = activeOnly
	}
	if f.Family != "" && !f.Family.Valid() {
		s.writeError(w, r, &requestError{Field: "family", Message: "unknown family"})
		return
	}

	products, err := s.products.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.products.Create(r.Context(), req.product())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req productRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := req.product()
	p.ID = id
	updated, err := s.products.Update(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (s *server) handleProductSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req activeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.products.SetActive(r.Context(), id, *req.Active); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
