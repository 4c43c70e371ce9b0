package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/Simplici0/molduraria/internal/metrics"
	"github.com/Simplici0/molduraria/internal/pricing"
)

// countedCalculator records the outcome of every calculation, whether it
// comes from the preview endpoint or from order creation.
type countedCalculator struct {
	calc    *pricing.Calculator
	metrics *metrics.Metrics
}

func (c countedCalculator) Calculate(ctx context.Context, req pricing.Request) (pricing.PricedOrder, error) {
	priced, err := c.calc.Calculate(ctx, req)
	c.metrics.Calculation(calculationResult(err))
	return priced, err
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.metrics.Calculation("invalid_request")
		s.writeError(w, r, err)
		return
	}

	priced, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priced)
}

func calculationResult(err error) string {
	var (
		validation    *pricing.ValidationError
		notFound      *pricing.NotFoundError
		configuration *pricing.ConfigurationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &configuration):
		return "configuration"
	default:
		return "error"
	}
}
