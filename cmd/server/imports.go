package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/molduraria/internal/marketplace"
)

func (s *server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	m, err := marketplace.Parse(chi.URLParam(r, "marketplace"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, &requestError{Field: "file", Message: "expected a multipart form upload"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, &requestError{Field: "file", Message: "is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	report, err := s.importer.ImportFile(r.Context(), m, header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleMeliSync(w http.ResponseWriter, r *http.Request) {
	if s.meli == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: apiError{
			Code:    "mercadolivre_disabled",
			Message: "MELI_ACCESS_TOKEN and MELI_SELLER_ID are not configured",
		}})
		return
	}

	rows, err := s.meli.PaidOrders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report := s.importer.ImportRows(r.Context(), marketplace.MercadoLivre, rows)
	writeJSON(w, http.StatusOK, report)
}
