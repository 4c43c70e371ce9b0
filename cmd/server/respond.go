package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/catalog"
	"github.com/Simplici0/molduraria/internal/ledger"
	"github.com/Simplici0/molduraria/internal/marketplace"
	"github.com/Simplici0/molduraria/internal/orders"
	"github.com/Simplici0/molduraria/internal/pricing"
)

const maxJSONBodyBytes = 1 << 20

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// requestError is a malformed request caught before it reaches a store.
type requestError struct {
	Field   string
	Message string
}

func (e *requestError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "oneof":
		return "must be one of: " + e.Param()
	case "datetime":
		return "must be a date in the format YYYY-MM-DD"
	default:
		return "is invalid"
	}
}

// decodeJSON reads a JSON body into dst and runs the struct validation tags.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return &requestError{Message: "request body is empty"}
		case errors.As(err, &typeErr):
			return &requestError{Field: typeErr.Field, Message: "has the wrong type"}
		default:
			return &requestError{Message: "invalid JSON: " + err.Error()}
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.TrimPrefix(fe.Namespace(), reflect.TypeOf(dst).Elem().Name()+".")
			return &requestError{Field: field, Message: validationMessage(fe)}
		}
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &requestError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and answered with a generic message.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr     *requestError
		calcVal    *pricing.ValidationError
		calcNF     *pricing.NotFoundError
		calcConf   *pricing.ConfigurationError
		productVal *catalog.ValidationError
		entryVal   *ledger.ValidationError
		transition *orders.TransitionError
		columns    *marketplace.MissingColumnsError
		meliStatus *marketplace.MeliStatusError
		maxBytes   *http.MaxBytesError
	)

	status, body := http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal server error"}
	switch {
	case errors.As(err, &reqErr):
		status, body = http.StatusBadRequest, apiError{Code: "invalid_request", Message: reqErr.Message, Field: reqErr.Field}
	case errors.As(err, &calcVal):
		status, body = http.StatusBadRequest, apiError{Code: "validation_error", Message: calcVal.Message, Field: calcVal.Field}
	case errors.As(err, &calcNF):
		status, body = http.StatusUnprocessableEntity, apiError{Code: "product_not_found", Message: calcNF.Error(), Field: calcNF.Field}
	case errors.As(err, &calcConf):
		status, body = http.StatusUnprocessableEntity, apiError{Code: "configuration_error", Message: calcConf.Message, Field: calcConf.Field}
	case errors.As(err, &productVal):
		status, body = http.StatusBadRequest, apiError{Code: "validation_error", Message: productVal.Message, Field: productVal.Field}
	case errors.As(err, &entryVal):
		status, body = http.StatusBadRequest, apiError{Code: "validation_error", Message: entryVal.Message, Field: entryVal.Field}
	case errors.As(err, &transition):
		status, body = http.StatusConflict, apiError{Code: "invalid_transition", Message: transition.Error(), Field: "stage"}
	case errors.Is(err, orders.ErrStageConflict):
		status, body = http.StatusConflict, apiError{Code: "stage_conflict", Message: err.Error()}
	case errors.Is(err, catalog.ErrDuplicateReference):
		status, body = http.StatusConflict, apiError{Code: "duplicate_reference", Message: err.Error(), Field: "reference"}
	case errors.Is(err, marketplace.ErrDuplicateFile):
		status, body = http.StatusConflict, apiError{Code: "duplicate_import", Message: err.Error(), Field: "file"}
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, orders.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		status, body = http.StatusNotFound, apiError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, marketplace.ErrUnknownMarketplace):
		status, body = http.StatusNotFound, apiError{Code: "unknown_marketplace", Message: err.Error(), Field: "marketplace"}
	case errors.As(err, &columns):
		status, body = http.StatusBadRequest, apiError{Code: "missing_columns", Message: columns.Error(), Field: "file"}
	case errors.Is(err, marketplace.ErrUnsupportedFormat), errors.Is(err, marketplace.ErrEmptyFile),
		errors.Is(err, marketplace.ErrUnreadableFile):
		status, body = http.StatusBadRequest, apiError{Code: "invalid_file", Message: err.Error(), Field: "file"}
	case errors.As(err, &maxBytes):
		status, body = http.StatusRequestEntityTooLarge, apiError{Code: "too_large", Message: fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit)}
	case errors.As(err, &meliStatus):
		status, body = http.StatusBadGateway, apiError{Code: "marketplace_error", Message: meliStatus.Error()}
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: body})
}
