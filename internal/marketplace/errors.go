package marketplace

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes.
const (
	ErrCodeRequiredField = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidType   = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeInvalidFormat = "ERR_IMPORT_INVALID_FORMAT"
	ErrCodeInvalidRange  = "ERR_IMPORT_INVALID_RANGE"
	ErrCodeStoreFailed   = "ERR_IMPORT_STORE_FAILED"
)

var (
	ErrUnknownMarketplace = errors.New("unknown marketplace")
	ErrUnsupportedFormat  = errors.New("unsupported file format, expected .xlsx or .csv")
	ErrEmptyFile          = errors.New("file contains no rows")
	ErrUnreadableFile     = errors.New("file could not be read")
	ErrDuplicateFile      = errors.New("file was already imported")
)

// MissingColumnsError is returned when no header row carries every
// required column.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// RowError reports a problem with one line of the file.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
