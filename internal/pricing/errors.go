package pricing

import "fmt"

// ValidationError reports a request the calculator cannot price as given.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced product missing from the catalog.
type NotFoundError struct {
	Field     string
	ProductID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: product %d not found", e.Field, e.ProductID)
}

// ConfigurationError reports catalog data that cannot be used for pricing,
// such as a frame without a bar length.
type ConfigurationError struct {
	Field     string
	ProductID int64
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: product %d is misconfigured: %s", e.Field, e.ProductID, e.Message)
}
