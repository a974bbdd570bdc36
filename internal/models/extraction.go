package models

import "fmt"

// ExtractionResult is the outcome of one extractor invocation.
// Errors accumulate per page or per card; a non-empty Errors does not
// discard Items already collected.
type ExtractionResult[T any] struct {
	Items          []T
	Errors         []string
	PagesProcessed int
}

// Errorf records a non-fatal extraction error
func (r *ExtractionResult[T]) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
