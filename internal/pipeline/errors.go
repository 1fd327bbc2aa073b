package pipeline

import (
	"fmt"

	"github.com/final-funnel/funnel-cli/internal/report"
)

// SchemaError means the upload header does not match the template. The run
// never touches the database.
type SchemaError struct {
	Validation report.Validation
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("upload schema mismatch: %d missing, %d unexpected, out_of_order=%t",
		len(e.Validation.MissingColumns), len(e.Validation.UnexpectedColumns), e.Validation.OutOfOrder)
}

// ParseError means a row failed normalization in strict mode.
type ParseError struct {
	Row int
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransactionError means a write batch failed and was rolled back; rows
// applied by earlier batches remain committed.
type TransactionError struct {
	Phase Phase
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s failed, batch rolled back: %v", e.Phase, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
