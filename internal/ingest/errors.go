package ingest

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoData            = errors.New("no data rows")
)

// SchemaError reports an upload that cannot be turned into a transaction
// table: a missing required column, an unparseable date, or input that is
// not tabular at all.
type SchemaError struct {
	Column string
	// Row is the 1-based data row, or 0 when the problem is not row specific.
	Row    int
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema error"
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" at row %d", e.Row)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
