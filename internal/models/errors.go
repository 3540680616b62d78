package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldError reports a malformed numeric field in an engine output table.
// Malformed values are surfaced instead of being coerced to zero so that
// data-quality problems do not silently corrupt downstream aggregates.
type FieldError struct {
	Column string
	Row    int
	Value  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d: column %q: cannot parse %q as number", e.Row, e.Column, e.Value)
}

// ParseField parses a numeric cell. An empty cell counts as absent and
// yields zero; anything else must parse cleanly.
func ParseField(column string, row int, value string) (float64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &FieldError{Column: column, Row: row, Value: value}
	}
	return f, nil
}
