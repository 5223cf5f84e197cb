package repository

import (
	"errors"
	"fmt"
	"math"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// WriteError reports a failed append. Written is the number of rows that
// were committed before the failure; Index is the offending record or -1.
type WriteError struct {
	Written int
	Index   int
	Err     error
}

func (e *WriteError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("write failed at record %d (%d rows committed): %v", e.Index, e.Written, e.Err)
	}
	return fmt.Sprintf("write failed (%d rows committed): %v", e.Written, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ErrNotNull is wrapped by WriteError when a record lacks a required value
var ErrNotNull = errors.New("not-null constraint violated")

// checkRecords rejects records that would violate the table's NOT NULL columns
func checkRecords(records []models.EnrichedPoint) error {
	for i, r := range records {
		field := ""
		switch {
		case r.Time.IsZero():
			field = "time"
		case !finite(r.Latitude):
			field = "latitude"
		case !finite(r.Longitude):
			field = "longitude"
		case !finite(r.Speed):
			field = "speed"
		case !finite(r.Course):
			field = "course"
		default:
			continue
		}
		return &WriteError{Index: i, Err: fmt.Errorf("%w: %s", ErrNotNull, field)}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
