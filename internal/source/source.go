// Package source defines the event source adapter contract and the adapters
// that feed the aggregation core: the Google Calendar backends plus the REST
// endpoints for timetable, homework, school events, and notifications.
package source

import (
	"context"
	"fmt"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// Adapter produces normalized events from one origin. Implementations must
// be safe for concurrent use; the core fans out to all enabled adapters at
// once.
type Adapter interface {
	// Type tags the adapter. It is set at construction and never inferred
	// from runtime types.
	Type() model.CalendarType

	// FetchEvents returns the adapter's events within the range. Returned
	// events satisfy model.Event.Valid.
	FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error)
}

// Error wraps a failure from a single source so the core can report which
// source degraded without aborting the merge.
type Error struct {
	Source model.CalendarType
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// eventID builds the globally unique event ID from a source-local ID.
func eventID(t model.CalendarType, localID string) string {
	return string(t) + "-" + localID
}
