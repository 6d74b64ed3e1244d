// Package google wraps the Google Calendar API behind a small listing
// contract. Two clients exist: an OAuth interactive client gated on user
// sign-in, and a read-only client authorized with a school API key and bound
// to pre-configured branch calendars.
package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// ErrNotAuthenticated is returned when the interactive client is used
// before a successful sign-in.
var ErrNotAuthenticated = errors.New("google calendar: not authenticated")

// DefaultMaxResults bounds a single listing call when the caller does not
// specify a limit.
const DefaultMaxResults = 250

// RawEvent is the unnormalized event shape produced by both clients.
// The aggregation core is responsible for converting it into model.Event.
type RawEvent struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool

	// CalendarID records which calendar the event came from, so branch
	// ownership can be recovered for branch-scoped calendars.
	CalendarID string
}

// EventLister is the common contract of the interactive and read-only
// clients.
type EventLister interface {
	ListEvents(ctx context.Context, r model.TimeRange, maxResults int64) ([]RawEvent, error)
}

// convertEvent maps a Google API event to a RawEvent. All-day events carry
// dates without times; timed events carry RFC 3339 date-times.
func convertEvent(item *calendar.Event, calendarID string) (RawEvent, error) {
	raw := RawEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		CalendarID:  calendarID,
	}

	if item.Start == nil || item.End == nil {
		return raw, fmt.Errorf("event %s missing start or end", item.Id)
	}

	if item.Start.Date != "" {
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, time.Local)
		if err != nil {
			return raw, fmt.Errorf("event %s: bad start date: %w", item.Id, err)
		}
		end, err := time.ParseInLocation("2006-01-02", item.End.Date, time.Local)
		if err != nil {
			return raw, fmt.Errorf("event %s: bad end date: %w", item.Id, err)
		}
		raw.Start, raw.End, raw.AllDay = start, end, true
		return raw, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return raw, fmt.Errorf("event %s: bad start time: %w", item.Id, err)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return raw, fmt.Errorf("event %s: bad end time: %w", item.Id, err)
	}
	raw.Start, raw.End = start, end
	return raw, nil
}
