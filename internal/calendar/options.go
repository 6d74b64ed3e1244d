package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// FetchOptions narrows an AllEvents call. Use NewFetchOptions to get the
// documented defaults (every source included); a zero FetchOptions includes
// nothing.
type FetchOptions struct {
	Start time.Time
	End   time.Time

	IncludeGoogle        bool
	IncludeTimetable     bool
	IncludeHomework      bool
	IncludeSchoolEvents  bool
	IncludeNotifications bool

	// ForceRefresh bypasses the cache read but still writes the fresh
	// result back.
	ForceRefresh bool
}

// NewFetchOptions returns options for [start, end) with all sources included.
func NewFetchOptions(start, end time.Time) FetchOptions {
	return FetchOptions{
		Start:                start,
		End:                  end,
		IncludeGoogle:        true,
		IncludeTimetable:     true,
		IncludeHomework:      true,
		IncludeSchoolEvents:  true,
		IncludeNotifications: true,
	}
}

// requestedTypes lists the source types this call asked for, in a fixed
// order.
func (o FetchOptions) requestedTypes() []model.CalendarType {
	var types []model.CalendarType
	if o.IncludeGoogle {
		types = append(types, model.TypeGoogle)
	}
	if o.IncludeTimetable {
		types = append(types, model.TypeTimetable)
	}
	if o.IncludeHomework {
		types = append(types, model.TypeHomework)
	}
	if o.IncludeSchoolEvents {
		types = append(types, model.TypeSchoolEvent)
	}
	if o.IncludeNotifications {
		types = append(types, model.TypeNotification)
	}
	return types
}

// sourceFlags encodes the include flags for the cache key.
func (o FetchOptions) sourceFlags() string {
	flags := make([]string, 0, 5)
	for _, f := range []bool{o.IncludeGoogle, o.IncludeTimetable, o.IncludeHomework, o.IncludeSchoolEvents, o.IncludeNotifications} {
		flags = append(flags, strconv.FormatBool(f))
	}
	return strings.Join(flags, ",")
}
