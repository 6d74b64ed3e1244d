package model

import (
	"sort"
	"time"
)

// CalendarType identifies which kind of source produced an event.
type CalendarType string

const (
	TypeGoogle       CalendarType = "google"
	TypeTimetable    CalendarType = "timetable"
	TypeHomework     CalendarType = "homework"
	TypeSchoolEvent  CalendarType = "school_event"
	TypeNotification CalendarType = "notification"
)

// Priority indicates how prominently an event should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Event is the normalized calendar event shared by every source adapter.
// IDs are prefixed with the calendar type so they stay unique across sources.
// BranchID is empty for school-wide events.
type Event struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
	AllDay       bool         `json:"all_day"`
	CalendarType CalendarType `json:"calendar_type"`
	BranchID     string       `json:"branch_id,omitempty"`
	Location     string       `json:"location,omitempty"`
	Description  string       `json:"description,omitempty"`
	StudentID    string       `json:"student_id,omitempty"`
	TeacherID    string       `json:"teacher_id,omitempty"`
	Priority     Priority     `json:"priority"`
	Source       string       `json:"source"`
}

// Valid reports whether the event satisfies the start<=end invariant and
// carries an identity. Adapters drop invalid events instead of passing them on.
func (e Event) Valid() bool {
	return e.ID != "" && !e.StartTime.After(e.EndTime)
}

// TimeRange is a half-open [Start, End) window used for event queries.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// SortEvents orders events ascending by start time, breaking ties by
// calendar type and then title so merged results are deterministic.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if a.CalendarType != b.CalendarType {
			return a.CalendarType < b.CalendarType
		}
		return a.Title < b.Title
	})
}

// DedupeEvents removes events with duplicate IDs, keeping the first
// occurrence. Order of the surviving events is preserved.
func DedupeEvents(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := events[:0:0]
	for _, e := range events {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
