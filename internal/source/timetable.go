package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// TimetableAdapter fetches lesson entries from the timetable endpoint.
type TimetableAdapter struct {
	client *restClient
}

// NewTimetableAdapter creates a timetable adapter bound to the caller's
// auth code.
func NewTimetableAdapter(baseURL, authCode string) *TimetableAdapter {
	return &TimetableAdapter{client: newRESTClient(baseURL, authCode)}
}

func (a *TimetableAdapter) Type() model.CalendarType { return model.TypeTimetable }

type timetableEntry struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	TeacherID string `json:"teacher_id"`
	StudentID string `json:"student_id"`
	BranchID  string `json:"branch_id"`
	Room      string `json:"room"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (a *TimetableAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	var entries []timetableEntry
	if err := a.client.getJSON(ctx, "/mobile-api/timetable", rangeQuery(r), &entries); err != nil {
		return nil, &Error{Source: a.Type(), Err: err}
	}

	events := make([]model.Event, 0, len(entries))
	for _, entry := range entries {
		start, err := time.Parse(time.RFC3339, entry.StartTime)
		if err != nil {
			slog.Warn("skipping timetable entry with bad start time", "id", entry.ID, "error", err)
			continue
		}
		end, err := time.Parse(time.RFC3339, entry.EndTime)
		if err != nil {
			slog.Warn("skipping timetable entry with bad end time", "id", entry.ID, "error", err)
			continue
		}

		e := model.Event{
			ID:           eventID(model.TypeTimetable, entry.ID),
			Title:        entry.Subject,
			StartTime:    start,
			EndTime:      end,
			CalendarType: model.TypeTimetable,
			BranchID:     entry.BranchID,
			Location:     entry.Room,
			StudentID:    entry.StudentID,
			TeacherID:    entry.TeacherID,
			Priority:     model.PriorityLow,
			Source:       string(model.TypeTimetable),
		}
		if !e.Valid() {
			slog.Warn("skipping invalid timetable entry", "id", entry.ID)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
