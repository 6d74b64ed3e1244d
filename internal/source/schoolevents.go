package source

import (
	"context"
	"log/slog"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// SchoolEventsAdapter fetches school-wide and branch announcements with a
// calendar placement.
type SchoolEventsAdapter struct {
	client *restClient
}

// NewSchoolEventsAdapter creates a school events adapter bound to the
// caller's auth code.
func NewSchoolEventsAdapter(baseURL, authCode string) *SchoolEventsAdapter {
	return &SchoolEventsAdapter{client: newRESTClient(baseURL, authCode)}
}

func (a *SchoolEventsAdapter) Type() model.CalendarType { return model.TypeSchoolEvent }

type schoolEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	BranchID    string `json:"branch_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	AllDay      bool   `json:"all_day"`
	Priority    string `json:"priority"`
}

func (a *SchoolEventsAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	var items []schoolEvent
	if err := a.client.getJSON(ctx, "/mobile-api/calendar/events", rangeQuery(r), &items); err != nil {
		return nil, &Error{Source: a.Type(), Err: err}
	}

	events := make([]model.Event, 0, len(items))
	for _, item := range items {
		start, err := parseDateOrTime(item.StartDate)
		if err != nil {
			slog.Warn("skipping school event with bad start date", "id", item.ID, "error", err)
			continue
		}
		end := start
		if item.EndDate != "" {
			end, err = parseDateOrTime(item.EndDate)
			if err != nil {
				slog.Warn("skipping school event with bad end date", "id", item.ID, "error", err)
				continue
			}
		}
		if item.AllDay && end.Equal(start) {
			end = start.AddDate(0, 0, 1)
		}

		e := model.Event{
			ID:           eventID(model.TypeSchoolEvent, item.ID),
			Title:        item.Title,
			StartTime:    start,
			EndTime:      end,
			AllDay:       item.AllDay,
			CalendarType: model.TypeSchoolEvent,
			BranchID:     item.BranchID,
			Location:     item.Location,
			Description:  item.Description,
			Priority:     parsePriority(item.Priority, model.PriorityMedium),
			Source:       string(model.TypeSchoolEvent),
		}
		if !e.Valid() {
			slog.Warn("skipping invalid school event", "id", item.ID)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func parsePriority(v string, fallback model.Priority) model.Priority {
	switch model.Priority(v) {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return model.Priority(v)
	}
	return fallback
}
