package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// HomeworkAdapter turns homework due dates into all-day calendar events.
type HomeworkAdapter struct {
	client *restClient
}

// NewHomeworkAdapter creates a homework adapter bound to the caller's
// auth code.
func NewHomeworkAdapter(baseURL, authCode string) *HomeworkAdapter {
	return &HomeworkAdapter{client: newRESTClient(baseURL, authCode)}
}

func (a *HomeworkAdapter) Type() model.CalendarType { return model.TypeHomework }

type homeworkItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	StudentID   string `json:"student_id"`
	TeacherID   string `json:"teacher_id"`
	BranchID    string `json:"branch_id"`
}

func (a *HomeworkAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	var items []homeworkItem
	if err := a.client.getJSON(ctx, "/mobile-api/homework/due", rangeQuery(r), &items); err != nil {
		return nil, &Error{Source: a.Type(), Err: err}
	}

	events := make([]model.Event, 0, len(items))
	for _, item := range items {
		due, err := parseDateOrTime(item.DueDate)
		if err != nil {
			slog.Warn("skipping homework with bad due date", "id", item.ID, "error", err)
			continue
		}

		// A due date becomes an all-day event on that day.
		day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())

		title := item.Title
		if title == "" {
			title = item.Subject
		}

		e := model.Event{
			ID:           eventID(model.TypeHomework, item.ID),
			Title:        title,
			StartTime:    day,
			EndTime:      day.AddDate(0, 0, 1),
			AllDay:       true,
			CalendarType: model.TypeHomework,
			BranchID:     item.BranchID,
			Description:  item.Description,
			StudentID:    item.StudentID,
			TeacherID:    item.TeacherID,
			Priority:     model.PriorityHigh,
			Source:       string(model.TypeHomework),
		}
		if !e.Valid() {
			slog.Warn("skipping invalid homework item", "id", item.ID)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// parseDateOrTime accepts both date-only and RFC 3339 values; the backend
// reports due dates in either form depending on the assignment.
func parseDateOrTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.Local)
}
