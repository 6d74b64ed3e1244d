package source

import (
	"context"
	"log/slog"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// NotificationAdapter surfaces dated notifications (deadline reminders,
// announcements with a when) as zero-duration calendar events.
type NotificationAdapter struct {
	client *restClient
}

// NewNotificationAdapter creates a notification adapter bound to the
// caller's auth code.
func NewNotificationAdapter(baseURL, authCode string) *NotificationAdapter {
	return &NotificationAdapter{client: newRESTClient(baseURL, authCode)}
}

func (a *NotificationAdapter) Type() model.CalendarType { return model.TypeNotification }

type notificationItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Date     string `json:"date"`
	BranchID string `json:"branch_id"`
	Priority string `json:"priority"`
}

func (a *NotificationAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	var items []notificationItem
	if err := a.client.getJSON(ctx, "/mobile-api/notifications/upcoming", rangeQuery(r), &items); err != nil {
		return nil, &Error{Source: a.Type(), Err: err}
	}

	events := make([]model.Event, 0, len(items))
	for _, item := range items {
		at, err := parseDateOrTime(item.Date)
		if err != nil {
			slog.Warn("skipping notification with bad date", "id", item.ID, "error", err)
			continue
		}

		e := model.Event{
			ID:           eventID(model.TypeNotification, item.ID),
			Title:        item.Title,
			StartTime:    at,
			EndTime:      at,
			CalendarType: model.TypeNotification,
			BranchID:     item.BranchID,
			Description:  item.Message,
			Priority:     parsePriority(item.Priority, model.PriorityMedium),
			Source:       string(model.TypeNotification),
		}
		if !e.Valid() {
			slog.Warn("skipping invalid notification", "id", item.ID)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
