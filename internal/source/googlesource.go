package source

import (
	"context"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/google"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// BranchResolver maps a Google calendar ID back to the owning branch. The
// read-only client implements it; the interactive client has no mapping and
// its events default to the requesting user's own branch.
type BranchResolver interface {
	BranchOfCalendar(calendarID string) string
}

// GoogleAdapter adapts a google.EventLister to the Adapter contract,
// normalizing raw Google events into the common model.
type GoogleAdapter struct {
	lister        google.EventLister
	branches      BranchResolver
	defaultBranch string
	maxResults    int64
}

// NewGoogleAdapter wraps lister. branches may be nil; defaultBranch is
// assigned to events from calendars with no branch mapping.
func NewGoogleAdapter(lister google.EventLister, branches BranchResolver, defaultBranch string) *GoogleAdapter {
	return &GoogleAdapter{
		lister:        lister,
		branches:      branches,
		defaultBranch: defaultBranch,
		maxResults:    google.DefaultMaxResults,
	}
}

func (a *GoogleAdapter) Type() model.CalendarType { return model.TypeGoogle }

func (a *GoogleAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	raws, err := a.lister.ListEvents(ctx, r, a.maxResults)
	if err != nil {
		return nil, &Error{Source: a.Type(), Err: err}
	}

	events := make([]model.Event, 0, len(raws))
	for _, raw := range raws {
		branch := a.defaultBranch
		if a.branches != nil {
			if b := a.branches.BranchOfCalendar(raw.CalendarID); b != "" {
				branch = b
			}
		}

		e := model.Event{
			ID:           eventID(model.TypeGoogle, raw.ID),
			Title:        raw.Summary,
			StartTime:    raw.Start,
			EndTime:      raw.End,
			AllDay:       raw.AllDay,
			CalendarType: model.TypeGoogle,
			BranchID:     branch,
			Location:     raw.Location,
			Description:  raw.Description,
			Priority:     model.PriorityMedium,
			Source:       string(model.TypeGoogle),
		}
		if !e.Valid() {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
