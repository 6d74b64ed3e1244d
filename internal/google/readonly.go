package google

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// ReadOnlyClient reads pre-configured public branch calendars with a school
// API key. No end-user sign-in is required.
type ReadOnlyClient struct {
	service         *calendar.Service
	schoolName      string
	branchCalendars map[string]string // branchID -> calendarID
}

// NewReadOnlyClient builds a read-only client for the given branch calendar
// mapping. The API key must authorize the Calendar API for public calendars.
func NewReadOnlyClient(ctx context.Context, schoolName, apiKey string, branchCalendars map[string]string) (*ReadOnlyClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("read-only google calendar requires an api key")
	}
	if len(branchCalendars) == 0 {
		return nil, fmt.Errorf("read-only google calendar requires at least one branch calendar")
	}

	service, err := calendar.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendars := make(map[string]string, len(branchCalendars))
	for branch, id := range branchCalendars {
		calendars[branch] = id
	}

	return &ReadOnlyClient{
		service:         service,
		schoolName:      schoolName,
		branchCalendars: calendars,
	}, nil
}

// BranchInfo returns the school name and the branches this client serves.
func (c *ReadOnlyClient) BranchInfo() (school string, branches []string) {
	return c.schoolName, c.BranchCalendars()
}

// BranchCalendars returns the branch IDs this client is bound to, sorted.
func (c *ReadOnlyClient) BranchCalendars() []string {
	branches := make([]string, 0, len(c.branchCalendars))
	for branch := range c.branchCalendars {
		branches = append(branches, branch)
	}
	sort.Strings(branches)
	return branches
}

// BranchOfCalendar reverse-maps a calendar ID back to its branch.
func (c *ReadOnlyClient) BranchOfCalendar(calendarID string) string {
	for branch, id := range c.branchCalendars {
		if id == calendarID {
			return branch
		}
	}
	return ""
}

// ListEvents retrieves events from every bound branch calendar within the
// time range. A branch calendar that fails to answer is logged and skipped;
// the remaining calendars still contribute.
func (c *ReadOnlyClient) ListEvents(ctx context.Context, r model.TimeRange, maxResults int64) ([]RawEvent, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var events []RawEvent
	var failed int
	for _, branch := range c.BranchCalendars() {
		calendarID := c.branchCalendars[branch]
		list, err := c.service.Events.List(calendarID).
			Context(ctx).
			TimeMin(r.Start.Format(time.RFC3339)).
			TimeMax(r.End.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(maxResults).
			Do()
		if err != nil {
			slog.Warn("branch calendar fetch failed", "branch", branch, "error", err)
			failed++
			continue
		}
		for _, item := range list.Items {
			raw, err := convertEvent(item, calendarID)
			if err != nil {
				slog.Warn("skipping malformed google event", "branch", branch, "error", err)
				continue
			}
			events = append(events, raw)
		}
	}

	if failed == len(c.branchCalendars) {
		return nil, fmt.Errorf("all %d branch calendars failed", failed)
	}
	return events, nil
}
