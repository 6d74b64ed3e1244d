package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/session"
)

func TestConvertEventTimed(t *testing.T) {
	raw, err := convertEvent(&calendar.Event{
		Id:          "ev1",
		Summary:     "Staff Meeting",
		Description: "Weekly staff sync",
		Location:    "Room 12",
		Start:       &calendar.EventDateTime{DateTime: "2025-01-15T09:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
	}, "cal-1")
	require.NoError(t, err)

	assert.Equal(t, "ev1", raw.ID)
	assert.Equal(t, "Staff Meeting", raw.Summary)
	assert.Equal(t, "cal-1", raw.CalendarID)
	assert.False(t, raw.AllDay)
	assert.Equal(t, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), raw.Start.UTC())
	assert.Equal(t, time.Hour, raw.End.Sub(raw.Start))
}

func TestConvertEventAllDay(t *testing.T) {
	raw, err := convertEvent(&calendar.Event{
		Id:      "ev2",
		Summary: "Sports Day",
		Start:   &calendar.EventDateTime{Date: "2025-01-20"},
		End:     &calendar.EventDateTime{Date: "2025-01-21"},
	}, "cal-1")
	require.NoError(t, err)

	assert.True(t, raw.AllDay)
	assert.Equal(t, 20, raw.Start.Day())
	assert.Equal(t, 21, raw.End.Day())
}

func TestConvertEventMalformed(t *testing.T) {
	_, err := convertEvent(&calendar.Event{Id: "ev3"}, "cal-1")
	assert.Error(t, err, "missing start/end must be rejected")

	_, err = convertEvent(&calendar.Event{
		Id:    "ev4",
		Start: &calendar.EventDateTime{DateTime: "not-a-time"},
		End:   &calendar.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
	}, "cal-1")
	assert.Error(t, err)
}

func TestInteractiveClientRequiresSignIn(t *testing.T) {
	client := NewInteractiveClient(&oauth2.Config{}, &session.MemoryTokenStore{})

	assert.False(t, client.SignedIn())

	_, err := client.ListEvents(context.Background(), model.TimeRange{
		Start: time.Now(),
		End:   time.Now().Add(24 * time.Hour),
	}, 0)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInteractiveClientSignInWithoutToken(t *testing.T) {
	client := NewInteractiveClient(&oauth2.Config{}, &session.MemoryTokenStore{})

	// No stored token and no auth code: sign-in must fail with the
	// authentication sentinel so the source degrades cleanly.
	err := client.SignIn(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestReadOnlyClientValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewReadOnlyClient(ctx, "BFI", "", map[string]string{"primary": "cal-1"})
	assert.Error(t, err, "missing api key")

	_, err = NewReadOnlyClient(ctx, "BFI", "key", nil)
	assert.Error(t, err, "missing branch calendars")
}

func TestReadOnlyClientBranchInfo(t *testing.T) {
	client, err := NewReadOnlyClient(context.Background(), "BFI", "key", map[string]string{
		"secondary": "sec@group.calendar.google.com",
		"primary":   "pri@group.calendar.google.com",
	})
	require.NoError(t, err)

	school, branches := client.BranchInfo()
	assert.Equal(t, "BFI", school)
	assert.Equal(t, []string{"primary", "secondary"}, branches)

	assert.Equal(t, "secondary", client.BranchOfCalendar("sec@group.calendar.google.com"))
	assert.Equal(t, "", client.BranchOfCalendar("unknown"))
}
