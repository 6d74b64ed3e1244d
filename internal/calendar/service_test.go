package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/config"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/google"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/source"
)

// stubLister is an empty google.EventLister for backend wiring tests.
type stubLister struct{}

func (stubLister) ListEvents(ctx context.Context, r model.TimeRange, maxResults int64) ([]google.RawEvent, error) {
	return nil, nil
}

// mockAdapter is a hand-rolled source.Adapter that records calls.
type mockAdapter struct {
	mu         sync.Mutex
	sourceType model.CalendarType
	events     []model.Event
	err        error
	calls      int
}

func (m *mockAdapter) Type() model.CalendarType { return m.sourceType }

func (m *mockAdapter) FetchEvents(ctx context.Context, r model.TimeRange) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, &source.Error{Source: m.sourceType, Err: m.err}
	}
	return m.events, nil
}

func (m *mockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// testClock is a mutable clock for TTL tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func event(id string, t model.CalendarType, start time.Time, branch string) model.Event {
	return model.Event{
		ID:           id,
		Title:        id,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		CalendarType: t,
		BranchID:     branch,
		Priority:     model.PriorityMedium,
		Source:       string(t),
	}
}

func workspaceConfig() *config.SchoolConfig {
	return &config.SchoolConfig{
		ID:                 "bfi",
		Name:               "BFI",
		HasGoogleWorkspace: true,
		Features:           map[string]bool{"googleCalendar": true},
		Google: config.GoogleConfig{
			APIKey:          "key",
			BranchCalendars: map[string]string{"secondary": "sec-cal"},
		},
		LoginDomains: []string{"bfi.edu"},
	}
}

func teacherUser() model.UserContext {
	return model.UserContext{
		UserID:   "teacher.one",
		Role:     model.RoleTeacher,
		AuthCode: "code-1",
		BranchID: "secondary",
	}
}

type serviceFixture struct {
	service   *Service
	clock     *testClock
	timetable *mockAdapter
	homework  *mockAdapter
	school    *mockAdapter
	notes     *mockAdapter
}

func newFixture(t *testing.T, backendFactory BackendFactory, opts ...Option) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		clock:     &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		timetable: &mockAdapter{sourceType: model.TypeTimetable},
		homework:  &mockAdapter{sourceType: model.TypeHomework},
		school:    &mockAdapter{sourceType: model.TypeSchoolEvent},
		notes:     &mockAdapter{sourceType: model.TypeNotification},
	}
	if backendFactory == nil {
		backendFactory = func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error) {
			return Backend{Mode: BackendNone}, nil
		}
	}

	all := append([]Option{
		WithClock(f.clock.Now),
		WithBackendFactory(backendFactory),
		WithAdapterFactory(func(cfg *config.SchoolConfig, user model.UserContext) []source.Adapter {
			return []source.Adapter{f.timetable, f.homework, f.school, f.notes}
		}),
	}, opts...)

	f.service = New("http://backend.invalid", all...)
	return f
}

func TestInitializeRequiresConfig(t *testing.T) {
	f := newFixture(t, nil)
	err := f.service.Initialize(context.Background(), nil, teacherUser())
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestAllEventsBeforeInitialize(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	_, err := f.service.AllEvents(context.Background(), NewFetchOptions(now, now.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestAllEventsMergesSortsAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	f.timetable.events = []model.Event{
		event("timetable-2", model.TypeTimetable, base.Add(2*time.Hour), "secondary"),
		event("timetable-1", model.TypeTimetable, base, "secondary"),
		// Other branch: must be filtered out for a teacher.
		event("timetable-3", model.TypeTimetable, base, "primary"),
	}
	f.homework.events = []model.Event{
		event("homework-1", model.TypeHomework, base, ""),
		// Duplicate ID within one source.
		event("homework-1", model.TypeHomework, base, ""),
	}
	f.school.events = []model.Event{
		event("school_event-1", model.TypeSchoolEvent, base.Add(time.Hour), ""),
	}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	events, err := f.service.AllEvents(context.Background(), NewFetchOptions(base, base.AddDate(0, 0, 1)))
	require.NoError(t, err)

	// Sorted non-decreasing by start time, IDs unique, invariants hold.
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].StartTime.Before(events[i-1].StartTime))
	}
	seen := map[string]bool{}
	for _, e := range events {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
		assert.False(t, e.StartTime.After(e.EndTime))
	}

	// Branch isolation: the primary-branch event is gone.
	assert.False(t, seen["timetable-3"])
	assert.Equal(t, []string{"homework-1", "timetable-1", "school_event-1", "timetable-2"},
		eventIDs(events))
}

func TestAllEventsCacheHit(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	opts := NewFetchOptions(base, base.AddDate(0, 0, 7))
	first, report1, err := f.service.AllEventsDetailed(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, report1.FromCache)

	second, report2, err := f.service.AllEventsDetailed(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, report2.FromCache)
	assert.Equal(t, first, second, "cache hit returns identical results")

	// No source was re-invoked.
	assert.Equal(t, 1, f.timetable.callCount())
	assert.Equal(t, 1, f.homework.callCount())

	stats := f.service.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.False(t, stats.OldestEntry.IsZero())
}

func TestAllEventsCacheExpiry(t *testing.T) {
	f := newFixture(t, nil, WithCacheTTL(5*time.Minute))
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	opts := NewFetchOptions(base, base.AddDate(0, 0, 7))
	_, err := f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)

	_, err = f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, f.timetable.callCount(), "stale entry is a miss")
}

func TestAllEventsForceRefresh(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	opts := NewFetchOptions(base, base.AddDate(0, 0, 7))
	_, err := f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)

	opts.ForceRefresh = true
	_, err = f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, f.timetable.callCount(), "force refresh bypasses the cache read")

	// The forced result was written back: a normal read hits it.
	opts.ForceRefresh = false
	_, report, err := f.service.AllEventsDetailed(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, 2, f.timetable.callCount())
}

func TestAllEventsSourceFlagsPartitionCache(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	opts := NewFetchOptions(base, base.AddDate(0, 0, 7))
	_, err := f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)

	narrowed := opts
	narrowed.IncludeHomework = false
	_, err = f.service.AllEvents(context.Background(), narrowed)
	require.NoError(t, err)

	assert.Equal(t, 2, f.timetable.callCount(), "different source set is a different cache key")
	assert.Equal(t, 1, f.homework.callCount())
}

func TestAllEventsPartialFailure(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}
	f.homework.err = errors.New("backend down")

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	events, report, err := f.service.AllEventsDetailed(context.Background(), NewFetchOptions(base, base.AddDate(0, 0, 7)))
	require.NoError(t, err, "one broken source must not blank out the calendar")
	assert.Equal(t, []string{"timetable-1"}, eventIDs(events))

	assert.Contains(t, report.Requested, model.TypeHomework)
	assert.NotContains(t, report.Included, model.TypeHomework)
	assert.Contains(t, report.Included, model.TypeTimetable)
}

func TestAllEventsInvalidRange(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	now := f.clock.Now()
	_, err := f.service.AllEvents(context.Background(), NewFetchOptions(now, now.Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.service.AllEvents(context.Background(), FetchOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGoogleBackendSelectionFailureDegrades(t *testing.T) {
	failing := func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error) {
		return Backend{}, errors.New("api key rejected")
	}
	f := newFixture(t, failing)
	base := f.clock.Now()
	f.school.events = []model.Event{event("school_event-1", model.TypeSchoolEvent, base, "")}

	// Initialization must not throw, only degrade.
	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))
	assert.False(t, f.service.GoogleCalendarAvailable())

	events, report, err := f.service.AllEventsDetailed(context.Background(), NewFetchOptions(base, base.AddDate(0, 0, 7)))
	require.NoError(t, err)
	assert.Equal(t, []string{"school_event-1"}, eventIDs(events))
	assert.NotContains(t, report.Included, model.TypeGoogle)
}

func TestParentWithoutWorkspace(t *testing.T) {
	f := newFixture(t, NewBackendFactory(nil, nil))
	base := f.clock.Now()
	f.school.events = []model.Event{event("school_event-1", model.TypeSchoolEvent, base, "")}

	parent := model.UserContext{UserID: "parent.one", Role: model.RoleParent, AuthCode: "c", BranchID: "primary"}
	noWorkspace := &config.SchoolConfig{
		ID: "hillside", Name: "Hillside", HasGoogleWorkspace: false,
		LoginDomains: []string{"hillside.example.org"},
	}

	require.NoError(t, f.service.Initialize(context.Background(), noWorkspace, parent))
	assert.False(t, f.service.GoogleCalendarAvailable())

	events, err := f.service.AllEvents(context.Background(), NewFetchOptions(base, base.AddDate(0, 0, 7)))
	require.NoError(t, err)
	assert.Equal(t, []string{"school_event-1"}, eventIDs(events), "remaining sources still answer")
}

func TestMonthlyEventsScenario(t *testing.T) {
	f := newFixture(t, nil)

	due := time.Date(2025, 1, 15, 0, 0, 0, 0, time.Local)
	lesson := time.Date(2025, 1, 16, 8, 30, 0, 0, time.Local)

	f.homework.events = []model.Event{{
		ID: "homework-hw1", Title: "Essay", StartTime: due, EndTime: due.AddDate(0, 0, 1),
		AllDay: true, CalendarType: model.TypeHomework, BranchID: "secondary",
		Priority: model.PriorityHigh, Source: "homework",
	}}
	f.timetable.events = []model.Event{event("timetable-l1", model.TypeTimetable, lesson, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	events, err := f.service.MonthlyEvents(context.Background(), 2025, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "homework-hw1", events[0].ID)
	assert.Equal(t, model.TypeHomework, events[0].CalendarType)
	assert.Equal(t, "timetable-l1", events[1].ID)
	assert.Equal(t, model.TypeTimetable, events[1].CalendarType)
}

func TestMonthlyEventsRejectsBadMonth(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	// Overflow policy: reject, never roll into the next year.
	_, err := f.service.MonthlyEvents(context.Background(), 2025, 13)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.service.MonthlyEvents(context.Background(), 2025, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUpcomingEventsCutoff(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now() // 2025-03-01 12:00 UTC

	f.school.events = []model.Event{
		event("school_event-past", model.TypeSchoolEvent, now.Add(-2*time.Hour), ""),
		event("school_event-soon", model.TypeSchoolEvent, now.Add(3*time.Hour), ""),
		event("school_event-week", model.TypeSchoolEvent, now.AddDate(0, 0, 6), ""),
		event("school_event-later", model.TypeSchoolEvent, now.AddDate(0, 0, 20), ""),
	}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	events, err := f.service.UpcomingEvents(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, []string{"school_event-soon", "school_event-week"}, eventIDs(events),
		"events starting outside the [now, now+days) window are excluded")

	_, err = f.service.UpcomingEvents(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReinitializeSignsOutPriorBackend(t *testing.T) {
	var signOuts int
	factory := func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error) {
		return Backend{
			Mode:    BackendInteractive,
			Lister:  stubLister{},
			SignOut: func() error { signOuts++; return nil },
		}, nil
	}
	f := newFixture(t, factory)

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))
	assert.True(t, f.service.GoogleCalendarAvailable())
	assert.Equal(t, 0, signOuts)

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))
	assert.Equal(t, 1, signOuts, "re-initialization releases the prior session")
}

func TestBackendWithoutListerDisablesGoogle(t *testing.T) {
	var signOuts int
	factory := func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error) {
		return Backend{
			Mode:    BackendInteractive,
			Lister:  nil,
			SignOut: func() error { signOuts++; return nil },
		}, nil
	}
	f := newFixture(t, factory)

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))
	assert.False(t, f.service.GoogleCalendarAvailable(), "a backend with no lister cannot serve events")

	// Fetching with the google source requested must not panic.
	now := f.clock.Now()
	_, report, err := f.service.AllEventsDetailed(context.Background(), NewFetchOptions(now, now.AddDate(0, 0, 7)))
	require.NoError(t, err)
	assert.NotContains(t, report.Included, model.TypeGoogle)

	// The demoted backend's session is still released on re-initialization.
	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))
	assert.Equal(t, 1, signOuts)
}

func TestReinitializeResetsCache(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	opts := NewFetchOptions(base, base.AddDate(0, 0, 7))
	_, err := f.service.AllEvents(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, f.service.Stats().Entries)

	// Branch switch: same user, new branch. Cache must not survive.
	switched := teacherUser()
	switched.BranchID = "primary"
	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), switched))
	assert.Equal(t, 0, f.service.Stats().Entries)
}

func TestConcurrentOverlappingCalls(t *testing.T) {
	f := newFixture(t, nil)
	base := f.clock.Now()
	f.timetable.events = []model.Event{event("timetable-1", model.TypeTimetable, base, "secondary")}

	require.NoError(t, f.service.Initialize(context.Background(), workspaceConfig(), teacherUser()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(days int) {
			defer wg.Done()
			_, err := f.service.AllEvents(context.Background(), NewFetchOptions(base, base.AddDate(0, 0, days)))
			assert.NoError(t, err)
		}(i%3 + 1)
	}
	wg.Wait()

	stats := f.service.Stats()
	assert.LessOrEqual(t, stats.Entries, 3)
}

func eventIDs(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
