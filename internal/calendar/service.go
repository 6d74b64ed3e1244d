// Package calendar implements the aggregation core: it composes the Google
// backends and the school REST sources into one normalized, de-duplicated,
// time-ordered, branch-filtered event stream with a per-instance TTL cache.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/config"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/security"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/source"
)

var (
	// ErrInvalidArgument reports a malformed date range, month, or day
	// count. Fatal to the single call only.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInitialized is returned when events are requested before
	// Initialize has completed.
	ErrNotInitialized = errors.New("calendar service not initialized")
)

// State tracks the service lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// AdapterFactory builds the REST source adapters for a config/user pair.
type AdapterFactory func(cfg *config.SchoolConfig, user model.UserContext) []source.Adapter

// Report describes which sources a merged result was assembled from.
// Comparing Requested against Included tells the caller whether any source
// degraded on this fetch.
type Report struct {
	Requested []model.CalendarType
	Included  []model.CalendarType
	FromCache bool
}

// Service is the aggregation core. Construct with New, then Initialize for
// a config/user pair before requesting events. Each instance exclusively
// owns its cache; instances are never shared across users.
type Service struct {
	mu sync.RWMutex

	state           State
	cfg             *config.SchoolConfig
	user            model.UserContext
	adapters        map[model.CalendarType]source.Adapter
	backend         Backend
	googleAvailable bool
	cache           *resultCache

	ttl            time.Duration
	now            func() time.Time
	backendFactory BackendFactory
	adapterFactory AdapterFactory
}

// Option configures a Service at construction.
type Option func(*Service)

// WithCacheTTL overrides the cache freshness window.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source. Used by tests and the refresher.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackendFactory overrides Google backend selection.
func WithBackendFactory(f BackendFactory) Option {
	return func(s *Service) { s.backendFactory = f }
}

// WithAdapterFactory overrides REST adapter construction.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(s *Service) { s.adapterFactory = f }
}

// New creates an uninitialized Service. backendBaseURL is the school REST
// API base used by the default adapters.
func New(backendBaseURL string, opts ...Option) *Service {
	s := &Service{
		ttl:            DefaultCacheTTL,
		now:            time.Now,
		backendFactory: NewBackendFactory(nil, nil),
		adapterFactory: defaultAdapterFactory(backendBaseURL),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newResultCache(s.ttl)
	return s
}

func defaultAdapterFactory(baseURL string) AdapterFactory {
	return func(cfg *config.SchoolConfig, user model.UserContext) []source.Adapter {
		return []source.Adapter{
			source.NewTimetableAdapter(baseURL, user.AuthCode),
			source.NewHomeworkAdapter(baseURL, user.AuthCode),
			source.NewSchoolEventsAdapter(baseURL, user.AuthCode),
			source.NewNotificationAdapter(baseURL, user.AuthCode),
		}
	}
}

// Initialize resolves the Google backend for the config/user pair, builds
// the source adapters, and primes an empty cache. Idempotent: calling it
// again re-resolves configuration and signs out the prior interactive
// backend. Only a missing config aborts; a failed Google backend selection
// degrades and is reflected by GoogleCalendarAvailable.
func (s *Service) Initialize(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) error {
	if cfg == nil {
		return config.ErrConfigNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateInitializing

	// Re-initialization must not leak the prior backend's session.
	if s.backend.SignOut != nil {
		if err := s.backend.SignOut(); err != nil {
			slog.Warn("failed to sign out prior google backend", "error", err)
		}
	}

	s.cfg = cfg
	s.user = user

	s.adapters = make(map[model.CalendarType]source.Adapter)
	for _, adapter := range s.adapterFactory(cfg, user) {
		s.adapters[adapter.Type()] = adapter
	}

	backend, err := s.backendFactory(ctx, cfg, user)
	if err != nil {
		slog.Warn("google backend selection failed, continuing without google source",
			"school", cfg.Name, "error", err)
		backend = Backend{Mode: BackendNone}
	}
	// A backend with no lister cannot serve events; demote it but keep its
	// SignOut hook so the session is still released on re-initialization.
	if backend.Mode != BackendNone && backend.Lister == nil {
		slog.Warn("google backend selected without an event lister, disabling google source",
			"school", cfg.Name, "mode", backend.Mode.String())
		backend.Mode = BackendNone
	}
	s.backend = backend
	s.googleAvailable = backend.Mode != BackendNone
	if s.googleAvailable {
		defaultBranch := ""
		if backend.Mode == BackendInteractive {
			defaultBranch = user.BranchID
		}
		s.adapters[model.TypeGoogle] = source.NewGoogleAdapter(backend.Lister, backend.Branches, defaultBranch)
		slog.Info("google calendar backend selected", "mode", backend.Mode.String(), "school", cfg.Name)
	} else {
		slog.Info("google calendar sourcing disabled", "school", cfg.Name)
	}

	// Fresh cache: a new session or branch invalidates prior results.
	s.cache = newResultCache(s.ttl)
	s.state = StateReady
	return nil
}

// State returns the service lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GoogleCalendarAvailable reports whether a Google backend was successfully
// selected during initialization.
func (s *Service) GoogleCalendarAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.googleAvailable
}

// Stats returns a diagnostic snapshot of the cache.
func (s *Service) Stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.stats()
}

// AllEvents fetches, merges, and filters events from every included source.
// See AllEventsDetailed for the per-source report.
func (s *Service) AllEvents(ctx context.Context, opts FetchOptions) ([]model.Event, error) {
	events, _, err := s.AllEventsDetailed(ctx, opts)
	return events, err
}

// AllEventsDetailed is AllEvents plus a Report of which requested sources
// actually contributed. A failing source is logged and contributes zero
// events; only an invalid range or an uninitialized service produce errors.
func (s *Service) AllEventsDetailed(ctx context.Context, opts FetchOptions) ([]model.Event, Report, error) {
	if opts.Start.IsZero() || opts.End.IsZero() || opts.End.Before(opts.Start) {
		return nil, Report{}, fmt.Errorf("%w: bad date range [%s, %s)", ErrInvalidArgument, opts.Start, opts.End)
	}

	s.mu.RLock()
	if s.state != StateReady {
		s.mu.RUnlock()
		return nil, Report{}, ErrNotInitialized
	}
	user := s.user
	key := cacheKey(user.UserID, user.BranchID, opts.sourceFlags(), opts.Start, opts.End)
	s.mu.RUnlock()

	requested := opts.requestedTypes()

	if !opts.ForceRefresh {
		s.mu.Lock()
		entry, ok := s.cache.get(key, s.now())
		s.mu.Unlock()
		if ok {
			return copyEvents(entry.events), Report{
				Requested: requested,
				Included:  entry.included,
				FromCache: true,
			}, nil
		}
	}

	events, included := s.fetchAndMerge(ctx, user, opts)

	now := s.now()
	s.mu.Lock()
	s.cache.put(key, events, included, now)
	s.mu.Unlock()

	return copyEvents(events), Report{Requested: requested, Included: included}, nil
}

type fetchResult struct {
	sourceType model.CalendarType
	events     []model.Event
	err        error
}

// fetchAndMerge fans out to every enabled adapter concurrently, waits for
// all to settle, and reduces the results into one sorted, de-duplicated,
// branch-filtered sequence.
func (s *Service) fetchAndMerge(ctx context.Context, user model.UserContext, opts FetchOptions) ([]model.Event, []model.CalendarType) {
	s.mu.RLock()
	enabled := make([]source.Adapter, 0, len(s.adapters))
	for _, t := range opts.requestedTypes() {
		if adapter, ok := s.adapters[t]; ok {
			enabled = append(enabled, adapter)
		}
	}
	s.mu.RUnlock()

	r := model.TimeRange{Start: opts.Start, End: opts.End}
	results := make(chan fetchResult, len(enabled))

	var wg sync.WaitGroup
	for _, adapter := range enabled {
		wg.Add(1)
		go func(a source.Adapter) {
			defer wg.Done()
			events, err := a.FetchEvents(ctx, r)
			results <- fetchResult{sourceType: a.Type(), events: events, err: err}
		}(adapter)
	}
	wg.Wait()
	close(results)

	var merged []model.Event
	includedSet := make(map[model.CalendarType]bool)
	for res := range results {
		if res.err != nil {
			slog.Warn("source fetch failed, contributing no events",
				"source", res.sourceType, "error", res.err)
			continue
		}
		includedSet[res.sourceType] = true
		merged = append(merged, res.events...)
	}

	// Branch isolation happens here, not at event creation.
	filtered := merged[:0]
	for _, e := range merged {
		if !e.Valid() {
			continue
		}
		if security.CanAccessBranch(user, e.BranchID) {
			filtered = append(filtered, e)
		}
	}

	model.SortEvents(filtered)
	filtered = model.DedupeEvents(filtered)

	included := make([]model.CalendarType, 0, len(includedSet))
	for _, t := range opts.requestedTypes() {
		if includedSet[t] {
			included = append(included, t)
		}
	}
	return filtered, included
}

// UpcomingEvents returns events starting within the next `days` days.
// Events already underway (started before now) are excluded.
func (s *Service) UpcomingEvents(ctx context.Context, days int) ([]model.Event, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidArgument, days)
	}

	now := s.now()
	window := model.TimeRange{Start: now, End: now.AddDate(0, 0, days)}
	events, err := s.AllEvents(ctx, NewFetchOptions(window.Start, window.End))
	if err != nil {
		return nil, err
	}

	upcoming := events[:0]
	for _, e := range events {
		if window.Contains(e.StartTime) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, nil
}

// MonthlyEvents returns events within the given calendar month in local
// time. Months outside 1..12 are rejected with ErrInvalidArgument rather
// than rolled over.
func (s *Service) MonthlyEvents(ctx context.Context, year, month int) ([]model.Event, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be in 1..12, got %d", ErrInvalidArgument, month)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	return s.AllEvents(ctx, NewFetchOptions(start, start.AddDate(0, 1, 0)))
}

// copyEvents returns a defensive copy so callers cannot mutate cached
// slices out from under concurrent readers.
func copyEvents(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	return out
}
