// Package security holds the pure access-control predicates for the
// calendar stack. Functions here never perform I/O and never mutate their
// arguments; callers apply them during source selection and event filtering.
package security

import (
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/config"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// CanAccessGoogleCalendar reports whether the user may read Google Calendar
// data at all. Requires the school to have a Google Workspace with the
// calendar feature on, and the user's role must not be explicitly excluded
// via a "googleCalendar.<role>" feature flag set to false.
func CanAccessGoogleCalendar(user model.UserContext, cfg *config.SchoolConfig) bool {
	if cfg == nil || !cfg.HasGoogleWorkspace {
		return false
	}
	if !cfg.FeatureEnabled(config.FeatureGoogleCalendar) {
		return false
	}
	return cfg.FeatureNotDisabled(config.FeatureGoogleCalendar + "." + string(user.Role))
}

// CanCreateCalendarEvents reports whether the user may create events.
// Only staff-tier roles on a write-capable configuration qualify.
func CanCreateCalendarEvents(user model.UserContext, cfg *config.SchoolConfig) bool {
	if !user.Role.StaffTier() {
		return false
	}
	if !CanAccessGoogleCalendar(user, cfg) {
		return false
	}
	return cfg.FeatureNotDisabled(config.FeatureGoogleCalendarWrite)
}

// CanAccessBranch reports whether the user may see events owned by branchID.
// An empty branch ID means the event is school-wide and visible to everyone.
func CanAccessBranch(user model.UserContext, branchID string) bool {
	if branchID == "" {
		return true
	}
	if branchID == user.BranchID {
		return true
	}
	return user.Role.CrossBranch()
}
