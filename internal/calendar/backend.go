package calendar

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/config"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/google"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/security"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/session"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/source"
)

// BackendMode tags which Google backend was selected at initialization.
// The tag is set at construction and never inferred from runtime types.
type BackendMode int

const (
	BackendNone BackendMode = iota
	BackendReadOnly
	BackendInteractive
)

func (m BackendMode) String() string {
	switch m {
	case BackendReadOnly:
		return "read-only"
	case BackendInteractive:
		return "interactive"
	}
	return "none"
}

// Backend is a selected Google event source plus the hooks the service
// needs to manage it.
type Backend struct {
	Mode     BackendMode
	Lister   google.EventLister
	Branches source.BranchResolver

	// SignOut releases the backend's session. Nil when there is nothing
	// to release.
	SignOut func() error
}

// BackendFactory selects the Google backend for a config/user pair. A
// factory returning BackendNone with a nil error means Google sourcing is
// cleanly disabled; an error means selection was attempted and failed, and
// the service degrades rather than aborting initialization.
type BackendFactory func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error)

// NewBackendFactory builds the default selection rule:
//
//  1. No Google Workspace, or the user may not read Google Calendar: no
//     backend.
//  2. Read-only calendars not explicitly disabled and branch calendars
//     configured: read-only client.
//  3. Otherwise the interactive OAuth client, when OAuth credentials were
//     provided.
//
// oauthConfig and tokens may be nil; then rule 3 yields no backend.
func NewBackendFactory(oauthConfig *oauth2.Config, tokens session.TokenStore) BackendFactory {
	return func(ctx context.Context, cfg *config.SchoolConfig, user model.UserContext) (Backend, error) {
		if !security.CanAccessGoogleCalendar(user, cfg) {
			return Backend{Mode: BackendNone}, nil
		}

		if cfg.FeatureNotDisabled(config.FeatureGoogleCalendarReadOnly) && len(cfg.Google.BranchCalendars) > 0 {
			client, err := google.NewReadOnlyClient(ctx, cfg.Name, cfg.Google.APIKey, cfg.Google.BranchCalendars)
			if err != nil {
				return Backend{Mode: BackendNone}, fmt.Errorf("read-only backend: %w", err)
			}
			return Backend{Mode: BackendReadOnly, Lister: client, Branches: client}, nil
		}

		if oauthConfig == nil || tokens == nil {
			return Backend{Mode: BackendNone}, nil
		}

		client := google.NewInteractiveClient(oauthConfig, tokens)
		// Resume a stored sign-in if one exists; failure is fine, the
		// source degrades with ErrNotAuthenticated until SignIn.
		_ = client.SignIn(ctx, "")
		return Backend{
			Mode:    BackendInteractive,
			Lister:  client,
			SignOut: client.SignOut,
		}, nil
	}
}
