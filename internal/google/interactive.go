package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/session"
)

// InteractiveClient accesses the signed-in user's own calendars via OAuth.
// ListEvents fails with ErrNotAuthenticated until SignIn succeeds.
type InteractiveClient struct {
	mu          sync.Mutex
	oauthConfig *oauth2.Config
	tokens      session.TokenStore
	service     *calendar.Service
	calendarID  string
}

// NewInteractiveClient creates an interactive client. No network calls are
// made until SignIn.
func NewInteractiveClient(oauthConfig *oauth2.Config, tokens session.TokenStore) *InteractiveClient {
	return &InteractiveClient{
		oauthConfig: oauthConfig,
		tokens:      tokens,
		calendarID:  "primary",
	}
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves
// refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore session.TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// SignIn establishes the authenticated calendar service. With an empty
// authCode it reuses the stored token; otherwise it exchanges the code and
// persists the resulting token. Refreshed tokens are saved automatically.
func (c *InteractiveClient) SignIn(ctx context.Context, authCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.tokens.LoadToken()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	if authCode != "" {
		token, err = c.oauthConfig.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		if err := c.tokens.SaveToken(token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
	}

	if token == nil {
		return fmt.Errorf("%w: no stored token and no authorization code", ErrNotAuthenticated)
	}

	source := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, c.oauthConfig.TokenSource(ctx, token)),
		tokenStore: c.tokens,
		lastToken:  token,
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, source)))
	if err != nil {
		return fmt.Errorf("failed to create calendar service: %w", err)
	}

	c.service = service
	return nil
}

// SignOut drops the authenticated service and clears the stored token.
func (c *InteractiveClient) SignOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.service = nil
	if err := c.tokens.ClearToken(); err != nil {
		return err
	}
	slog.Debug("google calendar interactive client signed out")
	return nil
}

// SignedIn reports whether SignIn has succeeded.
func (c *InteractiveClient) SignedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.service != nil
}

// ListEvents retrieves events from the user's primary calendar within the
// time range, with recurring events expanded to single instances.
func (c *InteractiveClient) ListEvents(ctx context.Context, r model.TimeRange, maxResults int64) ([]RawEvent, error) {
	c.mu.Lock()
	service := c.service
	c.mu.Unlock()

	if service == nil {
		return nil, ErrNotAuthenticated
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	list, err := service.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(r.Start.Format(time.RFC3339)).
		TimeMax(r.End.Format(time.RFC3339)).
		SingleEvents(true). // Expand recurring events
		OrderBy("startTime").
		MaxResults(maxResults).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]RawEvent, 0, len(list.Items))
	for _, item := range list.Items {
		raw, err := convertEvent(item, c.calendarID)
		if err != nil {
			slog.Warn("skipping malformed google event", "error", err)
			continue
		}
		events = append(events, raw)
	}
	return events, nil
}
