// calendard is a diagnostic server around the calendar aggregation core.
// It resolves the school configuration for a login, initializes the
// aggregation service, and serves the merged event stream over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/calendar"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/config"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/refresh"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/session"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `School Calendar Aggregation Server

Serves the merged, branch-filtered calendar event stream for one signed-in
user over HTTP, with cache statistics and an iCalendar feed.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help            Show this help message and exit
    --registry FILE       Path to the YAML school registry
                          (overrides SCHOOL_REGISTRY env var)
    --listen ADDR         HTTP listen address (default ":8080",
                          overrides LISTEN_ADDR env var)
    --username USER       Login username used for school detection; omit to
                          resume the stored session
                          (overrides PORTAL_USERNAME env var)
    --user-type ROLE      Portal role: student, parent, teacher, staff,
                          admin, head_of_section, head_of_school
                          (overrides PORTAL_USER_TYPE env var)
    --auth-code CODE      Backend auth code for the session
                          (overrides PORTAL_AUTH_CODE env var)
    --branch ID           Branch the user belongs to
                          (overrides PORTAL_BRANCH env var)
    --api-base URL        School REST API base URL
                          (overrides API_BASE_URL env var)
    --session-path FILE   Where the login session is persisted
                          (default "session.json", overrides SESSION_PATH)
    --google-client-id ID     OAuth client ID for the interactive Google
                              backend (overrides GOOGLE_CLIENT_ID)
    --google-client-secret S  OAuth client secret
                              (overrides GOOGLE_CLIENT_SECRET)
    --token-path FILE     Where the Google OAuth token is persisted
                          (default "google_token.json", overrides
                          GOOGLE_TOKEN_PATH)
    --refresh CRON        Cache warm schedule (default "*/15 * * * *")

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (a .env file is loaded if present)
    3. The stored session file (identity only)
`, os.Args[0])
}

type settings struct {
	registryPath       string
	listen             string
	username           string
	userType           string
	authCode           string
	branch             string
	apiBase            string
	sessionPath        string
	googleClientID     string
	googleClientSecret string
	tokenPath          string
	refreshCron        string
}

func loadSettings() (*settings, error) {
	// .env is optional; environment and flags take precedence.
	_ = godotenv.Load()

	var s settings
	var help bool
	flag.BoolVar(&help, "h", false, "")
	flag.BoolVar(&help, "help", false, "")
	flag.StringVar(&s.registryPath, "registry", "", "")
	flag.StringVar(&s.listen, "listen", "", "")
	flag.StringVar(&s.username, "username", "", "")
	flag.StringVar(&s.userType, "user-type", "", "")
	flag.StringVar(&s.authCode, "auth-code", "", "")
	flag.StringVar(&s.branch, "branch", "", "")
	flag.StringVar(&s.apiBase, "api-base", "", "")
	flag.StringVar(&s.sessionPath, "session-path", "", "")
	flag.StringVar(&s.googleClientID, "google-client-id", "", "")
	flag.StringVar(&s.googleClientSecret, "google-client-secret", "", "")
	flag.StringVar(&s.tokenPath, "token-path", "", "")
	flag.StringVar(&s.refreshCron, "refresh", "", "")
	flag.Usage = printHelp
	flag.Parse()

	if help {
		printHelp()
		os.Exit(0)
	}

	fromEnv := func(val *string, key string) {
		if *val == "" {
			*val = os.Getenv(key)
		}
	}
	fromEnv(&s.registryPath, "SCHOOL_REGISTRY")
	fromEnv(&s.listen, "LISTEN_ADDR")
	fromEnv(&s.username, "PORTAL_USERNAME")
	fromEnv(&s.userType, "PORTAL_USER_TYPE")
	fromEnv(&s.authCode, "PORTAL_AUTH_CODE")
	fromEnv(&s.branch, "PORTAL_BRANCH")
	fromEnv(&s.apiBase, "API_BASE_URL")
	fromEnv(&s.sessionPath, "SESSION_PATH")
	fromEnv(&s.googleClientID, "GOOGLE_CLIENT_ID")
	fromEnv(&s.googleClientSecret, "GOOGLE_CLIENT_SECRET")
	fromEnv(&s.tokenPath, "GOOGLE_TOKEN_PATH")

	if s.listen == "" {
		s.listen = ":8080"
	}
	if s.sessionPath == "" {
		s.sessionPath = "session.json"
	}
	if s.tokenPath == "" {
		s.tokenPath = "google_token.json"
	}
	if s.registryPath == "" {
		return nil, fmt.Errorf("school registry must be provided via --registry or SCHOOL_REGISTRY")
	}
	if s.apiBase == "" {
		return nil, fmt.Errorf("API base URL must be provided via --api-base or API_BASE_URL")
	}
	return &s, nil
}

// googleOAuth returns the OAuth client configuration for the interactive
// Google backend, or nil when no client credentials were provided.
func (s *settings) googleOAuth() *oauth2.Config {
	if s.googleClientID == "" || s.googleClientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     s.googleClientID,
		ClientSecret: s.googleClientSecret,
		RedirectURL:  "http://127.0.0.1:8080",
		Scopes: []string{
			gcal.CalendarReadonlyScope,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
}

// resolveSession builds the login session from settings, falling back to the
// stored session when no username was supplied. An explicit identity is
// persisted so the next run can resume it.
func resolveSession(s *settings, store *session.Store) (*session.Session, error) {
	if s.username != "" {
		if s.userType == "" {
			return nil, fmt.Errorf("user type must be provided via --user-type or PORTAL_USER_TYPE")
		}
		sess := &session.Session{
			UserID:   s.username,
			AuthCode: s.authCode,
			UserType: model.UserRole(s.userType),
			BranchID: s.branch,
		}
		if err := store.Save(sess); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
		return sess, nil
	}

	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("no stored session; provide --username and --user-type (or PORTAL_USERNAME / PORTAL_USER_TYPE)")
	}
	return sess, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	s, err := loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		printHelp()
		os.Exit(1)
	}

	registry, err := config.LoadRegistry(s.registryPath)
	if err != nil {
		slog.Error("failed to load school registry", "error", err)
		os.Exit(1)
	}

	sess, err := resolveSession(s, session.NewStore(s.sessionPath))
	if err != nil {
		slog.Error("failed to resolve session", "error", err)
		os.Exit(1)
	}

	school, err := registry.DetectSchoolFromLogin(sess.UserID, sess.UserType)
	if err != nil {
		slog.Error("school detection failed", "username", sess.UserID, "error", err)
		os.Exit(1)
	}
	slog.Info("resolved school", "school", school.Name)

	configStore := config.NewStore()
	if err := configStore.SaveCurrent(school); err != nil {
		slog.Error("failed to save session config", "error", err)
		os.Exit(1)
	}
	// The service works off the session-scoped copy, not the registry entry.
	active, err := configStore.Current()
	if err != nil {
		slog.Error("failed to read session config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	service := calendar.New(s.apiBase,
		calendar.WithBackendFactory(calendar.NewBackendFactory(
			s.googleOAuth(), session.NewFileTokenStore(s.tokenPath))),
	)
	if err := service.Initialize(ctx, active, sess.UserContext()); err != nil {
		slog.Error("calendar service initialization failed", "error", err)
		os.Exit(1)
	}
	slog.Info("calendar service ready",
		"google_available", service.GoogleCalendarAvailable())

	warmer := refresh.New(service, s.refreshCron)
	if err := warmer.Start(); err != nil {
		slog.Error("failed to start cache warmer", "error", err)
		os.Exit(1)
	}
	defer warmer.Stop()

	handler := mux.NewRouter()
	handler.Use(requestLogger, recovery)

	api := &apiHandler{service: service}
	handler.HandleFunc("/events", api.events).Methods(http.MethodGet)
	handler.HandleFunc("/events/upcoming", api.upcoming).Methods(http.MethodGet)
	handler.HandleFunc("/events/month/{year}/{month}", api.monthly).Methods(http.MethodGet)
	handler.HandleFunc("/calendar.ics", api.icsFeed).Methods(http.MethodGet)
	handler.HandleFunc("/stats", api.stats).Methods(http.MethodGet)
	handler.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, "ok")
	})
	handler.Handle("/metrics", promhttp.Handler())

	slog.Info("starting calendard", "listen", s.listen)
	if err := http.ListenAndServe(s.listen, handler); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
