package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// ErrConfigNotFound is returned when no school in the registry matches a
// login. Detection never falls back to another school's configuration.
var ErrConfigNotFound = errors.New("no matching school configuration")

// Feature keys understood by the calendar stack.
const (
	FeatureGoogleCalendar         = "googleCalendar"
	FeatureGoogleCalendarReadOnly = "googleCalendarReadOnly"
	FeatureGoogleCalendarWrite    = "googleCalendarWrite"
)

// GoogleConfig holds the Google Workspace integration settings for a school.
type GoogleConfig struct {
	// APIKey authorizes the read-only, credential-free calendar backend.
	APIKey string `yaml:"api_key" json:"api_key"`

	// BranchCalendars maps a branch ID to its public Google Calendar ID.
	BranchCalendars map[string]string `yaml:"branch_calendars" json:"branch_calendars"`
}

// SchoolConfig describes one school tenant: which calendar features and
// credentials are enabled and how logins are matched to it.
type SchoolConfig struct {
	ID                 string          `yaml:"id" json:"id"`
	Name               string          `yaml:"name" json:"name"`
	HasGoogleWorkspace bool            `yaml:"has_google_workspace" json:"has_google_workspace"`
	Features           map[string]bool `yaml:"features" json:"features"`
	Google             GoogleConfig    `yaml:"google" json:"google"`

	// LoginDomains and LoginPrefixes are the matching rules used by
	// DetectSchoolFromLogin. A username matches a school when its email
	// domain is listed in LoginDomains or it starts with one of the
	// LoginPrefixes.
	LoginDomains  []string `yaml:"login_domains" json:"login_domains"`
	LoginPrefixes []string `yaml:"login_prefixes" json:"login_prefixes"`
}

// FeatureEnabled reports whether a feature flag is explicitly set true.
func (c *SchoolConfig) FeatureEnabled(name string) bool {
	return c.Features[name]
}

// FeatureNotDisabled reports whether a feature flag is anything other than an
// explicit false. Absent flags count as enabled; this is how optional
// features such as the read-only calendar default on.
func (c *SchoolConfig) FeatureNotDisabled(name string) bool {
	v, ok := c.Features[name]
	return !ok || v
}

// Validate checks the internal consistency of a school entry.
func (c *SchoolConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("school entry missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("school %q missing name", c.ID)
	}
	if len(c.LoginDomains) == 0 && len(c.LoginPrefixes) == 0 {
		return fmt.Errorf("school %q has no login matching rules", c.ID)
	}
	if c.HasGoogleWorkspace && len(c.Google.BranchCalendars) > 0 && c.Google.APIKey == "" {
		return fmt.Errorf("school %q declares branch calendars but no api_key", c.ID)
	}
	return nil
}

// Registry is the set of known school tenants.
type Registry struct {
	Schools []SchoolConfig `yaml:"schools"`
}

// LoadRegistry reads and validates a YAML school registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read school registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses and validates a YAML school registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse school registry: %w", err)
	}
	for i := range reg.Schools {
		if err := reg.Schools[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &reg, nil
}

// DetectSchoolFromLogin resolves the school a logging-in user belongs to.
// Matching is by email domain first, then username prefix. Returns
// ErrConfigNotFound when nothing matches.
func (r *Registry) DetectSchoolFromLogin(username string, role model.UserRole) (*SchoolConfig, error) {
	login := strings.ToLower(strings.TrimSpace(username))
	if login == "" {
		return nil, fmt.Errorf("%w: empty username", ErrConfigNotFound)
	}

	if at := strings.LastIndex(login, "@"); at >= 0 {
		domain := login[at+1:]
		for i := range r.Schools {
			for _, d := range r.Schools[i].LoginDomains {
				if strings.EqualFold(d, domain) {
					return &r.Schools[i], nil
				}
			}
		}
	}

	for i := range r.Schools {
		for _, p := range r.Schools[i].LoginPrefixes {
			if p != "" && strings.HasPrefix(login, strings.ToLower(p)) {
				return &r.Schools[i], nil
			}
		}
	}

	return nil, fmt.Errorf("%w: username %q (role %s)", ErrConfigNotFound, username, role)
}
