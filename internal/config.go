package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/crmdesk/internal/source"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Source    SourceConfig      `yaml:"source"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Assistant AssistantConfig   `yaml:"assistant"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if c.Source.Driver == source.DriverSQLite {
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Assistant.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects the data-access backend.
//
// Fixtures is a directory of YAML files. The memory driver serves them
// directly; the sqlite driver seeds an empty database from them. Watch
// reloads the memory driver when a fixture file changes.
type SourceConfig struct {
	Driver   string `yaml:"driver"`
	Fixtures string `yaml:"fixtures"`
	Watch    bool   `yaml:"watch"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(source.DriverMemory, source.DriverSQLite)),
	); err != nil {
		return err
	}
	if c.Watch && c.Fixtures == "" {
		return fmt.Errorf("source: watch is on but no fixtures directory is set")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AssistantConfig controls the MCP endpoint served alongside the API.
type AssistantConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.By(func(v any) error {
			p, _ := v.(string)
			if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "/api") || strings.HasPrefix(p, "/health") {
				return validation.NewError("validation_mount_path", "must start with / and not clash with /api or /health")
			}
			return nil
		})),
	)
}

// EventsConfig tunes the SSE stream.
type EventsConfig struct {
	DashboardThrottle time.Duration `yaml:"dashboard_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DashboardThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Driver:   source.DriverMemory,
			Fixtures: "./fixtures",
		},
		SQLite: SQLiteConfig{
			Path: "./crmdesk.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Assistant: AssistantConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Events: EventsConfig{
			DashboardThrottle: 2 * time.Second,
		},
	}
}
