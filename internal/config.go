package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Store StoreConfig       `yaml:"store"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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
	// EventThrottle is the minimum gap between collection.updated events
	// for one type.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// StoreConfig describes the record store.
//
// Types lists the record types that are pre-created on open and fed to the
// SSE broker. IOConcurrency bounds file operations per batch; zero picks a
// default from GOMAXPROCS. CacheSize enables a read cache when positive.
type StoreConfig struct {
	Path          string        `yaml:"path"`
	Serializer    string        `yaml:"serializer"`
	Types         []string      `yaml:"types"`
	IOConcurrency int           `yaml:"io_concurrency"`
	CacheSize     int           `yaml:"cache_size"`
	ChangeSource  string        `yaml:"change_source"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Serializer, validation.In(record.FormatJSON, record.FormatYAML, record.FormatMsgPack)),
		validation.Field(&c.Types, validation.Each(validation.Required)),
		validation.Field(&c.IOConcurrency, validation.Min(0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.ChangeSource, validation.In(watch.KindFSNotify, watch.KindPoll)),
		validation.Field(&c.PollInterval, validation.Min(time.Duration(0))),
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:          8080,
				EventThrottle: 2 * time.Second,
			},
		},
		Store: StoreConfig{
			Path:         "./data",
			Serializer:   record.FormatJSON,
			ChangeSource: watch.KindFSNotify,
			PollInterval: watch.DefaultPollInterval,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
