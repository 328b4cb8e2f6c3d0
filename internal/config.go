package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/muninn/internal/deadline"
	"github.com/starford/muninn/internal/extract"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Telegram TelegramConfig    `yaml:"telegram"`
	Reminder ReminderConfig    `yaml:"reminder"`
}

// Validate validates the configuration. Validation failure means the
// previous (or default) configuration stays in effect; nothing partial
// is ever applied.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Reminder.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the sent-history database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds control-API authentication configuration.
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

// TelegramConfig holds delivery credentials. Both fields may be left empty:
// the daemon still runs and scans, and deliveries short-circuit to failure
// until credentials are configured.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// PresetConfig is one named reminder preset.
type PresetConfig struct {
	Name     string   `yaml:"name"`
	Offsets  []string `yaml:"offsets"`
	Template string   `yaml:"template"`
}

// Validate validates one preset definition. Offset tokens are checked with
// the strict grammar here so a malformed preset is rejected at the config
// boundary rather than silently ignored during a scan.
func (c *PresetConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Offsets, validation.Required),
	); err != nil {
		return err
	}
	for _, tok := range c.Offsets {
		if !deadline.ValidOffset(tok) {
			return fmt.Errorf("preset %q: invalid offset token %q", c.Name, tok)
		}
	}
	return nil
}

// ReminderConfig holds the scan-time reminder settings.
type ReminderConfig struct {
	UTCOffset    int    `yaml:"utc_offset"`    // signed hours from UTC
	ScanInterval string `yaml:"scan_interval"` // Go duration string, e.g. "5m"
	StartHour    int    `yaml:"start_hour"`    // active window lower bound, inclusive
	EndHour      int    `yaml:"end_hour"`      // active window upper bound, exclusive

	ReviewKey   string `yaml:"review_key"`
	BaseDateKey string `yaml:"base_date_key"`
	PresetKey   string `yaml:"preset_key"`

	ReviewFields []string `yaml:"review_fields"`
	PresetFields []string `yaml:"preset_fields"`

	ReviewTemplate string `yaml:"review_template"`
	PresetTemplate string `yaml:"preset_template"`
	InlineTemplate string `yaml:"inline_template"`

	Presets []PresetConfig `yaml:"presets"`
}

// Validate validates the reminder configuration.
func (c *ReminderConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.UTCOffset, validation.Min(-12), validation.Max(14)),
		validation.Field(&c.StartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.EndHour, validation.Min(1), validation.Max(24)),
		validation.Field(&c.ReviewKey, validation.Required),
		validation.Field(&c.BaseDateKey, validation.Required),
		validation.Field(&c.PresetKey, validation.Required),
	); err != nil {
		return err
	}
	if c.StartHour >= c.EndHour {
		return fmt.Errorf("reminder: active window [%d, %d) is empty; wrap-around windows are not supported", c.StartHour, c.EndHour)
	}
	if _, err := time.ParseDuration(c.ScanInterval); err != nil {
		return fmt.Errorf("reminder: invalid scan_interval %q: %w", c.ScanInterval, err)
	}
	seen := make(map[string]struct{}, len(c.Presets))
	for i := range c.Presets {
		p := &c.Presets[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("reminder: %w", err)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("reminder: duplicate preset name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Location returns the fixed zone the deadlines and the active-hour gate
// are evaluated in.
func (c *ReminderConfig) Location() *time.Location {
	if c.UTCOffset == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffset), c.UTCOffset*3600)
}

// Interval returns the parsed scan interval. Call Validate first; an
// unparseable value falls back to the default.
func (c *ReminderConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.ScanInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Rules maps the configuration into the extractor's rule set.
func (c *ReminderConfig) Rules() extract.Rules {
	presets := make([]extract.Preset, len(c.Presets))
	for i, p := range c.Presets {
		presets[i] = extract.Preset{Name: p.Name, Offsets: p.Offsets, Template: p.Template}
	}
	return extract.Rules{
		ReviewKey:      c.ReviewKey,
		BaseDateKey:    c.BaseDateKey,
		PresetKey:      c.PresetKey,
		ReviewFields:   c.ReviewFields,
		PresetFields:   c.PresetFields,
		ReviewTemplate: c.ReviewTemplate,
		PresetTemplate: c.PresetTemplate,
		InlineTemplate: c.InlineTemplate,
		Presets:        presets,
		Location:       c.Location(),
	}
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./muninn.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Reminder: ReminderConfig{
			UTCOffset:      0,
			ScanInterval:   "5m",
			StartHour:      9,
			EndHour:        22,
			ReviewKey:      "review_date",
			BaseDateKey:    "due_date",
			PresetKey:      "reminder_preset",
			ReviewTemplate: "Review due: {filename}",
			PresetTemplate: "Deadline for {filename} ({offset})",
			InlineTemplate: "Task due: {task} ({filename})",
		},
	}
}
