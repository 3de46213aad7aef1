package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Section is the key inside the shared settings file that holds our config.
const Section = "agent_toast"

// EnvPrefix prefixes environment overrides, e.g. AGENT_TOAST_AUTO_DISMISS_SECONDS.
const EnvPrefix = "AGENT_TOAST_"

// Corners accepted by notification_position.
const (
	TopLeft     = "top_left"
	TopRight    = "top_right"
	BottomLeft  = "bottom_left"
	BottomRight = "bottom_right"
)

// Focus match modes.
const (
	MatchEither  = "either"
	MatchWindow  = "window"
	MatchProcess = "process"
)

// PrimaryMonitor selects the OS primary monitor.
const PrimaryMonitor = "primary"

// Config is the snapshot the server reads each time a notification is created.
type Config struct {
	AutoDismissSeconds   int    `koanf:"auto_dismiss_seconds" json:"auto_dismiss_seconds" validate:"min=0,max=3600"`
	AutoCloseOnFocus     bool   `koanf:"auto_close_on_focus" json:"auto_close_on_focus"`
	SkipWhenFocused      bool   `koanf:"skip_when_focused" json:"skip_when_focused"`
	NotificationPosition string `koanf:"notification_position" json:"notification_position" validate:"oneof=top_left top_right bottom_left bottom_right"`
	NotificationMonitor  string `koanf:"notification_monitor" json:"notification_monitor" validate:"monitor"`
	NotificationSound    bool   `koanf:"notification_sound" json:"notification_sound"`
	SoundFile            string `koanf:"sound_file" json:"sound_file,omitempty"`
	TitleDisplayMode     string `koanf:"title_display_mode" json:"title_display_mode" validate:"oneof=project window"`
	FocusMatch           string `koanf:"focus_match" json:"focus_match" validate:"oneof=either window process"`
	RateLimitPerMinute   int    `koanf:"rate_limit_per_minute" json:"rate_limit_per_minute" validate:"min=0,max=6000"` // 0 disables limiting
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		AutoDismissSeconds:   0,
		AutoCloseOnFocus:     true,
		SkipWhenFocused:      true,
		NotificationPosition: BottomRight,
		NotificationMonitor:  PrimaryMonitor,
		NotificationSound:    true,
		TitleDisplayMode:     "project",
		FocusMatch:           MatchEither,
		RateLimitPerMinute:   120,
	}
}

func defaults() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"auto_dismiss_seconds":  d.AutoDismissSeconds,
		"auto_close_on_focus":   d.AutoCloseOnFocus,
		"skip_when_focused":     d.SkipWhenFocused,
		"notification_position": d.NotificationPosition,
		"notification_monitor":  d.NotificationMonitor,
		"notification_sound":    d.NotificationSound,
		"sound_file":            d.SoundFile,
		"title_display_mode":    d.TitleDisplayMode,
		"focus_match":           d.FocusMatch,
		"rate_limit_per_minute": d.RateLimitPerMinute,
	}
}

// SettingsPath returns the settings file location. AGENT_TOAST_SETTINGS
// overrides the default ~/.claude/settings.json.
func SettingsPath() (string, error) {
	if p := os.Getenv(EnvPrefix + "SETTINGS"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// Load reads the agent_toast section of the settings file at path, layered
// over defaults and under environment overrides. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		k.Set(Section+"."+key, value)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), jsonparser.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal(Section, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps AGENT_TOAST_AUTO_DISMISS_SECONDS to
// agent_toast.auto_dismiss_seconds. Variables that are not config keys are
// dropped.
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if _, ok := defaults()[key]; !ok {
		return ""
	}
	return Section + "." + key
}

var monitorIndex = regexp.MustCompile(`^[0-9]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("monitor", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == PrimaryMonitor || monitorIndex.MatchString(s)
	})
	return v
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// AutoDismiss returns the dismiss delay, zero meaning never.
func (c *Config) AutoDismiss() time.Duration {
	return time.Duration(c.AutoDismissSeconds) * time.Second
}

// EnsureSettingsFile creates the settings file with a default agent_toast
// section when it does not exist yet. Existing files are never touched.
func EnsureSettingsFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]*Config{Section: DefaultConfig()}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "settings-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
