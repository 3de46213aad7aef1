package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadSection(t *testing.T) {
	path := writeSettings(t, `{
		"hooks": {"Stop": []},
		"agent_toast": {
			"auto_dismiss_seconds": 15,
			"auto_close_on_focus": false,
			"notification_position": "top_left",
			"notification_monitor": "1",
			"title_display_mode": "window",
			"some_future_key": true
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.AutoDismissSeconds)
	assert.Equal(t, 15*time.Second, cfg.AutoDismiss())
	assert.False(t, cfg.AutoCloseOnFocus)
	assert.Equal(t, TopLeft, cfg.NotificationPosition)
	assert.Equal(t, "1", cfg.NotificationMonitor)
	assert.Equal(t, "window", cfg.TitleDisplayMode)
	// untouched keys keep defaults
	assert.True(t, cfg.NotificationSound)
	assert.Equal(t, MatchEither, cfg.FocusMatch)
}

func TestLoadNumericMonitor(t *testing.T) {
	path := writeSettings(t, `{"agent_toast": {"notification_monitor": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.NotificationMonitor)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeSettings(t, `{"agent_toast": {"auto_dismiss_seconds": 5}}`)
	t.Setenv("AGENT_TOAST_AUTO_DISMISS_SECONDS", "30")
	t.Setenv("AGENT_TOAST_NOTIFICATION_SOUND", "false")
	t.Setenv("AGENT_TOAST_DEBUG", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.AutoDismissSeconds)
	assert.False(t, cfg.NotificationSound)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative dismiss", `{"agent_toast": {"auto_dismiss_seconds": -1}}`},
		{"huge dismiss", `{"agent_toast": {"auto_dismiss_seconds": 99999}}`},
		{"bad corner", `{"agent_toast": {"notification_position": "center"}}`},
		{"bad monitor", `{"agent_toast": {"notification_monitor": "left"}}`},
		{"bad match", `{"agent_toast": {"focus_match": "sometimes"}}`},
		{"bad title mode", `{"agent_toast": {"title_display_mode": "both"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCorruptFile(t *testing.T) {
	_, err := Load(writeSettings(t, `{"agent_toast": `))
	assert.Error(t, err)
}

func TestSettingsPathOverride(t *testing.T) {
	t.Setenv("AGENT_TOAST_SETTINGS", "/tmp/custom.json")
	p, err := SettingsPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.json", p)
}

func TestEnsureSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	require.NoError(t, EnsureSettingsFile(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// existing content is preserved
	require.NoError(t, os.WriteFile(path, []byte(`{"agent_toast":{"auto_dismiss_seconds":9}}`), 0600))
	require.NoError(t, EnsureSettingsFile(path))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.AutoDismissSeconds)
}

func TestWatcherKeepsLastGoodSnapshot(t *testing.T) {
	path := writeSettings(t, `{"agent_toast": {"auto_dismiss_seconds": 7}}`)
	w := NewWatcher(path)
	assert.Equal(t, 7, w.Current().AutoDismissSeconds)

	require.NoError(t, os.WriteFile(path, []byte(`{"agent_toast": {"auto_dismiss_seconds": -3}}`), 0600))
	w.reload()
	assert.Equal(t, 7, w.Current().AutoDismissSeconds)
}

func TestWatcherInvalidInitialFallsBackToDefaults(t *testing.T) {
	w := NewWatcher(writeSettings(t, `not json`))
	assert.Equal(t, *DefaultConfig(), w.Current())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeSettings(t, `{"agent_toast": {"auto_dismiss_seconds": 1}}`)
	w := NewWatcher(path)
	<-w.Reloaded()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, os.WriteFile(path, []byte(`{"agent_toast": {"auto_dismiss_seconds": 42}}`), 0600))
		select {
		case <-w.Reloaded():
			if w.Current().AutoDismissSeconds == 42 {
				return
			}
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("settings were not reloaded")
		}
	}
}
