//go:build windows

package notifier

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

const clearHistoryScript = `[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.UI.Notifications.ToastNotificationManager]::History.Clear('%s')`

// clearAppHistory removes every toast of appID from the screen and the
// Action Center.
func clearAppHistory(appID string) error {
	script := fmt.Sprintf(clearHistoryScript, strings.ReplaceAll(appID, "'", "''"))
	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("powershell: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
