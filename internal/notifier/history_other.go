//go:build !windows

package notifier

// clearAppHistory is a no-op where WinRT toasts do not exist.
func clearAppHistory(string) error { return nil }
