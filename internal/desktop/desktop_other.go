//go:build !windows && !linux

package desktop

func topLevelWindows([]uint32) ([]Window, error) { return nil, ErrUnsupported }

func foreground() (FocusEvent, error) { return FocusEvent{}, ErrUnsupported }

func activate(Target) error { return ErrUnsupported }

func monitors() ([]Monitor, error) { return nil, ErrUnsupported }

func consoleWindow([]uint32) (Window, bool) { return Window{}, false }
