//go:build linux

// ABOUTME: Window activation for Linux desktops.
// ABOUTME: Tries the resolved X11 window first, then a chain of compositor-specific methods.
package desktop

import (
	"fmt"
	"strconv"
	"strings"
)

type activationMethod struct {
	name string
	fn   func(Target) error
}

func activationMethods() []activationMethod {
	return []activationMethod{
		{"xdotool (window id)", activateByWindowID},
		{"activate-window-by-title extension", activateByTitleExtension},
		{"GNOME Shell Eval (by window title)", activateByShellEvalTitle},
		{"GNOME Shell FocusApp", activateByFocusApp},
		{"wlrctl", activateByWlrctl},
		{"kdotool", activateByKdotool},
		{"xdotool (class)", activateByXdotoolClass},
	}
}

// activate walks the method list until one succeeds.
func activate(t Target) error {
	if t.Handle == 0 && t.Title == "" && t.Terminal == "" {
		return ErrStaleWindow
	}

	var failures []string
	for _, m := range activationMethods() {
		err := m.fn(t)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", m.name, err))
	}
	return fmt.Errorf("all activation methods failed: %s", strings.Join(failures, "; "))
}

// searchTerm prefers the resolved window title over the terminal name.
func searchTerm(t Target) string {
	if t.Title != "" {
		return t.Title
	}
	if t.Terminal != "" {
		return profileFor(t.Terminal).searchTerm
	}
	return ""
}

func run(name string, args ...string) (string, error) {
	if _, err := lookPath(name); err != nil {
		return "", fmt.Errorf("%s not installed", name)
	}
	out, err := runCommand(name, args...)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w, output: %s", name, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func activateByWindowID(t Target) error {
	if t.Handle == 0 {
		return fmt.Errorf("no window id")
	}
	_, err := run("xdotool", "windowactivate", strconv.FormatUint(uint64(t.Handle), 10))
	return err
}

// activateByTitleExtension uses the activate-window-by-title GNOME
// extension, which works without unsafe_mode on GNOME 42+.
func activateByTitleExtension(t Target) error {
	term := searchTerm(t)
	if term == "" {
		return fmt.Errorf("no title to search for")
	}
	_, err := run("busctl", "--user", "call",
		"org.gnome.Shell",
		"/de/lucaswerkmeister/ActivateWindowByTitle",
		"de.lucaswerkmeister.ActivateWindowByTitle",
		"activateBySubstring", "s", term,
	)
	return err
}

// activateByShellEvalTitle requires GNOME unsafe_mode.
func activateByShellEvalTitle(t Target) error {
	term := searchTerm(t)
	if term == "" {
		return fmt.Errorf("no title to search for")
	}

	js := fmt.Sprintf(`
		(function() {
			let found = false;
			global.get_window_actors().forEach(function(actor) {
				let win = actor.get_meta_window();
				if (!found && (win.get_title() || '').indexOf('%s') !== -1) {
					win.activate(global.get_current_time());
					found = true;
				}
			});
			return found ? 'activated' : 'no matching window';
		})()
	`, escapeJS(term))

	out, err := run("gdbus", "call",
		"--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		js,
	)
	if err != nil {
		return err
	}
	if strings.Contains(out, "no matching window") {
		return fmt.Errorf("no window with title containing %q", term)
	}
	if !strings.Contains(out, "activated") {
		return fmt.Errorf("Shell.Eval blocked; enable unsafe mode or install activate-window-by-title")
	}
	return nil
}

// activateByFocusApp needs GNOME 45+ and only knows the application.
func activateByFocusApp(t Target) error {
	if t.Terminal == "" {
		return fmt.Errorf("no terminal name")
	}
	_, err := run("gdbus", "call",
		"--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.FocusApp",
		profileFor(t.Terminal).appID,
	)
	return err
}

// activateByWlrctl covers wlroots compositors such as Sway.
func activateByWlrctl(t Target) error {
	if term := searchTerm(t); term != "" {
		if _, err := run("wlrctl", "toplevel", "focus", "title:"+term); err == nil {
			return nil
		}
	}
	if t.Terminal == "" {
		return fmt.Errorf("no terminal name")
	}
	_, err := run("wlrctl", "toplevel", "focus", "app_id:"+profileFor(t.Terminal).wlrAppID)
	return err
}

func activateByKdotool(t Target) error {
	if t.Terminal == "" {
		return fmt.Errorf("no terminal name")
	}
	out, err := run("kdotool", "search", "--class", profileFor(t.Terminal).kdeClass)
	if err != nil || out == "" {
		return fmt.Errorf("no windows found via kdotool")
	}
	_, err = run("kdotool", "windowactivate", strings.Split(out, "\n")[0])
	return err
}

func activateByXdotoolClass(t Target) error {
	if t.Terminal == "" {
		return fmt.Errorf("no terminal name")
	}
	out, err := run("xdotool", "search", "--class", profileFor(t.Terminal).x11Class)
	if err != nil || out == "" {
		return fmt.Errorf("no windows found via xdotool")
	}
	_, err = run("xdotool", "windowactivate", strings.Split(out, "\n")[0])
	return err
}
