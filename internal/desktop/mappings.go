package desktop

import (
	"os"
	"strings"
)

// terminalProfile holds the identifiers different window managers use for
// one terminal application.
type terminalProfile struct {
	appID      string // .desktop id for GNOME Shell
	wlrAppID   string // wlroots app_id
	kdeClass   string // kdotool class
	x11Class   string // WM_CLASS for xdotool
	searchTerm string // title substring
}

var terminalProfiles = map[string]terminalProfile{
	"code":           {"code.desktop", "code", "code", "Code", "Visual Studio Code"},
	"gnome-terminal": {"org.gnome.Terminal.desktop", "org.gnome.Terminal", "gnome-terminal-server", "Gnome-terminal", "Terminal"},
	"konsole":        {"org.kde.konsole.desktop", "org.kde.konsole", "konsole", "konsole", "Konsole"},
	"alacritty":      {"Alacritty.desktop", "Alacritty", "Alacritty", "Alacritty", "Alacritty"},
	"kitty":          {"kitty.desktop", "kitty", "kitty", "kitty", "kitty"},
	"wezterm":        {"org.wezfurlong.wezterm.desktop", "org.wezfurlong.wezterm", "org.wezfurlong.wezterm", "org.wezfurlong.wezterm", "WezTerm"},
	"tilix":          {"com.gexperts.Tilix.desktop", "com.gexperts.Tilix", "tilix", "Tilix", "Tilix"},
	"terminator":     {"terminator.desktop", "terminator", "terminator", "Terminator", "Terminator"},
	"xfce4-terminal": {"xfce4-terminal.desktop", "xfce4-terminal", "xfce4-terminal", "Xfce4-terminal", "Terminal"},
	"mate-terminal":  {"mate-terminal.desktop", "mate-terminal", "mate-terminal", "Mate-terminal", "Terminal"},
}

var terminalAliases = map[string]string{
	"vscode":             "code",
	"visual studio code": "code",
}

func profileFor(terminal string) terminalProfile {
	key := strings.ToLower(terminal)
	if alias, ok := terminalAliases[key]; ok {
		key = alias
	}
	if p, ok := terminalProfiles[key]; ok {
		return p
	}
	return terminalProfile{
		appID:      key + ".desktop",
		wlrAppID:   key,
		kdeClass:   key,
		x11Class:   terminal,
		searchTerm: terminal,
	}
}

// escapeJS escapes a string for a single-quoted JavaScript literal passed to
// GNOME Shell.Eval.
func escapeJS(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\x00", `\x00`,
		"\u2028", `\u2028`,
		"\u2029", `\u2029`,
	)
	return r.Replace(s)
}

// TerminalName guesses the hosting terminal from the environment. The CLI
// records it so the server can fall back to app-level activation.
func TerminalName() string {
	if termProg := os.Getenv("TERM_PROGRAM"); termProg != "" {
		return termProg
	}
	if os.Getenv("WT_SESSION") != "" {
		return "WindowsTerminal"
	}
	if os.Getenv("VSCODE_INJECTION") != "" || os.Getenv("VSCODE_GIT_IPC_HANDLE") != "" {
		return "Code"
	}
	return "Terminal"
}
