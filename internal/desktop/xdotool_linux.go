//go:build linux

package desktop

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runCommand is replaced in tests.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

var lookPath = exec.LookPath

func xdotool(args ...string) (string, error) {
	if _, err := lookPath("xdotool"); err != nil {
		return "", ErrUnsupported
	}
	out, err := runCommand("xdotool", args...)
	if err != nil {
		return "", fmt.Errorf("xdotool %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func parseWindowIDs(out string) []Handle {
	var ids []Handle
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		id, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
		if err == nil && id != 0 {
			ids = append(ids, Handle(id))
		}
	}
	return ids
}

// topLevelWindows asks xdotool for the visible windows of each pid. A nil
// pids slice is not supported on X11.
func topLevelWindows(pids []uint32) ([]Window, error) {
	if pids == nil {
		return nil, ErrUnsupported
	}

	var out []Window
	for _, pid := range pids {
		ids, err := xdotool("search", "--onlyvisible", "--pid", strconv.FormatUint(uint64(pid), 10))
		if errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		if err != nil {
			// xdotool exits non-zero when nothing matched
			continue
		}
		for _, h := range parseWindowIDs(ids) {
			title, _ := xdotool("getwindowname", strconv.FormatUint(uint64(h), 10))
			out = append(out, Window{Handle: h, PID: pid, Title: title, Visible: true})
		}
	}
	return out, nil
}

func foreground() (FocusEvent, error) {
	idStr, err := xdotool("getactivewindow")
	if err != nil {
		return FocusEvent{}, err
	}
	ids := parseWindowIDs(idStr)
	if len(ids) == 0 {
		return FocusEvent{}, nil
	}

	ev := FocusEvent{Window: ids[0]}
	if pidStr, err := xdotool("getwindowpid", strconv.FormatUint(uint64(ids[0]), 10)); err == nil {
		if pid, err := strconv.ParseUint(pidStr, 10, 32); err == nil {
			ev.PID = uint32(pid)
		}
	}
	return ev, nil
}

// monitors reports the X screen as a single primary monitor. Its work area
// is the window manager's _NET_WORKAREA, which leaves out panels and docks,
// or the whole screen when the window manager does not publish one.
func monitors() ([]Monitor, error) {
	geom, err := xdotool("getdisplaygeometry")
	if err != nil {
		return nil, err
	}
	var w, h int
	if _, err := fmt.Sscanf(geom, "%d %d", &w, &h); err != nil {
		return nil, fmt.Errorf("parse display geometry %q: %w", geom, err)
	}

	screen := Rect{W: w, H: h}
	area := screen
	if wa, ok := netWorkArea(); ok && screen.Contains(wa) {
		area = wa
	}
	return []Monitor{{Name: "screen", WorkArea: area, Primary: true, Scale: 1}}, nil
}

// netWorkArea reads the work area of the first desktop from the root window.
func netWorkArea() (Rect, bool) {
	if _, err := lookPath("xprop"); err != nil {
		return Rect{}, false
	}
	out, err := runCommand("xprop", "-root", "-notype", "_NET_WORKAREA")
	if err != nil {
		return Rect{}, false
	}
	return parseWorkArea(string(out))
}

// parseWorkArea parses "_NET_WORKAREA = x, y, w, h[, x, y, w, h...]".
func parseWorkArea(out string) (Rect, bool) {
	_, values, ok := strings.Cut(out, "=")
	if !ok {
		return Rect{}, false
	}
	fields := strings.Split(values, ",")
	if len(fields) < 4 {
		return Rect{}, false
	}
	var n [4]int
	for i := range n {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Rect{}, false
		}
		n[i] = v
	}
	r := Rect{X: n[0], Y: n[1], W: n[2], H: n[3]}
	if r.W <= 0 || r.H <= 0 {
		return Rect{}, false
	}
	return r, true
}

func consoleWindow([]uint32) (Window, bool) {
	return Window{}, false
}
