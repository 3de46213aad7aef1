package sound

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/adrg/xdg"
)

// Sources, in preference order.
const (
	SourceUser   = "user"
	SourceSystem = "system"
)

// Info is a playable sound file.
type Info struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Source string `json:"source"`
}

// Dir is a directory to scan for sounds.
type Dir struct {
	Path     string
	Source   string
	MaxDepth int
}

// SearchDirs lists the user sound directory and the platform's system
// sound directory.
func SearchDirs() []Dir {
	dirs := []Dir{{Path: filepath.Join(xdg.DataHome, "agent-toast", "sounds"), Source: SourceUser, MaxDepth: 1}}
	switch runtime.GOOS {
	case "windows":
		root := os.Getenv("SYSTEMROOT")
		if root == "" {
			root = `C:\Windows`
		}
		dirs = append(dirs, Dir{Path: filepath.Join(root, "Media"), Source: SourceSystem, MaxDepth: 1})
	case "linux":
		dirs = append(dirs, Dir{Path: "/usr/share/sounds", Source: SourceSystem, MaxDepth: 5})
	}
	return dirs
}

func playable(ext string) bool {
	return ext == ".wav" || ext == ".mp3"
}

// Discover walks dirs for files the player can decode. User sounds sort
// before system sounds, then by name.
func Discover(dirs []Dir) []Info {
	var result []Info
	for _, d := range dirs {
		result = append(result, scan(d)...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source == SourceUser
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func scan(d Dir) []Info {
	if info, err := os.Stat(d.Path); err != nil || !info.IsDir() {
		return nil
	}
	depth := d.MaxDepth
	if depth <= 0 {
		depth = 1
	}
	base := filepath.Clean(d.Path)
	baseDepth := strings.Count(base, string(os.PathSeparator))

	var result []Info
	_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path != base && strings.Count(path, string(os.PathSeparator))-baseDepth >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !playable(ext) {
			return nil
		}
		result = append(result, Info{
			Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path:   path,
			Format: ext[1:],
			Source: d.Source,
		})
		return nil
	})
	return result
}

// FindByName matches exactly, then case-insensitively, then by
// case-insensitive prefix. User sounds win at every level.
func FindByName(name string, available []Info) (Info, bool) {
	lower := strings.ToLower(name)
	matchers := []func(Info) bool{
		func(s Info) bool { return s.Name == name },
		func(s Info) bool { return strings.ToLower(s.Name) == lower },
		func(s Info) bool { return strings.HasPrefix(strings.ToLower(s.Name), lower) },
	}
	for _, match := range matchers {
		if s, ok := findPreferUser(available, match); ok {
			return s, true
		}
	}
	return Info{}, false
}

func findPreferUser(available []Info, match func(Info) bool) (Info, bool) {
	var fallback *Info
	for i, s := range available {
		if !match(s) {
			continue
		}
		if s.Source == SourceUser {
			return s, true
		}
		if fallback == nil {
			fallback = &available[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Info{}, false
}
