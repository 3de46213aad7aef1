package sound

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover(t *testing.T) {
	user := t.TempDir()
	system := t.TempDir()
	touch(t, filepath.Join(user, "Chime.mp3"))
	touch(t, filepath.Join(user, "notes.txt"))
	touch(t, filepath.Join(system, "alarm.wav"))
	touch(t, filepath.Join(system, "freedesktop", "stereo", "bell.WAV"))
	touch(t, filepath.Join(system, "freedesktop", "stereo", "complete.ogg"))
	touch(t, filepath.Join(system, "a", "b", "c", "too-deep.wav"))

	got := Discover([]Dir{
		{Path: system, Source: SourceSystem, MaxDepth: 3},
		{Path: user, Source: SourceUser, MaxDepth: 1},
		{Path: filepath.Join(user, "missing"), Source: SourceUser},
	})

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Chime", "alarm", "bell"}, names)
	assert.Equal(t, "mp3", got[0].Format)
	assert.Equal(t, SourceUser, got[0].Source)
	assert.Equal(t, "wav", got[2].Format)
}

func TestFindByName(t *testing.T) {
	available := []Info{
		{Name: "Chime", Source: SourceSystem, Path: "/sys/Chime.wav"},
		{Name: "chime", Source: SourceUser, Path: "/user/chime.mp3"},
		{Name: "Windows Ding", Source: SourceSystem, Path: "/sys/ding.wav"},
	}

	s, ok := FindByName("Chime", available)
	require.True(t, ok)
	assert.Equal(t, "/sys/Chime.wav", s.Path)

	s, ok = FindByName("CHIME", available)
	require.True(t, ok)
	assert.Equal(t, "/user/chime.mp3", s.Path)

	s, ok = FindByName("windows", available)
	require.True(t, ok)
	assert.Equal(t, "Windows Ding", s.Name)

	_, ok = FindByName("nope", available)
	assert.False(t, ok)
}

func TestSearchDirsIncludesUserDir(t *testing.T) {
	dirs := SearchDirs()
	require.NotEmpty(t, dirs)
	assert.Equal(t, SourceUser, dirs[0].Source)
	assert.Equal(t, "sounds", filepath.Base(dirs[0].Path))
}
