// Package store is the local SQLite task service: tasks, timers and per-vault UI state live in
// one database file under the store directory.
package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"planboard/internal/service"
)

const (
	DirName        = ".planboard"
	sqliteFileName = "planboard.sqlite"
)

var _ service.TaskService = Store{}

type Store struct {
	Dir string

	// Log receives one line per operation; nil discards.
	Log *slog.Logger
	// Loc is the zone day boundaries are computed in; nil means time.Local.
	Loc *time.Location
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DiscoverDir walks up from start looking for a .planboard directory.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, DirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DefaultDir is the nearest .planboard above the working directory, or ./.planboard.
func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, DirName), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s Store) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.Local
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
