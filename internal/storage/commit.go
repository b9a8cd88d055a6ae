package storage

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/starford/folio/internal/apperr"
)

// commitGap is how far ahead of the modification time Touch sets the access
// time. Adding, replacing or removing a file moves only the modification
// time, so a directory whose times sit exactly commitGap apart was last
// changed by a commit.
const commitGap = time.Second

// Committed returns the modification time of a type directory and whether it
// was last written by Touch. Where access times are not available every
// modification counts as committed.
func Committed(info fs.FileInfo) (time.Time, bool) {
	mod := info.ModTime()
	atime, ok := accessTime(info)
	if !ok {
		return mod, true
	}
	return mod, atime.Sub(mod) == commitGap
}

// Stamp writes the commit signal on dir: the modification time moves to now,
// or just past its current value when the clock has not advanced, and the
// access time is set commitGap ahead of it. A missing dir fails with an error
// matching fs.ErrNotExist.
func Stamp(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return &apperr.IOError{Op: "touch", Path: dir, Err: err}
	}
	next := time.Now()
	if floor := info.ModTime().Add(touchStep); next.Before(floor) {
		next = floor
	}
	if err := os.Chtimes(dir, next.Add(commitGap), next); err != nil {
		return &apperr.IOError{Op: "touch", Path: dir, Err: err}
	}
	return nil
}

// CommitTime stats dir and reports it as Committed does.
func CommitTime(dir string) (time.Time, bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, false, err
	}
	mod, ok := Committed(info)
	return mod, ok, nil
}
