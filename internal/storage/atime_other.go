//go:build !linux && !openbsd && !darwin && !freebsd && !netbsd

package storage

import (
	"io/fs"
	"time"
)

func accessTime(fs.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
