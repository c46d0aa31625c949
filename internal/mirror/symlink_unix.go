//go:build linux || darwin

package mirror

import (
	"time"

	"golang.org/x/sys/unix"
)

const canStampSymlinks = true

// stampSymlink sets the modification time of the link itself, not of
// whatever it points at.
func stampSymlink(path string, mtime time.Time) error {
	ts := unix.NsecToTimespec(mtime.UnixNano())
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW)
}
