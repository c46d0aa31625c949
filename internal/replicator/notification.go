package replicator

import "github.com/fsnotify/fsnotify"

// Kind is the net effect a raw notification has on a path.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "create"
	case Modified:
		return "modify"
	case Deleted:
		return "delete"
	default:
		return "unknown"
	}
}

// Notification is one raw filesystem notification for an absolute path.
type Notification struct {
	Kind Kind
	Path string
}

// kindOf maps an fsnotify operation to a Kind. A rename fires on the old
// name and the new name produces its own Create, so it counts as a
// delete. Chmod also fires when only the mtime is touched, so it counts
// as a modification; the mirror decides whether anything needs copying.
func kindOf(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return Modified, true
	default:
		return 0, false
	}
}
