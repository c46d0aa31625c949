package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	tserrors "github.com/alexjbarnes/treesync/internal/errors"
)

// CheckRoots rejects a source and target that are the same directory or
// nested in either direction. Syncing a tree into its own ancestor purges
// the source as an extraneous target entry. Both paths are compared after
// resolving symlinks; a target that does not exist yet is resolved through
// its nearest existing ancestor.
func CheckRoots(source, target string) error {
	src, err := realPath(source)
	if err != nil {
		return fmt.Errorf("resolving source %s: %w", source, err)
	}

	dst, err := realPath(target)
	if err != nil {
		return fmt.Errorf("resolving target %s: %w", target, err)
	}

	if src == dst {
		return fmt.Errorf("%w: source and target must differ: %s", tserrors.ErrRootsOverlap, src)
	}

	if within(src, dst) {
		return fmt.Errorf("%w: target %s must not be inside source %s", tserrors.ErrRootsOverlap, dst, src)
	}

	if within(dst, src) {
		return fmt.Errorf("%w: source %s must not be inside target %s", tserrors.ErrRootsOverlap, src, dst)
	}

	return nil
}

// within reports whether path lies strictly beneath root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && filepath.IsLocal(rel)
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}

	resolvedParent, err := realPath(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(abs)), nil
}
