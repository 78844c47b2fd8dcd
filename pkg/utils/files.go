package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// renameFunc is swapped in tests to simulate a failing rename.
var renameFunc = os.Rename

// WriteFileAtomic writes data to dir/name through a temp file in the same directory
// followed by a rename, so the target is either fully written or untouched.
// An existing file with the same name is replaced. Errors wrap ErrFilesystem.
func WriteFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", ErrFilesystem, dir, err)
	}
	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for '%s': %w", ErrFilesystem, dst, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // No-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", ErrFilesystem, tmpName, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("%w: chmod '%s': %w", ErrFilesystem, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing '%s': %w", ErrFilesystem, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing '%s': %w", ErrFilesystem, tmpName, err)
	}
	if err := renameFunc(tmpName, dst); err != nil {
		return fmt.Errorf("%w: renaming '%s' -> '%s': %w", ErrFilesystem, tmpName, dst, err)
	}
	return nil
}
