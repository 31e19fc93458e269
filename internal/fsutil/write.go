package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, creating parent directories as needed. Readers see either the
// old content or the new content, never a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst atomically, keeping the source file mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return WriteFileAtomic(dst, data, info.Mode().Perm())
}

// CopyTree copies every file under srcBase matching one of the patterns to
// the same relative location under dstBase. It returns the number of files
// copied.
func CopyTree(srcBase, dstBase string, patterns ...string) (int, error) {
	rels, err := Glob(srcBase, patterns...)
	if err != nil {
		return 0, err
	}
	for _, rel := range rels {
		from := filepath.Join(srcBase, filepath.FromSlash(rel))
		to := filepath.Join(dstBase, filepath.FromSlash(rel))
		if err := CopyFile(from, to); err != nil {
			return 0, err
		}
	}
	return len(rels), nil
}

// RemoveTree deletes path and everything below it. A missing path is not an
// error. An empty path or a filesystem root is refused.
func RemoveTree(path string) error {
	if path == "" {
		return errors.New("refusing to remove an empty path")
	}
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) || clean == filepath.VolumeName(clean)+string(filepath.Separator) || clean == "." {
		return fmt.Errorf("refusing to remove %q", path)
	}
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("remove %s: %w", clean, err)
	}
	return nil
}

// RemoveGlob deletes every file under base matching one of the patterns and
// returns how many were removed.
func RemoveGlob(base string, patterns ...string) (int, error) {
	rels, err := Glob(base, patterns...)
	if err != nil {
		return 0, err
	}
	for _, rel := range rels {
		p := filepath.Join(base, filepath.FromSlash(rel))
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return len(rels), nil
}
