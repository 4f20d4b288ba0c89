// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// linkNoClobber creates dst as a hard link to src. It fails with
// fs.ErrExist if dst already exists.
func linkNoClobber(src, dst string) error {
	return os.Link(src, dst)
}

// copyToTemp copies src into a hidden temporary file in dir and carries over
// the permission bits and modification time. The caller owns the returned
// path.
func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrap(err, "opening source")
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return "", errors.Wrap(err, "reading source")
	}

	tmp, err := os.CreateTemp(dir, ".organize-*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, in)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.CombineErrors(copyErr, errors.CombineErrors(syncErr, closeErr)); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "writing temp file")
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "setting permissions")
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "preserving modification time")
	}
	return tmpPath, nil
}

// placeCopy puts a copy of src at dst without replacing an existing file.
// The copy lands in a temp file first so dst never appears half written.
func placeCopy(src, dst string) error {
	tmp, err := copyToTemp(src, filepath.Dir(dst))
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	err = linkNoClobber(tmp, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return errors.Wrapf(ErrDestinationConflict, "%s", dst)
	}

	// No hard links on this filesystem. Fall back to an exclusive rename
	// check; the per-destination lock keeps other organizers out.
	if _, statErr := os.Lstat(dst); statErr == nil {
		return errors.Wrapf(ErrDestinationConflict, "%s", dst)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}

// place moves or copies src to dst. Moves link then unlink on the same
// device and fall back to copy then remove across devices.
func place(src, dst string, move bool) error {
	if !move {
		return placeCopy(src, dst)
	}
	err := linkNoClobber(src, dst)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return errors.Wrapf(ErrDestinationConflict, "%s", dst)
	default:
		if err := placeCopy(src, dst); err != nil {
			return err
		}
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "removing source after move")
	}
	return nil
}
