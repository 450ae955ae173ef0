// Package fsx holds the file plumbing used by the optimizer: working-copy
// naming, plain copies and crash-safe replacement of canonical files.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// WorkingSuffix marks optimizer working copies: <stem>_tmp.png.
const WorkingSuffix = "_tmp.png"

// renameFunc is swapped out by tests to simulate a failed commit.
var renameFunc = os.Rename

// WorkingPath returns the working-copy path for a canonical PNG: a sibling
// in the same directory named after the file's stem.
func WorkingPath(path string) string {
	dir, name := filepath.Split(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, stem+WorkingSuffix)
}

// IsWorkingPath reports whether path is named like a working copy.
func IsWorkingPath(path string) bool {
	return strings.HasSuffix(filepath.Base(path), WorkingSuffix)
}

// IsLeftover reports whether path is a working copy left behind by an
// interrupted run: named like one, with its canonical file next to it.
func IsLeftover(path string) bool {
	if !IsWorkingPath(path) {
		return false
	}
	canonical := strings.TrimSuffix(path, WorkingSuffix) + ".png"
	fi, err := os.Stat(canonical)
	return err == nil && fi.Mode().IsRegular()
}

// Size returns the on-disk size of path.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// ErrWorkingCopyExists is returned by CreateWorkingCopy when dst is already
// on disk.
var ErrWorkingCopyExists = errors.New("working copy already exists")

// CopyFile overwrites dst with the bytes of src. dst is truncated first; it
// is not atomic and is only used for working copies.
func CopyFile(src, dst string) error {
	return copyWith(src, dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

// CreateWorkingCopy copies src to dst, failing with ErrWorkingCopyExists
// instead of touching a dst that is already there.
func CreateWorkingCopy(src, dst string) error {
	err := copyWith(src, dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", dst, ErrWorkingCopyExists)
	}
	return err
}

func copyWith(src, dst string, flag int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, flag, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}

// ReplaceAtomic replaces dst with the bytes of src so that a crash leaves
// either the old or the new dst, never a mix:
//
//   - the bytes go to a temp file in dst's directory (same filesystem)
//   - the temp file keeps dst's permissions and is fsynced
//   - rename swaps it in; the directory is fsynced best-effort
//
// The temp file is removed on every failure path.
func ReplaceAtomic(src, dst string) error {
	dir := filepath.Dir(dst)
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(dst); err == nil {
		perm = fi.Mode().Perm()
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
