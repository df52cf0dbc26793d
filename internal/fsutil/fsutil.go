package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// FileSystem is the slice of filesystem behaviour the conversion pipeline
// depends on. Tests substitute implementations that fail on demand.
type FileSystem interface {
	Exists(path string) (bool, error)
	Remove(path string) error
	ReplaceFile(src, dst string) error
	MoveFile(src, dst string) error
}

// OS implements FileSystem against the local disk.
type OS struct{}

var _ FileSystem = OS{}

// Exists reports whether path names a regular file. A missing path is not an error.
func (OS) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Remove deletes path, treating an already missing file as success.
func (OS) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReplaceFile flushes src to stable storage and renames it over dst. Both
// paths must be on the same filesystem. dst is untouched if any step before
// the rename fails.
func (OS) ReplaceFile(src, dst string) error {
	if err := syncFile(src); err != nil {
		return fmt.Errorf("sync %s: %w", src, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", src, err)
	}
	return syncDir(filepath.Dir(dst))
}

// MoveFile renames src to dst, falling back to an atomic copy when the paths
// live on different filesystems.
func (o OS) MoveFile(src, dst string) error {
	err := o.ReplaceFile(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}
	if err := CopyFileAtomic(src, dst); err != nil {
		return err
	}
	return o.Remove(src)
}

// CopyFileAtomic streams src into a pending file beside dst and atomically
// replaces dst once the copy is durable.
func CopyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(info.Mode().Perm()))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	written, err := io.Copy(pending, in)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if written != info.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	return pending.CloseAtomicallyReplace()
}

// TempSibling returns a hidden, unique path in the directory of target that
// keeps target's extension, so extension-sniffing encoders pick the same
// container format.
func TempSibling(target string) string {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	return filepath.Join(dir, ".mediaconv-"+uuid.NewString()[:8]+"-"+base)
}

// IsTempSibling reports whether name looks like a TempSibling leftover.
func IsTempSibling(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".mediaconv-")
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
