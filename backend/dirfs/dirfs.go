// Package dirfs is the directory backend: the only archiver variant
// that accepts for-writing = true. It maps a VFS path onto a
// platform-native path under a real directory and delegates straight
// to os, the same way a local filesystem backend translates remote
// paths into local ones and calls through to the platform filesystem.
package dirfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
	"github.com/gophysfs/gophysfs/logging"
)

var log = logging.Logger("dirfs")

func init() {
	archiver.Register(archiver.Backend{
		Name: "dir",
		Probe: func(r io.ReadSeeker, forWriting bool) bool {
			// The directory backend is never probed against a byte
			// stream — it is selected by the mount caller supplying a
			// directory path directly (see New). Probe always fails so
			// it never shadows a real archive format during automatic
			// probing.
			return false
		},
		Open: func(sourcePath string, forWriting bool) (archiver.Archive, error) {
			return New(sourcePath)
		},
	})
}

// Archive is a directory-backed archiver.Archive.
type Archive struct {
	root string
}

// New opens root as a directory archive. root must already exist and be
// a directory.
func New(root string) (*Archive, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, errs.Wrap(errs.UnsupportedArchive, "stat directory %s: %v", root, err)
	}
	if !fi.IsDir() {
		return nil, errs.Wrap(errs.UnsupportedArchive, "%s is not a directory", root)
	}
	return &Archive{root: root}, nil
}

// native converts a VFS path (forward slashes) into a platform-native
// path rooted at a.root.
func (a *Archive) native(p string) string {
	if p == "" {
		return a.root
	}
	parts := strings.Split(p, "/")
	return filepath.Join(append([]string{a.root}, parts...)...)
}

func (a *Archive) Exists(p string) bool {
	_, err := os.Lstat(a.native(p))
	return err == nil
}

func (a *Archive) Stat(p string) (archiver.Stat, error) {
	fi, err := os.Lstat(a.native(p))
	if os.IsNotExist(err) {
		return archiver.Stat{Found: false}, nil
	}
	if err != nil {
		return archiver.Stat{}, errs.Wrap(errs.IOError, "stat %s: %v", p, err)
	}
	isSymlink := fi.Mode()&os.ModeSymlink != 0
	isDir := fi.IsDir()
	if isSymlink {
		// Resolve once to learn whether the target is a directory,
		// without following further (the symlink policy is enforced by
		// the VFS layer, not this backend).
		if target, err := os.Stat(a.native(p)); err == nil {
			isDir = target.IsDir()
		}
	}
	return archiver.Stat{
		Found:     true,
		IsDir:     isDir,
		IsSymlink: isSymlink,
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
	}, nil
}

func (a *Archive) Enumerate(dir string, emit archiver.EmitFunc, omitSymlinks bool) error {
	entries, err := os.ReadDir(a.native(dir))
	if os.IsNotExist(err) {
		return errs.Wrap(errs.NoSuchPath, "enumerate %s: no such directory", dir)
	}
	if err != nil {
		return errs.Wrap(errs.IOError, "enumerate %s: %v", dir, err)
	}
	for _, e := range entries {
		if omitSymlinks {
			if info, err := e.Info(); err == nil && info.Mode()&os.ModeSymlink != 0 {
				continue
			}
		}
		emit(e.Name())
	}
	return nil
}

func (a *Archive) openWithFlag(p string, flag int) (archiver.File, error) {
	native := a.native(p)
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
			return nil, errs.Wrap(errs.IOError, "mkdir parents for %s: %v", p, err)
		}
	}
	f, err := os.OpenFile(native, flag, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NoSuchFile, "open %s: %v", p, err)
		}
		return nil, errs.Wrap(errs.IOError, "open %s: %v", p, err)
	}
	return &file{f: f, path: native}, nil
}

func (a *Archive) OpenRead(p string) (archiver.File, error) {
	return a.openWithFlag(p, os.O_RDONLY)
}

func (a *Archive) OpenWrite(p string) (archiver.File, error) {
	return a.openWithFlag(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (a *Archive) OpenAppend(p string) (archiver.File, error) {
	return a.openWithFlag(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (a *Archive) Remove(p string) error {
	if err := os.Remove(a.native(p)); err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.NoSuchFile, "remove %s: %v", p, err)
		}
		return errs.Wrap(errs.IOError, "remove %s: %v", p, err)
	}
	return nil
}

// Mkdir creates missing parents; partial success on a deep path leaves
// whichever parents were already created in place.
func (a *Archive) Mkdir(p string) error {
	if err := os.MkdirAll(a.native(p), 0o755); err != nil {
		log.Warn("mkdir failed", "path", p, "err", err)
		return errs.Wrap(errs.IOError, "mkdir %s: %v", p, err)
	}
	return nil
}

// Destroy is a no-op: the directory backend owns no archive-wide
// resources beyond the open files already tracked by File.Close.
func (a *Archive) Destroy() error { return nil }

// file wraps *os.File as an archiver.File.
type file struct {
	f    *os.File
	path string
}

func (f *file) Read(p []byte) (int, error)  { return f.f.Read(p) }
func (f *file) Write(p []byte) (int, error) { return f.f.Write(p) }
func (f *file) Close() error                { return f.f.Close() }

func (f *file) Seek(offset int64) error {
	_, err := f.f.Seek(offset, io.SeekStart)
	if err != nil {
		return errs.Wrap(errs.SeekOutOfRange, "seek %s: %v", f.path, err)
	}
	return nil
}

func (f *file) Tell() (int64, error) {
	return f.f.Seek(0, io.SeekCurrent)
}

func (f *file) Length() (int64, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.IOError, "stat %s: %v", f.path, err)
	}
	return fi.Size(), nil
}

func (f *file) EOF() bool {
	cur, err := f.Tell()
	if err != nil {
		return false
	}
	length, err := f.Length()
	if err != nil {
		return false
	}
	return cur >= length
}

func (f *file) Flush() error { return f.f.Sync() }

// Duplicate opens an independent *os.File on the same path at position
// 0, giving each handle its own platform file descriptor.
func (f *file) Duplicate() (archiver.File, error) {
	nf, err := os.Open(f.path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "duplicate %s: %v", f.path, err)
	}
	return &file{f: nf, path: f.path}, nil
}

var (
	_ archiver.Archive = (*Archive)(nil)
	_ archiver.File    = (*file)(nil)
)
