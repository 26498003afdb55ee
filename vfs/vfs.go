// Package vfs implements the public API surface: init/deinit, the
// mount/write-dir/search-path operations delegated to package mount,
// the handle-oriented I/O surface delegated to package handle, and a
// per-caller last-error slot.
//
// PhysicsFS keys its error slot by OS thread id; Go has no stable,
// observable goroutine id to key a map by. Session stands in for that
// thread handle: NewSession returns one per logical caller, and every VFS
// method takes a *Session the way the original took an implicit
// current-thread context. This is recorded as an explicit deviation,
// not an oversight.
package vfs

import (
	"io"
	"sync"
	"time"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
	"github.com/gophysfs/gophysfs/handle"
	"github.com/gophysfs/gophysfs/logging"
	"github.com/gophysfs/gophysfs/mount"
	"github.com/gophysfs/gophysfs/mount/common"
)

var log = logging.Logger("vfs")

// LinkedVersion is reported by GetLinkedVersion, mirroring
// PHYSFS_getLinkedVersion's semver-ish triple.
const LinkedVersion = "1.0.0"

// Session is a per-caller handle standing in for PhysicsFS's thread-id
// key into its error-slot table. Sessions are cheap: callers typically
// hold one per goroutine, but nothing requires that — a Session may be
// shared or not, at the caller's discretion.
type Session struct {
	slot errs.Slot
}

// LastError reads and clears this session's last error kind, mirroring
// get-last-error()'s read-and-clear contract. Returns (0, false) if no
// error is pending.
func (s *Session) LastError() (errs.Kind, bool) {
	return s.slot.Clear()
}

// VFS is the public, process-wide facade. It is safe for concurrent
// use by multiple Sessions.
type VFS struct {
	mu       sync.Mutex
	argv0    string
	opt      common.Options
	stack    *mount.Stack
	initDone bool
}

// New constructs an uninitialized VFS with default options. Call Init
// before any other operation.
func New() *VFS {
	return &VFS{opt: common.DefaultOptions()}
}

// NewWithOptions constructs an uninitialized VFS whose mount stack uses
// opt instead of the defaults — e.g. a CacheTimeSeconds sourced from a
// CLI flag, matching the common.Options/pflag wiring cmd/physfsls uses.
func NewWithOptions(opt common.Options) *VFS {
	return &VFS{opt: opt}
}

// NewSession returns a fresh per-caller error-slot handle.
func (v *VFS) NewSession() *Session { return &Session{} }

func (v *VFS) fail(sess *Session, err error) error {
	if k, ok := errs.Of(err); ok {
		sess.slot.Set(k)
	}
	return err
}

// Init brings up the library: argv0 is recorded for
// GetLinkedVersion-adjacent diagnostics only, matching PHYSFS_init's
// argv0 parameter, which PhysicsFS itself uses solely for
// platform-specific base-dir heuristics out of scope here.
func (v *VFS) Init(sess *Session, argv0 string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.initDone {
		return v.fail(sess, errs.AlreadyInitialized)
	}
	v.argv0 = argv0
	v.stack = mount.New(v.opt)
	v.initDone = true
	log.Info("initialized", "argv0", argv0)
	return nil
}

func (v *VFS) ready(sess *Session) (*mount.Stack, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initDone {
		return nil, v.fail(sess, errs.NotInitialized)
	}
	return v.stack, nil
}

// Deinit tears down every mount and handle per the same rules as
// mount.Stack.Shutdown: open write handles are closed first, and it
// refuses if any read handle remains open.
func (v *VFS) Deinit(sess *Session) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Shutdown(); err != nil {
		return v.fail(sess, err)
	}
	v.mu.Lock()
	v.initDone = false
	v.stack = nil
	v.mu.Unlock()
	return nil
}

// Mount adds src to the search path at mount-point.
func (v *VFS) Mount(sess *Session, src, mountPoint string, appendMount bool) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Mount(src, mountPoint, appendMount); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// Unmount removes src from the search path.
func (v *VFS) Unmount(sess *Session, src string) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Unmount(src); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// GetSearchPath returns the mount sources in search order.
func (v *VFS) GetSearchPath(sess *Session) ([]string, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return nil, err
	}
	return stack.GetSearchPath(), nil
}

// GetMountPoint returns the mount point registered for src.
func (v *VFS) GetMountPoint(sess *Session, src string) (string, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return "", err
	}
	mp, ok := stack.GetMountPoint(src)
	if !ok {
		return "", v.fail(sess, errs.NotInSearchPath)
	}
	return mp, nil
}

// SetWriteDir designates path as the singleton write-dir.
func (v *VFS) SetWriteDir(sess *Session, path string) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.SetWriteDir(path); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// GetWriteDir returns the current write-dir, or "" if unset.
func (v *VFS) GetWriteDir(sess *Session) (string, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return "", err
	}
	return stack.GetWriteDir(), nil
}

// PermitSymbolicLinks toggles the symlink policy.
func (v *VFS) PermitSymbolicLinks(sess *Session, permit bool) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	stack.PermitSymbolicLinks(permit)
	return nil
}

// Mkdir creates p (and missing parents) in the write-dir.
func (v *VFS) Mkdir(sess *Session, p string) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Mkdir(p); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// Delete removes p from the write-dir.
func (v *VFS) Delete(sess *Session, p string) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Delete(p); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// Exists reports whether p resolves against any mount.
func (v *VFS) Exists(sess *Session, p string) (bool, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return false, err
	}
	ok, err := stack.Exists(p)
	if err != nil {
		return false, v.fail(sess, err)
	}
	return ok, nil
}

// IsDirectory reports whether p is a directory.
func (v *VFS) IsDirectory(sess *Session, p string) (bool, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return false, err
	}
	ok, err := stack.IsDirectory(p)
	if err != nil {
		return false, v.fail(sess, err)
	}
	return ok, nil
}

// IsSymlink reports whether p is a symlink.
func (v *VFS) IsSymlink(sess *Session, p string) (bool, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return false, err
	}
	ok, err := stack.IsSymlink(p)
	if err != nil {
		return false, v.fail(sess, err)
	}
	return ok, nil
}

// Stat returns p's full metadata.
func (v *VFS) Stat(sess *Session, p string) (archiver.Stat, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return archiver.Stat{}, err
	}
	st, err := stack.Stat(p)
	if err != nil {
		return archiver.Stat{}, v.fail(sess, err)
	}
	return st, nil
}

// GetLastModTime returns p's modification time.
func (v *VFS) GetLastModTime(sess *Session, p string) (time.Time, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return time.Time{}, err
	}
	t, err := stack.GetLastModTime(p)
	if err != nil {
		return time.Time{}, v.fail(sess, err)
	}
	return t, nil
}

// GetRealDir returns the source path of the mount that would satisfy p,
// or "" if none does.
func (v *VFS) GetRealDir(sess *Session, p string) (string, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return "", err
	}
	dir, err := stack.GetRealDir(p)
	if err != nil {
		return "", v.fail(sess, err)
	}
	return dir, nil
}

// EnumerateFiles lists p's direct children, merged across every mount
// that covers it.
func (v *VFS) EnumerateFiles(sess *Session, p string) ([]string, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return nil, err
	}
	names, err := stack.Enumerate(p)
	if err != nil {
		return nil, v.fail(sess, err)
	}
	return names, nil
}

// OpenRead opens p for reading, returning a *handle.Handle wrapped by
// File for the read/write/seek surface.
func (v *VFS) OpenRead(sess *Session, p string) (*File, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return nil, err
	}
	h, err := stack.OpenRead(p)
	if err != nil {
		return nil, v.fail(sess, err)
	}
	return &File{vfs: v, h: h}, nil
}

// OpenWrite truncates-or-creates p in the write-dir for writing.
func (v *VFS) OpenWrite(sess *Session, p string) (*File, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return nil, err
	}
	h, err := stack.OpenWrite(p)
	if err != nil {
		return nil, v.fail(sess, err)
	}
	return &File{vfs: v, h: h}, nil
}

// OpenAppend opens p in the write-dir for appending.
func (v *VFS) OpenAppend(sess *Session, p string) (*File, error) {
	stack, err := v.ready(sess)
	if err != nil {
		return nil, err
	}
	h, err := stack.OpenAppend(p)
	if err != nil {
		return nil, v.fail(sess, err)
	}
	return &File{vfs: v, h: h}, nil
}

// Close closes an open File's handle.
func (v *VFS) Close(sess *Session, f *File) error {
	stack, err := v.ready(sess)
	if err != nil {
		return err
	}
	if err := stack.Close(f.h); err != nil {
		return v.fail(sess, err)
	}
	return nil
}

// GetLinkedVersion reports the library version.
func (v *VFS) GetLinkedVersion() string { return LinkedVersion }

// SupportedArchiveTypes lists every registered backend's name.
func (v *VFS) SupportedArchiveTypes() []string {
	backends := archiver.Registered()
	out := make([]string, len(backends))
	for i, b := range backends {
		out[i] = b.Name
	}
	return out
}

// File is the user-visible handle-oriented file token returned by
// OpenRead/OpenWrite/OpenAppend, wrapping a *handle.Handle with the
// platform read/write/seek surface.
type File struct {
	vfs *VFS
	h   *handle.Handle
}

// Read implements io.Reader over the underlying backend file.
func (f *File) Read(p []byte) (int, error) { return f.h.File.Read(p) }

// Write implements io.Writer over the underlying backend file.
func (f *File) Write(p []byte) (int, error) { return f.h.File.Write(p) }

// Seek moves to an absolute offset — unlike io.Seeker, always
// whence-absolute.
func (f *File) Seek(offset int64) error { return f.h.File.Seek(offset) }

// Tell returns the current offset.
func (f *File) Tell() (int64, error) { return f.h.File.Tell() }

// Length returns the file's total size.
func (f *File) Length() (int64, error) { return f.h.File.Length() }

// EOF reports whether the current position is at or past end of file.
func (f *File) EOF() bool { return f.h.File.EOF() }

// Flush flushes any buffered writes to the backend.
func (f *File) Flush() error { return f.h.File.Flush() }

// SetBuffer is a documented no-op: PhysicsFS's PHYSFS_setBuffer tunes
// an internal read-ahead/write-behind buffer size; Go's bufio layering
// belongs at the caller, not inside the backend file, so this exists
// only to keep the platform I/O surface's method set complete.
func (f *File) SetBuffer(size int) error { return nil }

var _ io.ReadWriteCloser = (*sessionCloser)(nil)

// sessionCloser lets a File satisfy io.Closer without exposing the
// Session threading Close needs elsewhere; it is returned by
// File.WithSession for callers with a single ambient Session.
type sessionCloser struct {
	*File
	sess *Session
}

func (c *sessionCloser) Close() error { return c.vfs.Close(c.sess, c.File) }

// WithSession adapts f to io.ReadWriteCloser bound to sess, for callers
// that want the stdlib io interfaces directly.
func (f *File) WithSession(sess *Session) io.ReadWriteCloser {
	return &sessionCloser{File: f, sess: sess}
}
