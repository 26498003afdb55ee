// Package mount implements the mount stack and resolver: an ordered
// list of mounts, the per-request security check, first-match lookup
// for reads, and the designated write-mount for mutating operations.
// The overall shape — an ordered list of upstream-like sources merged
// into one namespace, consulted in order — mirrors a union filesystem's
// search/action/create split, simplified down to two policies:
// first-match search, and a single write-dir.
package mount

import (
	"os"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/backend/dirfs"
	"github.com/gophysfs/gophysfs/errs"
	"github.com/gophysfs/gophysfs/handle"
	"github.com/gophysfs/gophysfs/logging"
	"github.com/gophysfs/gophysfs/mount/common"
	"github.com/gophysfs/gophysfs/vpath"
)

var log = logging.Logger("mount")

// Mount is one entry in the search path. A Mount outlives every handle
// referencing it: removal is refused while any handle is attached,
// enforced by Stack via the handle registry.
type Mount struct {
	Source      string // original user-supplied path
	Point       string // VFS mount point, "" = root
	Archive     archiver.Archive
	BackendName string
}

// Stack is the process-wide mount list plus the singleton write-dir and
// the open-handle registry that gates mutation of either.
type Stack struct {
	mu             sync.Mutex
	mounts         []*Mount
	writeMount     *Mount
	permitSymlinks bool
	handles        *handle.Registry
	opt            common.Options
	enumCache      *gocache.Cache
}

// New constructs an empty Stack. Symlinks are denied by default.
func New(opt common.Options) *Stack {
	return &Stack{
		handles:   handle.NewRegistry(),
		opt:       opt,
		enumCache: gocache.New(time.Duration(opt.CacheTimeSeconds)*time.Second, time.Minute),
	}
}

// PermitSymbolicLinks toggles the symlink policy.
func (s *Stack) PermitSymbolicLinks(permit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permitSymlinks = permit
}

func (s *Stack) snapshot() []*Mount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Mount, len(s.mounts))
	copy(out, s.mounts)
	return out
}

// checker adapts Stack to vpath.SymlinkChecker for path validation.
type checker struct{ s *Stack }

func (c checker) IsSymlink(prefix string) bool {
	for _, m := range c.s.snapshot() {
		rel, ok := vpath.UnderMount(prefix, m.Point)
		if !ok {
			continue
		}
		if !m.Archive.Exists(rel) {
			continue
		}
		st, err := m.Archive.Stat(rel)
		return err == nil && st.IsSymlink
	}
	return false
}

func (s *Stack) validate(vfsPath string) (string, error) {
	s.mu.Lock()
	permit := s.permitSymlinks
	s.mu.Unlock()
	return vpath.Validate(vfsPath, permit, checker{s})
}

// Mount attempts every registered archive backend's probe against src
// until one succeeds (directories are recognized directly, without
// probing, since the directory backend is only ever selected
// explicitly); it then inserts the resulting Mount at list-tail
// (appendMount) or list-head (prepend).
func (s *Stack) Mount(src, mountPoint string, appendMount bool) error {
	mp, err := vpath.ValidateMountPoint(mountPoint)
	if err != nil {
		return err
	}

	fi, statErr := os.Stat(src)
	if statErr != nil {
		return errs.Wrap(errs.InvalidArgument, "stat mount source %s: %v", src, statErr)
	}

	var arc archiver.Archive
	var backendName string
	if fi.IsDir() {
		arc, err = dirfs.New(src)
		backendName = "dir"
	} else {
		var f *os.File
		f, err = os.Open(src)
		if err != nil {
			return errs.Wrap(errs.IOError, "open mount source %s: %v", src, err)
		}
		arc, backendName, err = archiver.ProbeAndOpen(src, f, false)
		f.Close()
	}
	if err != nil {
		return err
	}

	m := &Mount{Source: src, Point: mp, Archive: arc, BackendName: backendName}
	s.mu.Lock()
	if appendMount {
		s.mounts = append(s.mounts, m)
	} else {
		s.mounts = append([]*Mount{m}, s.mounts...)
	}
	s.mu.Unlock()
	s.enumCache.Flush()
	log.Info("mounted", "source", src, "point", mp, "backend", backendName, "append", appendMount)
	return nil
}

// Unmount removes the first mount (scanning in list order) whose source
// matches src exactly (case-sensitive), failing with errs.FilesStillOpen
// if any read handle references its archive.
func (s *Stack) Unmount(src string) error {
	s.mu.Lock()
	var target *Mount
	for _, m := range s.mounts {
		if m.Source == src {
			target = m
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return errs.Wrap(errs.NotInSearchPath, "%q is not mounted", src)
	}
	if s.handles.HasOpenReadHandles(target) {
		return errs.FilesStillOpen
	}
	if err := target.Archive.Destroy(); err != nil {
		return err
	}
	s.mu.Lock()
	for i, m := range s.mounts {
		if m == target {
			s.mounts = append(s.mounts[:i:i], s.mounts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.enumCache.Flush()
	return nil
}

// SetWriteDir replaces the singleton write-mount, failing if any write
// handle is open on the current one.
func (s *Stack) SetWriteDir(path string) error {
	s.mu.Lock()
	current := s.writeMount
	s.mu.Unlock()
	if current != nil && s.handles.HasOpenWriteHandles(current) {
		return errs.FilesStillOpen
	}
	arc, err := dirfs.New(path)
	if err != nil {
		return errs.Wrap(errs.CantSetWriteDir, "%v", err)
	}
	s.mu.Lock()
	s.writeMount = &Mount{Source: path, Archive: arc, BackendName: "dir"}
	s.mu.Unlock()
	return nil
}

// GetWriteDir returns the current write-dir source, or "" if none is set.
func (s *Stack) GetWriteDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeMount == nil {
		return ""
	}
	return s.writeMount.Source
}

// GetSearchPath returns the mount sources in search order.
func (s *Stack) GetSearchPath() []string {
	mounts := s.snapshot()
	out := make([]string, len(mounts))
	for i, m := range mounts {
		out[i] = m.Source
	}
	return out
}

// GetMountPoint returns the mount point of the first mount (in search
// order) whose source equals src.
func (s *Stack) GetMountPoint(src string) (string, bool) {
	for _, m := range s.snapshot() {
		if m.Source == src {
			return m.Point, true
		}
	}
	return "", false
}

// firstMatch finds the first mount (in search order) whose backend
// reports existence of vfsPath's remainder: the first-match semantics
// shared by exists/is-directory/stat/get-last-mod-time/get-real-dir/
// open-read.
func (s *Stack) firstMatch(vfsPath string) (*Mount, string, bool) {
	for _, m := range s.snapshot() {
		rel, ok := vpath.UnderMount(vfsPath, m.Point)
		if !ok {
			continue
		}
		if m.Archive.Exists(rel) {
			return m, rel, true
		}
	}
	return nil, "", false
}

// GetRealDir returns the source path of the first mount satisfying
// vfsPath.
func (s *Stack) GetRealDir(vfsPath string) (string, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return "", err
	}
	m, _, ok := s.firstMatch(clean)
	if !ok {
		return "", nil
	}
	return m.Source, nil
}

// Exists reports first-match existence of vfsPath.
func (s *Stack) Exists(vfsPath string) (bool, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return false, err
	}
	_, _, ok := s.firstMatch(clean)
	return ok, nil
}

// Stat returns the attributes of the first mount satisfying vfsPath: an
// overlaid file shadows deeper ones entirely.
func (s *Stack) Stat(vfsPath string) (archiver.Stat, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return archiver.Stat{}, err
	}
	m, rel, ok := s.firstMatch(clean)
	if !ok {
		return archiver.Stat{Found: false}, nil
	}
	return m.Archive.Stat(rel)
}

// IsDirectory is Stat's IsDir field for vfsPath.
func (s *Stack) IsDirectory(vfsPath string) (bool, error) {
	st, err := s.Stat(vfsPath)
	if err != nil {
		return false, err
	}
	if !st.Found {
		return false, errs.Wrap(errs.NoSuchPath, "%q does not exist", vfsPath)
	}
	return st.IsDir, nil
}

// IsSymlink is Stat's IsSymlink field for vfsPath.
func (s *Stack) IsSymlink(vfsPath string) (bool, error) {
	st, err := s.Stat(vfsPath)
	if err != nil {
		return false, err
	}
	if !st.Found {
		return false, errs.Wrap(errs.NoSuchPath, "%q does not exist", vfsPath)
	}
	return st.IsSymlink, nil
}

// GetLastModTime is Stat's ModTime field for vfsPath.
func (s *Stack) GetLastModTime(vfsPath string) (time.Time, error) {
	st, err := s.Stat(vfsPath)
	if err != nil {
		return time.Time{}, err
	}
	if !st.Found {
		return time.Time{}, errs.Wrap(errs.NoSuchPath, "%q does not exist", vfsPath)
	}
	return st.ModTime, nil
}

// Enumerate walks every mount in search order, merges each mount's
// direct children of vfsPath with first-occurrence-wins de-duplication,
// and returns an ordered, non-nil slice. A mount that doesn't recognize
// the path at all contributes nothing, the same as one that recognizes
// it as an empty directory: enumerating a path no mount covers yields
// an empty list rather than an error. Answers are memoized for
// opt.CacheTimeSeconds, mirroring a union filesystem's cache_time
// option, and are invalidated on any mount-list or write-dir content
// change.
func (s *Stack) Enumerate(vfsPath string) ([]string, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.enumCache.Get(clean); ok {
		return append([]string{}, cached.([]string)...), nil
	}

	seen := make(map[string]bool)
	order := []string{}
	omitSymlinks := !s.permitSymlinksSnapshot()
	for _, m := range s.snapshot() {
		rel, ok := vpath.UnderMount(clean, m.Point)
		if !ok {
			continue
		}
		err := m.Archive.Enumerate(rel, func(name string) {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}, omitSymlinks)
		if err == nil {
			continue
		}
		if errs.Is(err, errs.NoSuchPath) || errs.Is(err, errs.NotADirectory) {
			continue
		}
		return nil, err
	}
	sort.Strings(order) // stable, reproducible ordering across merges
	s.enumCache.SetDefault(clean, order)
	return order, nil
}

func (s *Stack) permitSymlinksSnapshot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permitSymlinks
}

// OpenRead opens a read handle on the first mount satisfying vfsPath.
func (s *Stack) OpenRead(vfsPath string) (*handle.Handle, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return nil, err
	}
	m, rel, ok := s.firstMatch(clean)
	if !ok {
		return nil, errs.Wrap(errs.NoSuchFile, "%q not found", vfsPath)
	}
	f, err := m.Archive.OpenRead(rel)
	if err != nil {
		return nil, err
	}
	return s.handles.Open(m, handle.Read, f), nil
}

// writeMountRel validates vfsPath and resolves it against the singleton
// write-dir, failing with errs.NoWriteDirectory if none is set:
// open-write/open-append/mkdir/delete apply only to the designated
// write-mount.
func (s *Stack) writeMountRel(vfsPath string) (*Mount, string, error) {
	clean, err := s.validate(vfsPath)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	wm := s.writeMount
	s.mu.Unlock()
	if wm == nil {
		return nil, "", errs.NoWriteDirectory
	}
	return wm, clean, nil
}

// OpenWrite truncates-or-creates vfsPath in the write-dir.
func (s *Stack) OpenWrite(vfsPath string) (*handle.Handle, error) {
	wm, rel, err := s.writeMountRel(vfsPath)
	if err != nil {
		return nil, err
	}
	f, err := wm.Archive.OpenWrite(rel)
	if err != nil {
		return nil, err
	}
	s.enumCache.Flush()
	return s.handles.Open(wm, handle.Write, f), nil
}

// OpenAppend opens vfsPath in the write-dir for appending.
func (s *Stack) OpenAppend(vfsPath string) (*handle.Handle, error) {
	wm, rel, err := s.writeMountRel(vfsPath)
	if err != nil {
		return nil, err
	}
	f, err := wm.Archive.OpenAppend(rel)
	if err != nil {
		return nil, err
	}
	s.enumCache.Flush()
	return s.handles.Open(wm, handle.Write, f), nil
}

// Mkdir creates vfsPath (and any missing parents) in the write-dir.
func (s *Stack) Mkdir(vfsPath string) error {
	wm, rel, err := s.writeMountRel(vfsPath)
	if err != nil {
		return err
	}
	if err := wm.Archive.Mkdir(rel); err != nil {
		return err
	}
	s.enumCache.Flush()
	return nil
}

// Delete removes vfsPath from the write-dir.
func (s *Stack) Delete(vfsPath string) error {
	wm, rel, err := s.writeMountRel(vfsPath)
	if err != nil {
		return err
	}
	if err := wm.Archive.Remove(rel); err != nil {
		return err
	}
	s.enumCache.Flush()
	return nil
}

// Close closes a previously opened handle.
func (s *Stack) Close(h *handle.Handle) error {
	return s.handles.Close(h)
}

// Shutdown closes all write handles first (aborting and leaving state
// usable on failure), then tears down every mount in the search path,
// refusing any mount that still has an open read handle.
func (s *Stack) Shutdown() error {
	if err := s.handles.CloseAllWrite(); err != nil {
		return err
	}
	mounts := s.snapshot()
	for _, m := range mounts {
		if s.handles.HasOpenReadHandles(m) {
			return errs.FilesStillOpen
		}
	}
	for _, m := range mounts {
		if err := m.Archive.Destroy(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.mounts = nil
	s.writeMount = nil
	s.mu.Unlock()
	s.enumCache.Flush()
	return nil
}
