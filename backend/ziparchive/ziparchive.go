// Package ziparchive implements a streaming-compressed archive backend
// over stdlib archive/zip, which already exposes exactly what a
// central-directory parser needs: per-entry name, uncompressed size,
// compressed size, and external attributes, plus a way to open a fresh
// decompressing reader positioned at an entry's data.
package ziparchive

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
	"github.com/gophysfs/gophysfs/logging"
)

var log = logging.Logger("ziparchive")

// maxSymlinkChain bounds symlink chain resolution at 20 hops.
const maxSymlinkChain = 20

func init() {
	archiver.Register(archiver.Backend{
		Name:  "zip",
		Probe: probe,
		Open:  open,
	})
}

func probe(r io.ReadSeeker, forWriting bool) bool {
	if forWriting {
		return false
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return false
	}
	zr, err := zip.NewReader(asReaderAt(r), size)
	return err == nil && zr != nil
}

// asReaderAt adapts an io.ReadSeeker to io.ReaderAt for probing; the
// real Open path reopens the file and uses *os.File directly, which is
// already an io.ReaderAt.
type readerAtSeeker struct{ io.ReadSeeker }

func (r readerAtSeeker) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(r, p)
}

func asReaderAt(r io.ReadSeeker) io.ReaderAt { return readerAtSeeker{r} }

// entry is the per-file record: name, uncompressed size, and an
// optional resolved symlink target.
type entry struct {
	name          string
	isDir         bool
	uncompressed  int64
	symlinkTarget string // "" if not a symlink
	zf            *zip.File
}

// Archive is the ziparchive archiver.Archive.
type Archive struct {
	path    string
	osFile  *os.File
	zr      *zip.Reader
	entries map[string]*entry // keyed by name with trailing slash stripped
	names   []string          // sorted for stable enumeration
}

func open(srcPath string, forWriting bool) (archiver.Archive, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "open %s: %v", srcPath, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IOError, "stat %s: %v", srcPath, err)
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.UnsupportedArchive, "not a zip archive: %v", err)
	}

	a := &Archive{path: srcPath, osFile: f, zr: zr, entries: make(map[string]*entry)}
	for _, zf := range zr.File {
		name := strings.TrimSuffix(zf.Name, "/")
		e := &entry{
			name:         name,
			isDir:        strings.HasSuffix(zf.Name, "/"),
			uncompressed: int64(zf.UncompressedSize64),
			zf:           zf,
		}
		if isUnixSymlink(zf) {
			target, err := readAll(zf)
			if err != nil {
				log.Warn("failed reading symlink target", "entry", name, "err", err)
			} else {
				e.symlinkTarget = string(target)
			}
		}
		a.entries[name] = e
		a.names = append(a.names, name)
	}
	return a, nil
}

// isUnixSymlink classifies a ZIP entry as a symlink iff the host is
// Unix-family, the entry has nonzero uncompressed size, and the Unix
// symlink mode bit is set in the external attributes.
func isUnixSymlink(zf *zip.File) bool {
	host := zf.CreatorVersion >> 8
	const (
		hostUnix  = 3
		hostBeOS  = 16
		hostAtari = 5
	)
	if host != hostUnix && host != hostBeOS && host != hostAtari {
		return false
	}
	if zf.UncompressedSize64 == 0 {
		return false
	}
	// The high 16 bits hold the raw Unix st_mode; S_IFLNK is 0xA000
	// within the S_IFMT mask 0xF000.
	mode := zf.ExternalAttrs >> 16
	return mode&0xF000 == 0xA000
}

func readAll(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Archive) lookup(p string) *entry {
	return a.entries[strings.TrimSuffix(p, "/")]
}

// resolveSymlink follows a chain of symlink targets starting at p, up
// to maxSymlinkChain hops. A target that can't be found returns
// errs.NoSuchFile; exceeding the bound returns errs.TooManySymlinks.
// Returns the final non-symlink entry.
func (a *Archive) resolveSymlink(p string) (*entry, error) {
	cur := p
	for i := 0; i < maxSymlinkChain; i++ {
		e := a.lookup(cur)
		if e == nil {
			return nil, errs.Wrap(errs.NoSuchFile, "%q not found", cur)
		}
		if e.symlinkTarget == "" {
			return e, nil
		}
		// Link targets are joined against the link's own directory,
		// without normalizing "." or ".." beyond what path.Join does.
		cur = path.Join(path.Dir(cur), e.symlinkTarget)
	}
	return nil, errs.Wrap(errs.TooManySymlinks, "symlink chain from %q exceeds %d hops", p, maxSymlinkChain)
}

func (a *Archive) Exists(p string) bool {
	_, err := a.resolveSymlink(p)
	return err == nil
}

func (a *Archive) Stat(p string) (archiver.Stat, error) {
	e := a.lookup(p)
	if e == nil {
		return archiver.Stat{Found: false}, nil
	}
	st := archiver.Stat{
		Found:     true,
		IsDir:     e.isDir,
		IsSymlink: e.symlinkTarget != "",
		Size:      e.uncompressed,
	}
	if e.zf != nil {
		st.ModTime = e.zf.Modified
	}
	return st, nil
}

// Enumerate walks the sorted name array, stripping the requested
// prefix and emitting the first remaining path segment, suppressing
// duplicates within one call.
func (a *Archive) Enumerate(dir string, emit archiver.EmitFunc, omitSymlinks bool) error {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := make(map[string]bool)
	for _, name := range a.names {
		if dir != "" && name == dir {
			continue
		}
		if !strings.HasPrefix(name+"/", prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			continue
		}
		seg := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg = rest[:i]
		}
		if seen[seg] {
			continue
		}
		if omitSymlinks {
			if e := a.lookup(prefix + seg); e != nil && e.symlinkTarget != "" {
				continue
			}
		}
		seen[seg] = true
		emit(seg)
	}
	return nil
}

func (a *Archive) OpenRead(p string) (archiver.File, error) {
	e, err := a.resolveSymlink(p)
	if err != nil {
		return nil, err
	}
	if e.isDir {
		return nil, errs.Wrap(errs.NotAFile, "%q is a directory", p)
	}
	rc, err := e.zf.Open()
	if err != nil {
		return nil, errs.Wrap(errs.CompressionError, "open zip entry %q: %v", p, err)
	}
	return &file{entry: e, rc: rc}, nil
}

func (a *Archive) OpenWrite(string) (archiver.File, error)  { return nil, errs.ReadOnlyArchive }
func (a *Archive) OpenAppend(string) (archiver.File, error) { return nil, errs.ReadOnlyArchive }
func (a *Archive) Remove(string) error                      { return errs.ReadOnlyArchive }
func (a *Archive) Mkdir(string) error                       { return errs.ReadOnlyArchive }

func (a *Archive) Destroy() error {
	if err := a.osFile.Close(); err != nil {
		return errs.Wrap(errs.IOError, "close archive %s: %v", a.path, err)
	}
	return nil
}

// file wraps one independently decompressing zip.File reader: every
// open handle on the same entry gets its own inflate state. Seek
// backward resets by reopening the entry and discard-reading forward;
// seek forward just discard-reads from the current position.
type file struct {
	entry  *entry
	rc     io.ReadCloser
	curPos int64
}

func (f *file) Read(p []byte) (int, error) {
	n, err := f.rc.Read(p)
	f.curPos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *file) Write([]byte) (int, error) { return 0, errs.ReadOnlyArchive }

// Seek rejects a negative offset or one at-or-beyond the entry's
// uncompressed size — seeking exactly to the end counts as past-eof,
// not a valid position — except on an empty entry where 0 is the only
// valid offset.
func (f *file) Seek(offset int64) error {
	u := f.entry.uncompressed
	if offset < 0 || offset > u || (offset == u && u > 0) {
		return errs.Wrap(errs.PastEOF, "seek %d past end of %q", offset, f.entry.name)
	}
	if offset < f.curPos {
		if err := f.rc.Close(); err != nil {
			return errs.Wrap(errs.IOError, "reset %q for seek: %v", f.entry.name, err)
		}
		rc, err := f.entry.zf.Open()
		if err != nil {
			return errs.Wrap(errs.CompressionError, "reopen %q for seek: %v", f.entry.name, err)
		}
		f.rc = rc
		f.curPos = 0
	}
	_, err := io.CopyN(io.Discard, f.rc, offset-f.curPos)
	if err != nil && err != io.EOF {
		return errs.Wrap(errs.IOError, "discard-read %q to %d: %v", f.entry.name, offset, err)
	}
	f.curPos = offset
	return nil
}

func (f *file) Tell() (int64, error)   { return f.curPos, nil }
func (f *file) Length() (int64, error) { return f.entry.uncompressed, nil }
func (f *file) EOF() bool              { return f.curPos >= f.entry.uncompressed }
func (f *file) Flush() error           { return nil }
func (f *file) Close() error           { return f.rc.Close() }

// Duplicate is not supported: archive/zip entries don't expose a cheap
// way to clone an in-flight inflate state, so each handle must reopen
// independently via Archive.OpenRead.
func (f *file) Duplicate() (archiver.File, error) {
	return nil, errs.NotSupported
}

var (
	_ archiver.Archive = (*Archive)(nil)
	_ archiver.File    = (*file)(nil)
)
