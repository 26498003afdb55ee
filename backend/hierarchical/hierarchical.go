// Package hierarchical implements the QPAK-style tree backend: it
// parses the same Quake PACK directory as backend/flatindex, but
// additionally splits each entry's name on '/' to build a real
// directory tree, so enumeration and is-directory behave correctly for
// path-style archive names — unlike the flat formats in
// backend/flatindex, which never build a tree at all.
package hierarchical

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/backend/flatindex"
	"github.com/gophysfs/gophysfs/errs"
)

func init() {
	archiver.Register(archiver.Backend{
		Name:  "pak",
		Probe: probe,
		Open:  open,
	})
}

func probe(r io.ReadSeeker, forWriting bool) bool {
	if forWriting {
		return false
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return false
	}
	return string(buf) == "PACK"
}

func open(path string, forWriting bool) (archiver.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "open %s: %v", path, err)
	}
	entries, err := flatindex.LoadPAKEntries(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	flatindex.Sort(entries)
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IOError, "stat %s: %v", path, err)
	}
	root := &node{name: "", isDir: true, children: make(map[string]*node)}
	for i, e := range entries {
		insert(root, strings.Split(e.Name, "/"), i)
	}
	return &Archive{path: path, stream: f, entries: entries, root: root, modTime: fi.ModTime()}, nil
}

// node is a directory-tree node: a directory (named children +
// file-entry children) or a file leaf pointing back into the sorted
// entries array.
type node struct {
	name     string
	isDir    bool
	children map[string]*node // only set when isDir
	entryIdx int              // only meaningful when !isDir
}

// insert walks/creates nested directory nodes for parts, attaching a
// file leaf at the final component.
func insert(root *node, parts []string, entryIdx int) {
	cur := root
	for i, part := range parts {
		last := i == len(parts)-1
		if !last {
			child, ok := cur.children[part]
			if !ok {
				child = &node{name: part, isDir: true, children: make(map[string]*node)}
				cur.children[part] = child
			}
			cur = child
			continue
		}
		cur.children[part] = &node{name: part, isDir: false, entryIdx: entryIdx}
	}
}

func find(root *node, path string) *node {
	if path == "" {
		return root
	}
	cur := root
	for _, part := range strings.Split(path, "/") {
		if !cur.isDir {
			return nil
		}
		next, ok := cur.children[part]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Archive is the hierarchical archiver.Archive. Every path lookup walks
// the tree one component at a time; file leaves index into the sorted
// entries table for their offset and size. The table itself is not
// binary-searched.
type Archive struct {
	path    string
	stream  *os.File
	entries []flatindex.Entry
	root    *node
	modTime time.Time
}

func (a *Archive) Exists(path string) bool {
	return find(a.root, path) != nil
}

func (a *Archive) Stat(path string) (archiver.Stat, error) {
	n := find(a.root, path)
	if n == nil {
		return archiver.Stat{Found: false}, nil
	}
	if n.isDir {
		return archiver.Stat{Found: true, IsDir: true, ModTime: a.modTime}, nil
	}
	return archiver.Stat{Found: true, IsDir: false, Size: a.entries[n.entryIdx].Size, ModTime: a.modTime}, nil
}

// Enumerate lists a directory's immediate children — both subdirectory
// names and file leaves, each once — and reports errs.NotADirectory if
// path resolves to a file.
func (a *Archive) Enumerate(dir string, emit archiver.EmitFunc, omitSymlinks bool) error {
	n := find(a.root, dir)
	if n == nil {
		return errs.Wrap(errs.NoSuchPath, "enumerate %s: no such path", dir)
	}
	if !n.isDir {
		return errs.Wrap(errs.NotADirectory, "enumerate %s: not a directory", dir)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		emit(name)
	}
	return nil
}

func (a *Archive) OpenRead(path string) (archiver.File, error) {
	n := find(a.root, path)
	if n == nil {
		return nil, errs.Wrap(errs.NoSuchFile, "%q not found", path)
	}
	if n.isDir {
		return nil, errs.Wrap(errs.NotAFile, "%q is a directory", path)
	}
	return &file{archive: a, entry: a.entries[n.entryIdx]}, nil
}

func (a *Archive) OpenWrite(string) (archiver.File, error)  { return nil, errs.ReadOnlyArchive }
func (a *Archive) OpenAppend(string) (archiver.File, error) { return nil, errs.ReadOnlyArchive }
func (a *Archive) Remove(string) error                      { return errs.ReadOnlyArchive }
func (a *Archive) Mkdir(string) error                       { return errs.ReadOnlyArchive }

func (a *Archive) Destroy() error {
	if err := a.stream.Close(); err != nil {
		return errs.Wrap(errs.IOError, "close archive %s: %v", a.path, err)
	}
	return nil
}

// file mirrors backend/flatindex's read-only entry file, using ReadAt
// against the shared archive stream so concurrently opened handles
// don't race on a shared seek position.
type file struct {
	archive *Archive
	entry   flatindex.Entry
	curPos  int64
}

func (f *file) Read(p []byte) (int, error) {
	remaining := f.entry.Size - f.curPos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := f.archive.stream.ReadAt(p, f.entry.Start+f.curPos)
	f.curPos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *file) Write([]byte) (int, error) { return 0, errs.ReadOnlyArchive }

// Seek rejects a negative offset or one at-or-beyond entry.Size —
// seeking exactly to the end of the file counts as past-eof, not a
// valid end-of-stream position — except on an empty entry where 0 is
// the only valid offset.
func (f *file) Seek(offset int64) error {
	if offset < 0 || offset > f.entry.Size || (offset == f.entry.Size && f.entry.Size > 0) {
		return errs.Wrap(errs.PastEOF, "seek %d past end of %q", offset, f.entry.Name)
	}
	f.curPos = offset
	return nil
}

func (f *file) Tell() (int64, error)   { return f.curPos, nil }
func (f *file) Length() (int64, error) { return f.entry.Size, nil }
func (f *file) EOF() bool              { return f.curPos >= f.entry.Size }
func (f *file) Flush() error           { return nil }
func (f *file) Close() error           { return nil }
func (f *file) Duplicate() (archiver.File, error) {
	return &file{archive: f.archive, entry: f.entry}, nil
}

var (
	_ archiver.Archive = (*Archive)(nil)
	_ archiver.File    = (*file)(nil)
)
