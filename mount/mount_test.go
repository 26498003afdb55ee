package mount

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophysfs/gophysfs/errs"
	"github.com/gophysfs/gophysfs/mount/common"

	_ "github.com/gophysfs/gophysfs/backend/flatindex"
)

func newStack(t *testing.T) *Stack {
	t.Helper()
	return New(common.Options{CacheTimeSeconds: 1})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// buildGRP assembles a minimal single-entry GRP archive for mount-level
// tests that need a read-only archive mount without depending on
// backend/flatindex's unexported test helpers.
func buildGRP(t *testing.T, name, content string) string {
	t.Helper()
	var header bytes.Buffer
	header.WriteString("KenSilverman")
	_ = binary.Write(&header, binary.LittleEndian, uint32(1))
	nameBuf := make([]byte, 12)
	copy(nameBuf, name)
	header.Write(nameBuf)
	_ = binary.Write(&header, binary.LittleEndian, uint32(len(content)))
	full := append(header.Bytes(), []byte(content)...)
	path := filepath.Join(t.TempDir(), "archive.grp")
	require.NoError(t, os.WriteFile(path, full, 0o644))
	return path
}

// TestTwoDirectoryOverlay checks that the same name in two overlaid
// directories resolves to the earlier mount, and that unmounting it
// exposes the later one.
func TestTwoDirectoryOverlay(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFile(t, dir1, "foo.txt", "one")
	writeFile(t, dir2, "foo.txt", "two")

	s := newStack(t)
	require.NoError(t, s.Mount(dir1, "", true))
	require.NoError(t, s.Mount(dir2, "", true))

	real, err := s.GetRealDir("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, dir1, real)

	h, err := s.OpenRead("foo.txt")
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, _ := h.File.Read(buf)
	assert.Equal(t, "one", string(buf[:n]))
	require.NoError(t, s.Close(h))

	require.NoError(t, s.Unmount(dir1))

	real, err = s.GetRealDir("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, dir2, real)

	h, err = s.OpenRead("foo.txt")
	require.NoError(t, err)
	n, _ = h.File.Read(buf)
	assert.Equal(t, "two", string(buf[:n]))
	require.NoError(t, s.Close(h))
}

// TestWriteDirImplicitParents checks that writing a file under a
// nonexistent subdirectory of the write-dir creates the parent
// directory implicitly.
func TestWriteDirImplicitParents(t *testing.T) {
	wdir := t.TempDir()
	s := newStack(t)
	require.NoError(t, s.SetWriteDir(wdir))

	h, err := s.OpenWrite("sub/x.dat")
	require.NoError(t, err)
	n, err := h.File.Write([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, s.Close(h))

	isDir, err := s.IsDirectory("sub")
	require.NoError(t, err)
	assert.True(t, isDir)

	h, err = s.OpenRead("sub/x.dat")
	require.NoError(t, err)
	defer s.Close(h)
	length, err := h.File.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(4), length)
}

// TestUnmountRefusedWhileHandleOpen checks that unmounting an archive
// with an open read handle fails until that handle is closed.
func TestUnmountRefusedWhileHandleOpen(t *testing.T) {
	grpPath := buildGRP(t, "A.TXT", "HELLO")
	s := newStack(t)
	require.NoError(t, s.Mount(grpPath, "", true))

	h, err := s.OpenRead("A.TXT")
	require.NoError(t, err)

	err = s.Unmount(grpPath)
	assert.True(t, errs.Is(err, errs.FilesStillOpen))

	require.NoError(t, s.Close(h))
	require.NoError(t, s.Unmount(grpPath))
}

// TestMountUnmountIdentity checks that mounting then immediately
// unmounting the same source leaves the search path unchanged.
func TestMountUnmountIdentity(t *testing.T) {
	dir := t.TempDir()
	s := newStack(t)
	before := s.GetSearchPath()

	require.NoError(t, s.Mount(dir, "", true))
	require.NoError(t, s.Unmount(dir))

	after := s.GetSearchPath()
	assert.Equal(t, before, after)
}

func TestEnumerateMergesAcrossMountsFirstWins(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFile(t, dir1, "shared.txt", "from-dir1")
	writeFile(t, dir2, "shared.txt", "from-dir2")
	writeFile(t, dir2, "only-in-2.txt", "x")

	s := newStack(t)
	require.NoError(t, s.Mount(dir1, "", true))
	require.NoError(t, s.Mount(dir2, "", true))

	names, err := s.Enumerate("")
	require.NoError(t, err)
	assert.Equal(t, []string{"only-in-2.txt", "shared.txt"}, names)
}

func TestExistsInvariantHoldsAcrossSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "present.txt", "x")
	s := newStack(t)
	require.NoError(t, s.Mount(dir, "", true))

	ok, err := s.Exists("present.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists("absent.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsecurePathRejectedRegardlessOfMounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	s := newStack(t)
	require.NoError(t, s.Mount(dir, "", true))

	_, err := s.Exists("../a.txt")
	assert.True(t, errs.Is(err, errs.InsecurePath))

	_, err = s.OpenRead("a/../../a.txt")
	assert.True(t, errs.Is(err, errs.InsecurePath))
}

func TestOpenWriteWithoutWriteDirFails(t *testing.T) {
	s := newStack(t)
	_, err := s.OpenWrite("x.dat")
	assert.True(t, errs.Is(err, errs.NoWriteDirectory))
}

func TestSetWriteDirRefusedWhileWriteHandleOpen(t *testing.T) {
	w1, w2 := t.TempDir(), t.TempDir()
	s := newStack(t)
	require.NoError(t, s.SetWriteDir(w1))

	h, err := s.OpenWrite("f.dat")
	require.NoError(t, err)

	err = s.SetWriteDir(w2)
	assert.True(t, errs.Is(err, errs.FilesStillOpen))

	require.NoError(t, s.Close(h))
	require.NoError(t, s.SetWriteDir(w2))
}

func TestShutdownClosesWriteHandlesFirst(t *testing.T) {
	wdir := t.TempDir()
	s := newStack(t)
	require.NoError(t, s.SetWriteDir(wdir))
	_, err := s.OpenWrite("f.dat")
	require.NoError(t, err)

	require.NoError(t, s.Shutdown())
	assert.Empty(t, s.GetSearchPath())
}
