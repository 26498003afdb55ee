package ziparchive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophysfs/gophysfs/errs"
)

func writeZipFile(t *testing.T, zw *zip.Writer, name string, data []byte) {
	t.Helper()
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}

func writeZipSymlink(t *testing.T, zw *zip.Writer, name, target string) {
	t.Helper()
	fh := &zip.FileHeader{Name: name, Method: zip.Store}
	fh.SetMode(os.ModeSymlink | 0o777)
	w, err := zw.CreateHeader(fh)
	require.NoError(t, err)
	_, err = w.Write([]byte(target))
	require.NoError(t, err)
}

func buildZip(t *testing.T, build func(zw *zip.Writer)) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	build(zw)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestZipReadAndEnumerate(t *testing.T) {
	path := buildZip(t, func(zw *zip.Writer) {
		writeZipFile(t, zw, "dir/a.txt", []byte("hello"))
		writeZipFile(t, zw, "dir/b.txt", []byte("world"))
	})

	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	var names []string
	require.NoError(t, arc.Enumerate("dir", func(n string) { names = append(names, n) }, false))
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)

	f, err := arc.OpenRead("dir/a.txt")
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

// TestZipSymlinkScenario checks that a Unix symlink entry is detected
// via Stat and that reading through it returns the target's bytes.
func TestZipSymlinkScenario(t *testing.T) {
	path := buildZip(t, func(zw *zip.Writer) {
		writeZipFile(t, zw, "target", []byte("target-bytes"))
		writeZipSymlink(t, zw, "link", "target")
	})

	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	st, err := arc.Stat("link")
	require.NoError(t, err)
	assert.True(t, st.IsSymlink)

	f, err := arc.OpenRead("link")
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, len("target-bytes"))
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "target-bytes", string(buf[:n]))
}

func TestZipSymlinkChainTooLong(t *testing.T) {
	path := buildZip(t, func(zw *zip.Writer) {
		for i := 0; i < maxSymlinkChain+5; i++ {
			name := "l" + string(rune('a'+i%26)) + string(rune('0'+i/26))
			next := "l" + string(rune('a'+(i+1)%26)) + string(rune('0'+(i+1)/26))
			writeZipSymlink(t, zw, name, next)
		}
	})

	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	_, err = arc.resolveSymlink("la0")
	assert.True(t, errs.Is(err, errs.TooManySymlinks))
}

func TestZipDuplicateNotSupported(t *testing.T) {
	path := buildZip(t, func(zw *zip.Writer) {
		writeZipFile(t, zw, "a.txt", []byte("x"))
	})
	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	f, err := arc.OpenRead("a.txt")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Duplicate()
	assert.True(t, errs.Is(err, errs.NotSupported))
}

func TestZipSeekBackwardReopens(t *testing.T) {
	path := buildZip(t, func(zw *zip.Writer) {
		writeZipFile(t, zw, "a.txt", []byte("0123456789"))
	})
	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	f, err := arc.OpenRead("a.txt")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 10)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	require.NoError(t, f.Seek(2))
	buf2 := make([]byte, 3)
	n, err = f.Read(buf2)
	require.NoError(t, err)
	assert.Equal(t, "234", string(buf2[:n]))
}
