package hierarchical

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophysfs/gophysfs/errs"
)

func buildPAK(t *testing.T, entries map[string][]byte, order []string) string {
	t.Helper()
	var payload bytes.Buffer
	type loc struct{ offset, size uint32 }
	locs := make(map[string]loc, len(order))
	for _, name := range order {
		d := entries[name]
		locs[name] = loc{offset: uint32(12 + payload.Len()), size: uint32(len(d))}
		payload.Write(d)
	}

	var out bytes.Buffer
	out.WriteString("PACK")
	dirOffset := uint32(12 + payload.Len())
	dirLength := uint32(len(order) * 64)
	_ = binary.Write(&out, binary.LittleEndian, dirOffset)
	_ = binary.Write(&out, binary.LittleEndian, dirLength)
	out.Write(payload.Bytes())
	for _, name := range order {
		nameBuf := make([]byte, 56)
		copy(nameBuf, name)
		out.Write(nameBuf)
		l := locs[name]
		_ = binary.Write(&out, binary.LittleEndian, l.offset)
		_ = binary.Write(&out, binary.LittleEndian, l.size)
	}

	path := filepath.Join(t.TempDir(), "test.pak")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

// TestPAKScenario builds a PAK with slash-separated entry names and
// checks that the tree backend turns them into real subdirectories.
func TestPAKScenario(t *testing.T) {
	path := buildPAK(t, map[string][]byte{
		"gfx/a.png": []byte("AAAA"),
		"gfx/b.png": []byte("BBBB"),
		"snd/x.wav": []byte("CCCC"),
	}, []string{"gfx/a.png", "gfx/b.png", "snd/x.wav"})

	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	var root []string
	require.NoError(t, arc.Enumerate("", func(n string) { root = append(root, n) }, false))
	assert.Equal(t, []string{"gfx", "snd"}, root)

	var gfx []string
	require.NoError(t, arc.Enumerate("gfx", func(n string) { gfx = append(gfx, n) }, false))
	assert.Equal(t, []string{"a.png", "b.png"}, gfx)

	st, err := arc.Stat("gfx")
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	st, err = arc.Stat("gfx/a.png")
	require.NoError(t, err)
	assert.False(t, st.IsDir)
}

func TestEnumerateFileIsNotADirectory(t *testing.T) {
	path := buildPAK(t, map[string][]byte{"a.txt": []byte("x")}, []string{"a.txt"})
	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	err = arc.Enumerate("a.txt", func(string) {}, false)
	assert.True(t, errs.Is(err, errs.NotADirectory))
}

func TestEnumerateMissingPath(t *testing.T) {
	path := buildPAK(t, map[string][]byte{"a.txt": []byte("x")}, []string{"a.txt"})
	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	err = arc.Enumerate("nope", func(string) {}, false)
	assert.True(t, errs.Is(err, errs.NoSuchPath))
}

func TestOpenReadRejectsDirectory(t *testing.T) {
	path := buildPAK(t, map[string][]byte{"gfx/a.png": []byte("x")}, []string{"gfx/a.png"})
	arc, err := open(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	_, err = arc.OpenRead("gfx")
	assert.True(t, errs.Is(err, errs.NotAFile))
}
