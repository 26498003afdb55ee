package flatindex

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWAD(t *testing.T, magic string, lumps map[string][]byte, order []string) string {
	t.Helper()
	var payload bytes.Buffer
	type loc struct {
		start, size uint32
	}
	locs := make(map[string]loc, len(order))
	for _, name := range order {
		d := lumps[name]
		locs[name] = loc{start: uint32(12 + payload.Len()), size: uint32(len(d))}
		payload.Write(d)
	}

	var out bytes.Buffer
	out.WriteString(magic)
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(order)))
	dirOffset := uint32(12 + payload.Len())
	_ = binary.Write(&out, binary.LittleEndian, dirOffset)
	out.Write(payload.Bytes())
	for _, name := range order {
		l := locs[name]
		_ = binary.Write(&out, binary.LittleEndian, l.start)
		_ = binary.Write(&out, binary.LittleEndian, l.size)
		nameBuf := make([]byte, wadNameLimit)
		copy(nameBuf, name)
		out.Write(nameBuf)
	}

	path := filepath.Join(t.TempDir(), "test.wad")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestWADRoundTrip(t *testing.T) {
	path := buildWAD(t, "IWAD", map[string][]byte{
		"FLOOR1_1": []byte("stonefloor"),
		"E1M1":     []byte("maplump!"),
	}, []string{"FLOOR1_1", "E1M1"})

	arc, err := openWAD(path, false)
	require.NoError(t, err)
	defer arc.Destroy()

	f, err := arc.OpenRead("E1M1")
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, len("maplump!"))
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "maplump!", string(buf[:n]))
}

func TestWADAcceptsBothMagics(t *testing.T) {
	for _, magic := range []string{"IWAD", "PWAD"} {
		path := buildWAD(t, magic, map[string][]byte{"A": []byte("x")}, []string{"A"})
		arc, err := openWAD(path, false)
		require.NoError(t, err)
		arc.Destroy()
	}
}
