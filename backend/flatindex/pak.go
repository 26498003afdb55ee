package flatindex

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/gophysfs/gophysfs/errs"
)

// PAKNameLimit is the fixed-width name field size for Quake PAK
// entries: name[56]. Exported for the hierarchical backend, which
// parses the same directory format before building its tree.
const PAKNameLimit = 56

const pakEntrySize = 64 // name[56] + u32 offset + u32 size

// LoadPAKEntries parses a Quake "PACK" archive's directory: magic
// "PACK", u32 dir-offset, u32 dir-length; at dir-offset,
// (dir-length / 64) repetitions of (name[56], u32 offset, u32 size).
//
// PAK is registered only under the hierarchical backend, since its
// entry names are commonly path-style ("gfx/wall.png"); this function
// is shared so the hierarchical package can build its sorted lookup
// table from the identical parse used here.
func LoadPAKEntries(f *os.File) ([]Entry, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != "PACK" {
		return nil, errs.Wrap(errs.UnsupportedArchive, "bad PAK magic")
	}
	var dirOffset, dirLength uint32
	if err := binary.Read(f, binary.LittleEndian, &dirOffset); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read PAK dir offset: %v", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &dirLength); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read PAK dir length: %v", err)
	}
	if _, err := f.Seek(int64(dirOffset), io.SeekStart); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "seek PAK directory: %v", err)
	}
	count := dirLength / pakEntrySize
	entries := make([]Entry, 0, count)
	nameBuf := make([]byte, PAKNameLimit)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, nameBuf); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read PAK entry %d name: %v", i, err)
		}
		name := strings.TrimRight(string(nameBuf), "\x00")
		var offset, size uint32
		if err := binary.Read(f, binary.LittleEndian, &offset); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read PAK entry %d offset: %v", i, err)
		}
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read PAK entry %d size: %v", i, err)
		}
		entries = append(entries, Entry{Name: name, Start: int64(offset), Size: int64(size)})
	}
	return entries, nil
}
