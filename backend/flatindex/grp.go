package flatindex

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

const grpMagic = "KenSilverman"

// grpNameLimit is the fixed-width name field size: name[12].
const grpNameLimit = 12

func init() {
	archiver.Register(archiver.Backend{
		Name:  "grp",
		Probe: probeGRP,
		Open:  openGRP,
	})
}

func probeGRP(r io.ReadSeeker, forWriting bool) bool {
	if forWriting {
		return false
	}
	buf := make([]byte, len(grpMagic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return false
	}
	return string(buf) == grpMagic
}

func openGRP(path string, forWriting bool) (archiver.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "open %s: %v", path, err)
	}
	entries, err := loadGRPEntries(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	Sort(entries)
	return New(path, f, entries, grpNameLimit)
}

// loadGRPEntries parses the GRP header: magic, u32 count, then
// count * (name[12] + u32 size).
//
// The whole entry table precedes the data, and entry data is stored
// back to back in table order: the first entry's data starts right
// after the table, at 16 + 16*count (12-byte magic + 4-byte count +
// count 16-byte entry headers), and each subsequent entry's data starts
// where the previous entry's data ends.
func loadGRPEntries(r io.Reader) ([]Entry, error) {
	magic := make([]byte, len(grpMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != grpMagic {
		return nil, errs.Wrap(errs.UnsupportedArchive, "bad GRP magic in %v", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read GRP entry count: %v", err)
	}
	entries := make([]Entry, 0, count)
	location := int64(len(grpMagic)) + 4 + int64(count)*16
	for i := uint32(0); i < count; i++ {
		nameBuf := make([]byte, grpNameLimit)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read GRP entry %d name: %v", i, err)
		}
		name := strings.TrimRight(string(nameBuf), " \x00")
		if idx := strings.IndexByte(name, ' '); idx >= 0 {
			name = name[:idx]
		}
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read GRP entry %d size: %v", i, err)
		}
		entries = append(entries, Entry{Name: name, Start: location, Size: int64(size)})
		location += int64(size)
	}
	return entries, nil
}
