package flatindex

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

// wadNameLimit is the fixed-width name field size: name[8].
const wadNameLimit = 8

func init() {
	archiver.Register(archiver.Backend{
		Name:  "wad",
		Probe: probeWAD,
		Open:  openWAD,
	})
}

func probeWAD(r io.ReadSeeker, forWriting bool) bool {
	if forWriting {
		return false
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return false
	}
	s := string(buf)
	return s == "IWAD" || s == "PWAD"
}

func openWAD(path string, forWriting bool) (archiver.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "open %s: %v", path, err)
	}
	entries, err := loadWADEntries(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	Sort(entries)
	return New(path, f, entries, wadNameLimit)
}

// loadWADEntries parses the WAD header: magic "IWAD"/"PWAD", u32
// count, u32 dir-offset; at dir-offset, count repetitions of
// (u32 start, u32 size, name[8] NUL-padded).
func loadWADEntries(f *os.File) ([]Entry, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read WAD magic: %v", err)
	}
	s := string(magic)
	if s != "IWAD" && s != "PWAD" {
		return nil, errs.Wrap(errs.UnsupportedArchive, "bad WAD magic %q", s)
	}
	var count, dirOffset uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read WAD count: %v", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &dirOffset); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "read WAD dir offset: %v", err)
	}
	if _, err := f.Seek(int64(dirOffset), io.SeekStart); err != nil {
		return nil, errs.Wrap(errs.Corrupt, "seek WAD directory: %v", err)
	}
	entries := make([]Entry, 0, count)
	nameBuf := make([]byte, wadNameLimit)
	for i := uint32(0); i < count; i++ {
		var start, size uint32
		if err := binary.Read(f, binary.LittleEndian, &start); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read WAD entry %d start: %v", i, err)
		}
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read WAD entry %d size: %v", i, err)
		}
		if _, err := io.ReadFull(f, nameBuf); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read WAD entry %d name: %v", i, err)
		}
		name := strings.TrimRight(string(nameBuf), "\x00")
		entries = append(entries, Entry{Name: name, Start: int64(start), Size: int64(size)})
	}
	return entries, nil
}
