package flatindex

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

const hogMagic = "DHF"

// hogNameLimit is the fixed-width name field size: name[13].
const hogNameLimit = 13

func init() {
	archiver.Register(archiver.Backend{
		Name:  "hog",
		Probe: probeHOG,
		Open:  openHOG,
	})
}

func probeHOG(r io.ReadSeeker, forWriting bool) bool {
	if forWriting {
		return false
	}
	buf := make([]byte, len(hogMagic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return false
	}
	return string(buf) == hogMagic
}

func openHOG(path string, forWriting bool) (archiver.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "open %s: %v", path, err)
	}
	entries, err := loadHOGEntries(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	Sort(entries)
	return New(path, f, entries, hogNameLimit)
}

// loadHOGEntries walks the archive repeatedly reading name[13] + u32
// size + data[size] until EOF, growing the entry slice dynamically —
// HOG carries no entry count up front, unlike GRP/WAD/PAK. Each
// entry's start is recorded as tell() right after the header, then the
// reader seeks past size to reach the next header.
func loadHOGEntries(f *os.File) ([]Entry, error) {
	magic := make([]byte, len(hogMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != hogMagic {
		return nil, errs.Wrap(errs.UnsupportedArchive, "bad HOG magic")
	}
	var entries []Entry
	nameBuf := make([]byte, hogNameLimit)
	for {
		if _, err := io.ReadFull(f, nameBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, errs.Wrap(errs.Corrupt, "read HOG entry name: %v", err)
		}
		name := strings.TrimRight(string(nameBuf), "\x00")
		var size uint32
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "read HOG entry %q size: %v", name, err)
		}
		start, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, errs.Wrap(errs.IOError, "tell HOG archive: %v", err)
		}
		entries = append(entries, Entry{Name: name, Start: start, Size: int64(size)})
		if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, errs.Wrap(errs.IOError, "seek past HOG entry %q: %v", name, err)
		}
	}
	return entries, nil
}
