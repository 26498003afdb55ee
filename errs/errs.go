// Package errs defines the error kinds returned across the VFS and the
// per-caller last-error slot that mirrors get-last-error().
package errs

import "fmt"

// Kind is a single discriminant identifying a class of failure. Kind
// satisfies error so call sites can return it directly or wrap it with
// fmt.Errorf("%w", ...) for extra context.
type Kind int

// Error kinds.
const (
	_ Kind = iota
	AlreadyInitialized
	NotInitialized
	InvalidArgument
	OutOfMemory
	FilesStillOpen
	NoWriteDirectory
	NotInSearchPath
	NotSupported
	UnsupportedArchive
	NoSuchFile
	NoSuchPath
	InsecurePath
	SymlinkForbidden
	TooManySymlinks
	NotADirectory
	NotAFile
	PastEOF
	SeekOutOfRange
	ReadOnlyArchive
	IOError
	Corrupt
	DataError
	CompressionError
	FileExists
	CantSetWriteDir
	NotAHandle
)

var names = map[Kind]string{
	AlreadyInitialized: "already-initialized",
	NotInitialized:     "not-initialized",
	InvalidArgument:    "invalid-argument",
	OutOfMemory:        "out-of-memory",
	FilesStillOpen:     "files-still-open",
	NoWriteDirectory:   "no-write-directory",
	NotInSearchPath:    "not-in-search-path",
	NotSupported:       "not-supported",
	UnsupportedArchive: "unsupported-archive",
	NoSuchFile:         "no-such-file",
	NoSuchPath:         "no-such-path",
	InsecurePath:       "insecure-path",
	SymlinkForbidden:   "symlink-forbidden",
	TooManySymlinks:    "too-many-symlinks",
	NotADirectory:      "not-a-directory",
	NotAFile:           "not-a-file",
	PastEOF:            "past-eof",
	SeekOutOfRange:     "seek-out-of-range",
	ReadOnlyArchive:    "read-only-archive",
	IOError:            "io-error",
	Corrupt:            "corrupt",
	DataError:          "data-error",
	CompressionError:   "compression-error",
	FileExists:         "file-exists",
	CantSetWriteDir:    "cant-set-write-dir",
	NotAHandle:         "not-a-handle",
}

// Error implements the error interface.
func (k Kind) Error() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("errs.Kind(%d)", int(k))
}

// Of extracts the Kind carried by err, if any, by unwrapping. Returns
// (0, false) if err is nil or doesn't wrap a Kind.
func Of(err error) (Kind, bool) {
	for err != nil {
		if k, ok := err.(Kind); ok {
			return k, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
// It satisfies the shape expected by errors.Is but is also usable
// directly, the same way callers compare against sentinel values like
// fs.ErrorDirNotFound elsewhere in this codebase.
func Is(err error, k Kind) bool {
	got, ok := Of(err)
	return ok && got == k
}

// Wrap decorates err with additional context while preserving k as the
// discriminant reachable via Of/Is.
func Wrap(k Kind, format string, args ...any) error {
	return &wrapped{kind: k, msg: fmt.Sprintf(format, args...)}
}

type wrapped struct {
	kind Kind
	msg  string
}

func (w *wrapped) Error() string { return w.msg + ": " + w.kind.Error() }
func (w *wrapped) Unwrap() error { return w.kind }
