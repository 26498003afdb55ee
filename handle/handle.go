// Package handle implements the file-handle lifecycle and the two
// intrusive handle lists: every live handle is tracked in exactly one
// of the read or write lists, and mount removal / write-dir
// replacement must check both before proceeding.
package handle

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

// Kind distinguishes which list a Handle belongs to.
type Kind int

const (
	Read Kind = iota
	Write
)

// Handle is the user-visible opaque token: it owns a non-owning
// reference to its originating mount (identified by Owner, typically a
// *mount.Mount — kept as interface{} here to avoid an import cycle
// between mount and handle), the backend file state, and its kind. ID
// exists purely for log/debug correlation, never for lookup.
type Handle struct {
	ID     uuid.UUID
	Owner  any
	Kind   Kind
	File   archiver.File
	mu     sync.Mutex
	closed bool
}

// Registry holds the two lists. All mutation is serialized by the
// registry's own mu, while per-handle I/O (File.Read/Write/Seek) is
// deliberately not locked here.
type Registry struct {
	mu    sync.Mutex
	reads map[*Handle]struct{}
	writs map[*Handle]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		reads: make(map[*Handle]struct{}),
		writs: make(map[*Handle]struct{}),
	}
}

// Open adds a new handle to the appropriate list. The lists are
// unordered sets keyed by *Handle.
func (r *Registry) Open(owner any, kind Kind, f archiver.File) *Handle {
	h := &Handle{ID: uuid.New(), Owner: owner, Kind: kind, File: f}
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == Write {
		r.writs[h] = struct{}{}
	} else {
		r.reads[h] = struct{}{}
	}
	return h
}

// Close unlinks h from its list and closes its backend file state.
// Closing an already-closed handle is a no-op that returns
// errs.NotAHandle.
func (r *Registry) Close(h *Handle) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errs.NotAHandle
	}
	h.closed = true
	h.mu.Unlock()

	r.mu.Lock()
	if h.Kind == Write {
		delete(r.writs, h)
	} else {
		delete(r.reads, h)
	}
	r.mu.Unlock()

	return h.File.Close()
}

// HasOpenReadHandles reports whether any live read handle references
// owner. Checked before mount removal.
func (r *Registry) HasOpenReadHandles(owner any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h := range r.reads {
		if h.Owner == owner {
			return true
		}
	}
	return false
}

// HasOpenWriteHandles reports whether any live write handle references
// owner. Checked before write-dir replacement.
func (r *Registry) HasOpenWriteHandles(owner any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h := range r.writs {
		if h.Owner == owner {
			return true
		}
	}
	return false
}

// HasAnyOpenHandles reports whether owner has either a read or write
// handle outstanding.
func (r *Registry) HasAnyOpenHandles(owner any) bool {
	return r.HasOpenReadHandles(owner) || r.HasOpenWriteHandles(owner)
}

// CloseAllWrite closes every open write handle, for VFS shutdown:
// write handles close first, and a failure here aborts shutdown,
// leaving state usable. It stops at the first error.
func (r *Registry) CloseAllWrite() error {
	r.mu.Lock()
	writes := make([]*Handle, 0, len(r.writs))
	for h := range r.writs {
		writes = append(writes, h)
	}
	r.mu.Unlock()
	for _, h := range writes {
		if err := r.Close(h); err != nil {
			return err
		}
	}
	return nil
}

// CloseAllRead closes every open read handle. It stops at the first
// error. mount.Stack.Shutdown does not call it: shutdown refuses while
// any read handle is open instead of closing it.
func (r *Registry) CloseAllRead() error {
	r.mu.Lock()
	reads := make([]*Handle, 0, len(r.reads))
	for h := range r.reads {
		reads = append(reads, h)
	}
	r.mu.Unlock()
	for _, h := range reads {
		if err := r.Close(h); err != nil {
			return err
		}
	}
	return nil
}
