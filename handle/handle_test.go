package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

type fakeFile struct{ closed bool }

func (f *fakeFile) Read([]byte) (int, error)             { return 0, nil }
func (f *fakeFile) Write([]byte) (int, error)             { return 0, nil }
func (f *fakeFile) Close() error                          { f.closed = true; return nil }
func (f *fakeFile) Seek(int64) error                      { return nil }
func (f *fakeFile) Tell() (int64, error)                  { return 0, nil }
func (f *fakeFile) Length() (int64, error)                { return 0, nil }
func (f *fakeFile) EOF() bool                             { return true }
func (f *fakeFile) Flush() error                          { return nil }
func (f *fakeFile) Duplicate() (archiver.File, error)     { return &fakeFile{}, nil }

var _ archiver.File = (*fakeFile)(nil)

func TestOpenCloseTracksByOwner(t *testing.T) {
	r := NewRegistry()
	owner := "mount-a"
	f := &fakeFile{}

	h := r.Open(owner, Read, f)
	assert.True(t, r.HasOpenReadHandles(owner))
	assert.False(t, r.HasOpenWriteHandles(owner))

	require.NoError(t, r.Close(h))
	assert.True(t, f.closed)
	assert.False(t, r.HasOpenReadHandles(owner))
}

func TestCloseAlreadyClosedIsNotAHandle(t *testing.T) {
	r := NewRegistry()
	h := r.Open("owner", Write, &fakeFile{})
	require.NoError(t, r.Close(h))
	err := r.Close(h)
	assert.True(t, errs.Is(err, errs.NotAHandle))
}

func TestHasAnyOpenHandles(t *testing.T) {
	r := NewRegistry()
	owner := "mount-b"
	assert.False(t, r.HasAnyOpenHandles(owner))
	h := r.Open(owner, Read, &fakeFile{})
	assert.True(t, r.HasAnyOpenHandles(owner))
	require.NoError(t, r.Close(h))
	assert.False(t, r.HasAnyOpenHandles(owner))
}

func TestCloseAllWriteAndRead(t *testing.T) {
	r := NewRegistry()
	owner := "mount-c"
	w1 := r.Open(owner, Write, &fakeFile{})
	w2 := r.Open(owner, Write, &fakeFile{})
	rd := r.Open(owner, Read, &fakeFile{})

	require.NoError(t, r.CloseAllWrite())
	assert.False(t, r.HasOpenWriteHandles(owner))
	assert.True(t, r.HasOpenReadHandles(owner))

	require.NoError(t, r.CloseAllRead())
	assert.False(t, r.HasAnyOpenHandles(owner))

	_ = w1
	_ = w2
	_ = rd
}

func TestOwnersAreDistinguished(t *testing.T) {
	r := NewRegistry()
	r.Open("owner-1", Read, &fakeFile{})
	assert.True(t, r.HasOpenReadHandles("owner-1"))
	assert.False(t, r.HasOpenReadHandles("owner-2"))
}
