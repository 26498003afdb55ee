package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindError(t *testing.T) {
	assert.Equal(t, "no-such-file", NoSuchFile.Error())
	assert.Contains(t, Kind(9999).Error(), "errs.Kind(9999)")
}

func TestWrapOf(t *testing.T) {
	err := Wrap(NoSuchPath, "enumerate %s", "foo")
	k, ok := Of(err)
	assert.True(t, ok)
	assert.Equal(t, NoSuchPath, k)
	assert.True(t, Is(err, NoSuchPath))
	assert.False(t, Is(err, NoSuchFile))
}

func TestWrapUnwrap(t *testing.T) {
	err := Wrap(IOError, "read failed")
	wrapped := fmt.Errorf("context: %w", err)
	k, ok := Of(wrapped)
	assert.True(t, ok)
	assert.Equal(t, IOError, k)
}

func TestOfNoKind(t *testing.T) {
	_, ok := Of(fmt.Errorf("plain error"))
	assert.False(t, ok)
	_, ok = Of(nil)
	assert.False(t, ok)
}
