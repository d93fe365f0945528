package fdutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNegativeFd(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
}

func TestFdLifecycle(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	f, err := New(int(r.Fd()))
	require.NoError(t, err)
	assert.True(t, f.Valid())
	assert.Equal(t, int(r.Fd()), f.FD())

	require.NoError(t, f.Close())
	assert.False(t, f.Valid())

	// Close is idempotent on an already-released Fd.
	assert.NoError(t, f.Close())
}

func TestIntoRawReleasesOwnership(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()

	f, err := New(int(r.Fd()))
	require.NoError(t, err)

	raw := f.IntoRaw()
	assert.Equal(t, int(r.Fd()), raw)
	assert.False(t, f.Valid())

	// Close after IntoRaw must be a no-op: the descriptor is no longer
	// this Fd's to close.
	assert.NoError(t, f.Close())
}
