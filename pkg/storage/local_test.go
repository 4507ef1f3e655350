package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Write(ctx, "cache.yaml", []byte("hello")))

	data, err := st.Read(ctx, "cache.yaml")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	ok, err := st.Exists(ctx, "cache.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := st.Size(ctx, "cache.yaml")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, st.Delete(ctx, "cache.yaml"))
	ok, err = st.Exists(ctx, "cache.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorageMissingFile(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = st.Read(ctx, "missing.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = st.Size(ctx, "missing.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorageOverwrite(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Write(ctx, "f", []byte("one")))
	require.NoError(t, st.Write(ctx, "f", []byte("two")))

	data, err := st.Read(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}
