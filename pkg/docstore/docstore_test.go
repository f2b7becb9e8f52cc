package docstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndGet(t *testing.T) {
	s := New()
	s.Append("first", "second")
	s.Append("third")

	require.Equal(t, 3, s.Len())

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = s.Get(3)
	assert.False(t, ok)
	_, ok = s.Get(-1)
	assert.False(t, ok)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.txt")

	s := New()
	s.Append("the sky is blue", "grass is green")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.All(), loaded.All())
}

func TestStore_SaveFlattensNewlines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.txt")

	s := New()
	s.Append("line one\nline two", "crlf\r\nhere")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	got, _ := loaded.Get(0)
	assert.Equal(t, "line one line two", got)
	got, _ = loaded.Get(1)
	assert.Equal(t, "crlf here", got)
}

func TestStore_SaveEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.txt")

	require.NoError(t, New().Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}
