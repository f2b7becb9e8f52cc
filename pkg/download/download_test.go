package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_DownloadsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("model weights"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models", "model.bin")
	var reported int64
	err := Fetch(context.Background(), srv.URL, dest, func(done, total int64) {
		reported = done
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "model weights", string(data))
	assert.EqualValues(t, len("model weights"), reported)
}

func TestFetch_SkipsExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be hit for an existing file")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(dest, []byte("already here"), 0o644))

	require.NoError(t, Fetch(context.Background(), srv.URL, dest, nil))

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "already here", string(data))
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.bin")
	err := Fetch(context.Background(), srv.URL, dest, nil)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
