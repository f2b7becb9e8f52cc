package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromText_DropsInvalidUTF8(t *testing.T) {
	data := []byte{'h', 'e', 'l', 'l', 'o', 0xff, 0xfe, '!'}
	assert.Equal(t, "hello!", FromText(data))
}

func TestFromUpload_PlainText(t *testing.T) {
	text, err := FromUpload("notes.txt", []byte("some notes"))
	require.NoError(t, err)
	assert.Equal(t, "some notes", text)
}

func TestFromUpload_UnknownExtensionTreatedAsText(t *testing.T) {
	text, err := FromUpload("README.md", []byte("# heading"))
	require.NoError(t, err)
	assert.Equal(t, "# heading", text)
}

func TestFromUpload_BrokenPDFFailsWholeFile(t *testing.T) {
	_, err := FromUpload("doc.pdf", []byte("this is not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc.pdf")
}

func TestFromFile_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o644))

	text, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file contents", text)
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
