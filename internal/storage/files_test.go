package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveFileCreatesParentsAndReplacesContent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b", "q1_face.png")

	written, err := SaveFile(dest, strings.NewReader("first"))
	require.NoError(t, err)
	require.EqualValues(t, 5, written)

	_, err = SaveFile(dest, strings.NewReader("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestPublishFileReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "archive.zip")
	dst := filepath.Join(dir, "public", "archive.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	require.NoError(t, PublishFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
	require.NoFileExists(t, src)
}

func TestPublishFileMissingSourceKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "archive.zip")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.Error(t, PublishFile(filepath.Join(dir, "missing.zip"), dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	sum, size, err := Checksum(path)
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("abc"))
	require.Equal(t, hex.EncodeToString(expected[:]), sum)
	require.EqualValues(t, 3, size)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.True(t, FileExists(path))
	require.False(t, FileExists(dir))
}
