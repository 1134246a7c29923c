package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotatingWriterAppendsWithoutRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	w, err := NewRotatingWriter(path, 0, 1, false)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("line one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("line two\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\n", string(data))
}

func TestRotatingWriterRotatesOnceOverMaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	w, err := NewRotatingWriter(path, 10, 1, false)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("more"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "expected a rotated backup to exist")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "more", string(current))
}

func TestRotatingWriterCompressesBackupWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	w, err := NewRotatingWriter(path, 5, 1, true)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("12345"))
	require.NoError(t, err)
	_, err = w.Write([]byte("67890"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".1.gz")
	require.NoError(t, err, "expected the rotated backup to be gzip-compressed")
	_, err = os.Stat(path + ".1")
	require.Error(t, err, "uncompressed backup should have been removed")
}
