package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	require.NoError(t, os.WriteFile(a, []byte("line\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("line\n"), 0644))

	sumA, err := ChecksumFile(a)
	require.NoError(t, err)
	sumB, err := ChecksumFile(b)
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)
	assert.Len(t, sumA, 64)

	require.NoError(t, os.WriteFile(b, []byte("line\nmore\n"), 0644))
	sumB, err = ChecksumFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)

	_, err = ChecksumFile(filepath.Join(dir, "missing"))
	var se *StorageError
	assert.ErrorAs(t, err, &se)
}

func TestChecksumMessages(t *testing.T) {
	a := []Message{CreateTestUserMessage("u1", 1, "hi")}
	b := []Message{CreateTestUserMessage("u1", 1, "hi")}
	c := []Message{CreateTestUserMessage("u1", 1, "hello")}

	assert.Equal(t, ChecksumMessages(a), ChecksumMessages(b))
	assert.NotEqual(t, ChecksumMessages(a), ChecksumMessages(c))
}
