package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ChecksumFile returns the hex SHA-256 of a file's contents
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &StorageError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &StorageError{Path: path, Op: "read", Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumMessages hashes message content (id, role, parts and metadata) in
// order, so two stores with equal history hash equally
func ChecksumMessages(msgs []Message) string {
	h := sha256.New()
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			// Message only holds JSON-safe fields.
			panic(fmt.Sprintf("checksum: marshal message %s: %v", m.ID, err))
		}
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
