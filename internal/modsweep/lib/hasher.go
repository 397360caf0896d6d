// Package lib contains the core, reusable services for the modsweep application.
package lib

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// hashChunkSize is the buffer size used when streaming file contents into the
// hasher. Mod archives routinely run to multiple gigabytes, so the file is
// never loaded into memory whole.
const hashChunkSize = 1 << 20

// HashFile computes the content fingerprint of a file by streaming its bytes
// through xxhash64 and base64-encoding the little-endian digest. This is the
// same encoding the modlist carries in each archive record's Hash field, so
// the result is directly comparable to a manifest hash.
//
// The fingerprint depends only on file content, never on name, timestamps or
// permissions. Any I/O failure is returned to the caller; fingerprinting sits
// on the deletion decision path and must not fall back silently.
func HashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("could not open file for hashing: %w", err)
	}
	defer file.Close()

	digest := xxhash.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(digest, file, buf); err != nil {
		return "", fmt.Errorf("could not hash %s: %w", filePath, err)
	}

	return EncodeHash(digest.Sum64()), nil
}

// EncodeHash renders a raw xxhash64 value in the modlist's textual form:
// standard base64 over the little-endian bytes of the digest.
func EncodeHash(sum uint64) string {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], sum)
	return base64.StdEncoding.EncodeToString(raw[:])
}

// HashBytes fingerprints an in-memory byte slice with the same encoding as
// HashFile. Tests use it to build manifest fixtures whose hashes match real
// file contents.
func HashBytes(content []byte) string {
	return EncodeHash(xxhash.Sum64(content))
}
