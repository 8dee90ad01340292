// Package hashing streams a file exactly once and produces both of the
// library's content hashes (SHA-256 and BLAKE3) in a single pass, mirroring
// the single-read-pass discipline the teacher's storage package uses for
// ETag/SHA256 computation but fanning the same buffer out to two hashers.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"lukechampine.com/blake3"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
)

// bufferSize is the fixed read buffer recommended by the spec (1-4 MiB).
const bufferSize = 2 * 1024 * 1024

// Result is the output of hashing a file: both digests, hex-encoded, and
// the byte count observed while streaming.
type Result struct {
	SHA256 string
	BLAKE3 string
	Size   int64
}

// HashFile streams r exactly once, feeding both hash functions from the
// same buffer, and returns their hex digests plus the total byte count.
func HashFile(r io.Reader) (Result, error) {
	sha := sha256.New()
	b3 := blake3.New(32, nil)
	tee := io.MultiWriter(sha, b3)

	buf := make([]byte, bufferSize)
	n, err := io.CopyBuffer(tee, r, buf)
	if err != nil {
		return Result{}, liberr.Wrap(liberr.KindIoError, "reading file for hashing", err)
	}

	return Result{
		SHA256: hex.EncodeToString(sha.Sum(nil)),
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
		Size:   n,
	}, nil
}

// HashAndCopy streams r into w and into both hash functions in the same
// pass, for the import path's "stream-hash while copying" requirement —
// hashing and copy share one read of the source.
func HashAndCopy(w io.Writer, r io.Reader) (Result, error) {
	sha := sha256.New()
	b3 := blake3.New(32, nil)
	tee := io.MultiWriter(w, sha, b3)

	buf := make([]byte, bufferSize)
	n, err := io.CopyBuffer(tee, r, buf)
	if err != nil {
		return Result{}, liberr.Wrap(liberr.KindIoError, "copying and hashing file", err)
	}

	return Result{
		SHA256: hex.EncodeToString(sha.Sum(nil)),
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
		Size:   n,
	}, nil
}

// VerifySHA256 reports whether result.SHA256 matches expected, returning a
// liberr.Error of kind HashMismatch describing the disagreement when it
// does not.
func VerifySHA256(result Result, expected string) error {
	if result.SHA256 != expected {
		return liberr.NewHashMismatchError(expected, result.SHA256).Error
	}
	return nil
}

// CollisionSuffix returns the first 8 hex characters of a SHA-256 hex
// digest, the suffix the Storage Layout appends to a file name on a
// canonical-path collision; input shorter than 8 characters is returned
// unchanged.
func CollisionSuffix(sha256Hex string) string {
	if len(sha256Hex) < 8 {
		return sha256Hex
	}
	return sha256Hex[:8]
}
