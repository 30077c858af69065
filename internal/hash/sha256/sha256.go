// Package sha256 fingerprints problem content so the syncer can tell an
// unchanged problem from an edited one.
package sha256

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Fingerprint digests an ordered list of fields. Each field is length
// prefixed so ("ab", "c") and ("a", "bc") never collide.
func Fingerprint(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		writeField(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, f string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(f)))
	h.Write(size[:])
	h.Write([]byte(f))
}
