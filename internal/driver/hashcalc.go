package driver

import (
	"crypto/sha256"
	"encoding/binary"

	"copyir/internal/layout"
)

// Digest is a SHA-256 content key.
type Digest [32]byte

// unitDigest keys a unit's cached result: H(schema || target || exec || content).
// Anything that changes the lowered output must be mixed in.
func unitDigest(content []byte, target layout.Target, execute bool) Digest {
	h := sha256.New()
	var hdr [3]byte
	binary.LittleEndian.PutUint16(hdr[:2], diskCacheSchemaVersion)
	if execute {
		hdr[2] = 1
	}
	_, _ = h.Write(hdr[:])
	_, _ = h.Write([]byte(target.Triple))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
