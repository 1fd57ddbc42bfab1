package types

import (
	"hash"
	"sync"

	"github.com/minio/sha256-simd"
)

// HashBytes computes the SHA-256 hash of b.
func HashBytes(b []byte) Hash256 {
	return sha256.Sum256(b)
}

// A Hasher streams objects into an instance of SHA-256.
type Hasher struct {
	h   hash.Hash
	sum Hash256 // prevent Sum from allocating
}

// Reset resets the underlying hash state.
func (h *Hasher) Reset() { h.h.Reset() }

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// WriteByte writes a single byte to the hash.
func (h *Hasher) WriteByte(b byte) error {
	_, err := h.h.Write([]byte{b})
	return err
}

// WriteHash writes a Hash256 to the hash.
func (h *Hasher) WriteHash(x Hash256) { h.h.Write(x[:]) }

// WriteUint64 writes u in its canonical integer atom encoding.
func (h *Hasher) WriteUint64(u uint64) {
	var buf [9]byte
	h.h.Write(AppendUint64(buf[:0], u))
}

// Sum returns the digest of the objects written to the Hasher.
func (h *Hasher) Sum() Hash256 {
	h.h.Sum(h.sum[:0])
	return h.sum
}

// NewHasher returns a new Hasher instance.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Pool for reducing heap allocations when hashing. sha256.New returns a
// hash.Hash interface, which prevents the compiler from doing escape
// analysis.
var hasherPool = &sync.Pool{New: func() interface{} { return NewHasher() }}

// GetHasher returns a reset Hasher from the shared pool. The caller must
// return it with PutHasher.
func GetHasher() *Hasher {
	h := hasherPool.Get().(*Hasher)
	h.Reset()
	return h
}

// PutHasher returns h to the shared pool.
func PutHasher(h *Hasher) { hasherPool.Put(h) }

// CoinID computes the identifier of the coin created by parent with the given
// puzzle hash and amount.
func CoinID(parent, puzzleHash Hash256, amount uint64) Hash256 {
	h := GetHasher()
	defer PutHasher(h)
	h.WriteHash(parent)
	h.WriteHash(puzzleHash)
	h.WriteUint64(amount)
	return h.Sum()
}
