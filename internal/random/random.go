// random.go - Secure randomness for blinding factors, trapdoors and ephemeral secrets.
//
// All protocol randomness flows through Reader, which is crypto/rand unless a
// test installs a deterministic source with WithReader.

package random

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sync"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/saplingerr"
)

// ScalarSize is the encoded size of a Jubjub scalar.
const ScalarSize = jubjub.ScalarSize

// wideSize uniform bytes are reduced into one scalar.
const wideSize = 64

var (
	mu     sync.RWMutex
	reader io.Reader = rand.Reader
)

// Reader returns the active randomness source.
func Reader() io.Reader {
	mu.RLock()
	defer mu.RUnlock()
	return reader
}

// WithReader installs r as the randomness source and returns a function that
// restores the previous one. Intended for tests only.
func WithReader(r io.Reader) (restore func()) {
	mu.Lock()
	prev := reader
	reader = r
	mu.Unlock()
	return func() {
		mu.Lock()
		reader = prev
		mu.Unlock()
	}
}

// Bytes returns n bytes from the active source.
func Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, saplingerr.New(saplingerr.InvalidInput, "random.Bytes", "length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader(), b); err != nil {
		return nil, fmt.Errorf("random source failed: %w", err)
	}
	return b, nil
}

// Scalar returns a uniformly distributed Jubjub scalar.
func Scalar() (*big.Int, error) {
	wide, err := Bytes(wideSize)
	if err != nil {
		return nil, err
	}
	return jubjub.ReduceWide(wide), nil
}

// ScalarBytes returns a uniformly distributed Jubjub scalar in its 32-byte
// little-endian encoding.
func ScalarBytes() ([]byte, error) {
	s, err := Scalar()
	if err != nil {
		return nil, err
	}
	enc := jubjub.EncodeScalar(s)
	return enc[:], nil
}
