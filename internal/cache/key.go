package cache

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/inferloop/patternscope/pkg/models"
)

// KeyBuilder accumulates content into an xxhash digest. Two builders fed the
// same sequence of values produce the same key.
type KeyBuilder struct {
	namespace string
	digest    *xxhash.Digest
	buf       [8]byte
}

// NewKey starts a key in namespace.
func NewKey(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace, digest: xxhash.New()}
}

// String adds a length-prefixed string.
func (b *KeyBuilder) String(s string) *KeyBuilder {
	b.Int(int64(len(s)))
	_, _ = b.digest.WriteString(s)
	return b
}

// Int adds an integer.
func (b *KeyBuilder) Int(v int64) *KeyBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], uint64(v))
	_, _ = b.digest.Write(b.buf[:])
	return b
}

// Float adds a float by its bit pattern.
func (b *KeyBuilder) Float(v float64) *KeyBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], math.Float64bits(v))
	_, _ = b.digest.Write(b.buf[:])
	return b
}

// Series adds every point's timestamp and value in order.
func (b *KeyBuilder) Series(points []models.TimeSeriesPoint) *KeyBuilder {
	b.Int(int64(len(points)))
	for _, p := range points {
		b.Int(p.Timestamp.UnixNano())
		b.Float(p.Value)
	}
	return b
}

// Values adds a plain sample.
func (b *KeyBuilder) Values(values []float64) *KeyBuilder {
	b.Int(int64(len(values)))
	for _, v := range values {
		b.Float(v)
	}
	return b
}

// Window adds an analysis window.
func (b *KeyBuilder) Window(w models.AnalysisWindow) *KeyBuilder {
	return b.Int(w.Start.UnixNano()).Int(w.End.UnixNano()).String(string(w.Granularity))
}

// Sum64 returns the digest.
func (b *KeyBuilder) Sum64() uint64 {
	return b.digest.Sum64()
}

// Key returns "namespace:hex-digest".
func (b *KeyBuilder) Key() string {
	return b.namespace + ":" + strconv.FormatUint(b.digest.Sum64(), 16)
}
