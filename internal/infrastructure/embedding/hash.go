package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"NewsRAG/internal/ports"
)

// HashEncoder is a deterministic feature-hashing encoder for offline runs and tests.
// Words and their rune bigrams are hashed into a fixed number of buckets; the result is L2-normalised.
type HashEncoder struct {
	dims int
}

var _ ports.Encoder = (*HashEncoder)(nil)

// NewHashEncoder builds an encoder producing vectors of length dims.
func NewHashEncoder(dims int) *HashEncoder {
	if dims < 1 {
		dims = 256
	}
	return &HashEncoder{dims: dims}
}

func (h *HashEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h.add(vec, w, 1)
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			h.add(vec, string(runes[i:i+2]), 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashEncoder) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func (h *HashEncoder) Dimensions() int {
	return h.dims
}
