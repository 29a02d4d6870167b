package kb

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
)

// indexMagic identifies the on-disk flat index format.
const indexMagic uint32 = 0x4D435658 // "MCVX"

// flatIndex is an append-only list of L2-normalized vectors searched by
// inner product, which equals cosine similarity on normalized input. Vectors
// are never reordered or compacted; position i stays stable for the lifetime
// of the index so it can be joined against the sibling id-map.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (ix *flatIndex) count() int {
	return len(ix.vectors)
}

// add appends a copy of vec, L2-normalized
func (ix *flatIndex) add(vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("%w: index dimension %d, vector dimension %d", ErrDimensionMismatch, ix.dim, len(vec))
	}
	ix.vectors = append(ix.vectors, normalizeL2(vec))
	return nil
}

type scoredPosition struct {
	Position int
	Score    float32
}

// search returns up to topK positions ordered by descending inner product
// against the normalized query
func (ix *flatIndex) search(query []float32, topK int) []scoredPosition {
	if len(ix.vectors) == 0 || topK <= 0 {
		return nil
	}
	q := normalizeL2(query)
	scored := make([]scoredPosition, 0, len(ix.vectors))
	for i, vec := range ix.vectors {
		var dot float32
		for j := range vec {
			dot += vec[j] * q[j]
		}
		scored = append(scored, scoredPosition{Position: i, Score: dot})
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

func normalizeL2(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// writeFile persists the index as little-endian binary:
// magic, dim, count, then count*dim float32 values.
func (ix *flatIndex) writeFile(path string) error {
	buf := make([]byte, 12+len(ix.vectors)*ix.dim*4)
	binary.LittleEndian.PutUint32(buf[0:4], indexMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(ix.vectors)))
	off := 12
	for _, vec := range ix.vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

func readIndexFile(path string) (*flatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("index file truncated: %d bytes", len(data))
	}
	if binary.LittleEndian.Uint32(data[0:4]) != indexMagic {
		return nil, fmt.Errorf("index file has unknown format")
	}
	dim := int(binary.LittleEndian.Uint32(data[4:8]))
	count := int(binary.LittleEndian.Uint32(data[8:12]))
	if dim <= 0 || count < 0 {
		return nil, fmt.Errorf("index file header invalid: dim=%d count=%d", dim, count)
	}
	if len(data) != 12+count*dim*4 {
		return nil, fmt.Errorf("index file truncated: expected %d vectors of dimension %d", count, dim)
	}
	ix := newFlatIndex(dim)
	off := 12
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		ix.vectors = append(ix.vectors, vec)
	}
	return ix, nil
}
