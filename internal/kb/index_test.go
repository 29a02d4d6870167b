package kb

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndexSearchOrdersByCosine(t *testing.T) {
	ix := newFlatIndex(3)
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	for _, v := range vectors {
		if err := ix.add(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	hits := ix.search([]float32{1, 0, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Position != 0 {
		t.Fatalf("expected exact match first, got position %d", hits[0].Position)
	}
	if hits[1].Position != 2 {
		t.Fatalf("expected near match second, got position %d", hits[1].Position)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
	}
	if math.Abs(float64(hits[0].Score)-1.0) > 1e-5 {
		t.Fatalf("expected cosine ~1.0 for identical vectors, got %v", hits[0].Score)
	}
}

func TestFlatIndexAddRejectsWrongDimension(t *testing.T) {
	ix := newFlatIndex(4)
	if err := ix.add([]float32{1, 2}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestFlatIndexRoundTripFile(t *testing.T) {
	ix := newFlatIndex(2)
	ix.add([]float32{3, 4})
	ix.add([]float32{0, 1})

	path := filepath.Join(t.TempDir(), "test.index")
	if err := ix.writeFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := readIndexFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.dim != 2 || loaded.count() != 2 {
		t.Fatalf("unexpected header: dim=%d count=%d", loaded.dim, loaded.count())
	}
	// Stored vectors are normalized copies.
	if math.Abs(float64(loaded.vectors[0][0])-0.6) > 1e-5 {
		t.Fatalf("expected normalized component 0.6, got %v", loaded.vectors[0][0])
	}
}

func TestReadIndexFileRejectsTruncation(t *testing.T) {
	ix := newFlatIndex(2)
	ix.add([]float32{1, 0})
	path := filepath.Join(t.TempDir(), "trunc.index")
	if err := ix.writeFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := readIndexFile(path); err == nil {
		t.Fatal("expected truncation error")
	}
}
