package kb

import (
	"strings"
	"testing"
)

func TestChunkWindowing(t *testing.T) {
	text := strings.Repeat("a", 2100)
	chunks := Chunk(text, 800, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 800 || len(chunks[1]) != 800 {
		t.Fatalf("expected full windows of 800, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 700 {
		t.Fatalf("expected final chunk of 700, got %d", len(chunks[2]))
	}
}

func TestChunkCollapsesWhitespace(t *testing.T) {
	chunks := Chunk("hello   world\n\nfoo\tbar", 100, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world foo bar" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk("", 800, 120); got != nil {
		t.Fatalf("expected no chunks for empty input, got %v", got)
	}
	if got := Chunk("   \n\t  ", 800, 120); got != nil {
		t.Fatalf("expected no chunks for whitespace input, got %v", got)
	}
}

func TestChunkOverlapAtLeastSizeStillTerminates(t *testing.T) {
	text := strings.Repeat("x", 50)
	chunks := Chunk(text, 5, 10)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	// Step degrades to one rune, so every start position is covered once.
	if len(chunks) != 46 {
		t.Fatalf("expected 46 chunks with single-rune steps, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Fatalf("final chunk %q does not end the text", last)
	}
}

func TestChunkHandlesMultibyteRunes(t *testing.T) {
	text := strings.Repeat("é", 10)
	chunks := Chunk(text, 4, 1)
	for i, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %d contains replacement rune: %q", i, c)
		}
	}
	if chunks[0] != "éééé" {
		t.Fatalf("expected 4-rune first chunk, got %q", chunks[0])
	}
}
