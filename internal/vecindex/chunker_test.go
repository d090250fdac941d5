package vecindex

import (
	"strings"
	"testing"
)

func TestChunk_EmptyInput_ReturnsNoChunks(t *testing.T) {
	if got := Chunk("", 200, 40); len(got) != 0 {
		t.Errorf("expected 0 chunks for empty input, got %d", len(got))
	}
}

func TestChunk_WhitespaceOnlyInput_ReturnsNoChunks(t *testing.T) {
	if got := Chunk("   \t\n  ", 200, 40); len(got) != 0 {
		t.Errorf("expected 0 chunks for whitespace-only input, got %d", len(got))
	}
}

func TestChunk_ShortText_ReturnsSingleChunk(t *testing.T) {
	text := "the wireless earbuds charge in their case"
	chunks := Chunk(text, 200, 40)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short text, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected chunk to equal input text, got %q", chunks[0])
	}
}

func TestChunk_LongText_OverlapPreservesBoundaryTokens(t *testing.T) {
	// First 200 tokens "alpha", then 60 "beta". With overlap=40 the second
	// chunk must begin inside the alpha region.
	alphas := make([]string, 200)
	for i := range alphas {
		alphas[i] = "alpha"
	}
	betas := make([]string, 60)
	for i := range betas {
		betas[i] = "beta"
	}
	text := strings.Join(append(alphas, betas...), " ")

	chunks := Chunk(text, 200, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1], "alpha") {
		t.Errorf("expected second chunk to start with overlap tokens, got %q", chunks[1][:20])
	}
}

func TestChunk_TokenCountPerChunk(t *testing.T) {
	words := make([]string, 1500)
	for i := range words {
		words[i] = "tok"
	}
	text := strings.Join(words, " ")

	chunkSize := 200
	for i, c := range Chunk(text, chunkSize, 40) {
		if n := len(strings.Fields(c)); n > chunkSize {
			t.Errorf("chunk %d has %d tokens, exceeds %d", i, n, chunkSize)
		}
	}
}

func TestChunk_OverlapClampedWhenTooLarge(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")

	// overlap >= chunkSize would never advance; it must be clamped.
	chunks := Chunk(text, 10, 10)
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
	if len(chunks) > 30 {
		t.Errorf("overlap clamp failed, got %d chunks", len(chunks))
	}
}
