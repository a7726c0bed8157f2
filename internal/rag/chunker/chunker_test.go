package chunker

import (
	"strings"
	"testing"
)

// wordTokenizer counts 1 token per word, deterministic for tests.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker(100, 20, wordTokenizer{})

	for _, input := range []string{"", "   ", "\n\t  \n"} {
		if got := c.Chunk(input); len(got) != 0 {
			t.Errorf("Chunk(%q) = %v; want empty", input, got)
		}
	}
}

func TestChunkShortInput(t *testing.T) {
	c := NewChunker(100, 20, wordTokenizer{})

	chunks := c.Chunk("Just one short sentence.")
	if len(chunks) != 1 || chunks[0] != "Just one short sentence." {
		t.Errorf("Expected single chunk, got %v", chunks)
	}
}

func TestChunkCleansText(t *testing.T) {
	c := NewChunker(100, 20, wordTokenizer{})

	chunks := c.Chunk("Hello\x00   world.\n\nNext  line.")
	if len(chunks) != 1 || chunks[0] != "Hello world. Next line." {
		t.Errorf("Expected normalized text, got %v", chunks)
	}
}

func TestSplitIntoSentences(t *testing.T) {
	sentences := splitIntoSentences("What? Yes! Done. trailing tail")

	expected := []string{"What?", "Yes!", "Done.", "trailing tail"}
	if len(sentences) != len(expected) {
		t.Fatalf("Expected %d sentences, got %v", len(expected), sentences)
	}
	for i := range expected {
		if sentences[i] != expected[i] {
			t.Errorf("sentence %d = %q; want %q", i, sentences[i], expected[i])
		}
	}
}

func TestChunkGreedyPacking(t *testing.T) {
	// 3-token sentences with a 5-token limit: each chunk holds one
	// sentence, overlap budget too small to carry any sentence forward
	c := NewChunker(5, 2, wordTokenizer{})

	chunks := c.Chunk("a b one. c d two. e f three.")
	expected := []string{"a b one.", "c d two.", "e f three."}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %v", chunks)
	}
	for i := range expected {
		if chunks[i] != expected[i] {
			t.Errorf("chunk %d = %q; want %q", i, chunks[i], expected[i])
		}
	}
}

func TestChunkOverlapSeedsNextChunk(t *testing.T) {
	// 2-token sentences, limit 5, overlap 3: every new chunk starts with
	// the previous chunk's last sentence
	c := NewChunker(5, 3, wordTokenizer{})

	chunks := c.Chunk("a b. c d. e f. g h.")
	expected := []string{"a b. c d.", "c d. e f.", "e f. g h."}
	if len(chunks) != len(expected) {
		t.Fatalf("Expected %d chunks, got %v", len(expected), chunks)
	}
	for i := range expected {
		if chunks[i] != expected[i] {
			t.Errorf("chunk %d = %q; want %q", i, chunks[i], expected[i])
		}
	}
}

func TestChunkOversizedSentenceWordSplit(t *testing.T) {
	c := NewChunker(3, 1, wordTokenizer{})

	chunks := c.Chunk("one two three four five six seven")
	expected := []string{"one two three", "four five six", "seven"}
	if len(chunks) != len(expected) {
		t.Fatalf("Expected %d chunks, got %v", len(expected), chunks)
	}
	for i := range expected {
		if chunks[i] != expected[i] {
			t.Errorf("chunk %d = %q; want %q", i, chunks[i], expected[i])
		}
	}
}

func TestChunkOversizedSentenceFlushesBuffer(t *testing.T) {
	c := NewChunker(4, 0, wordTokenizer{})

	chunks := c.Chunk("short one. w1 w2 w3 w4 w5 w6 then done")
	if len(chunks) < 3 {
		t.Fatalf("Expected buffered sentence plus word-split parts, got %v", chunks)
	}
	if chunks[0] != "short one." {
		t.Errorf("chunk 0 = %q; want buffered sentence first", chunks[0])
	}
}

func TestChunkTokenBound(t *testing.T) {
	tok := wordTokenizer{}
	c := NewChunker(10, 3, tok)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("some words in a repeating sentence. ")
	}

	for i, chunk := range c.Chunk(b.String()) {
		if chunk == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if got := tok.CountTokens(chunk); got > 10 {
			t.Errorf("chunk %d has %d tokens, over the limit: %q", i, got, chunk)
		}
	}
}

func TestHeuristicTokenizer(t *testing.T) {
	tok := HeuristicTokenizer{}

	if got := tok.CountTokens("one two three four"); got != 5 { // 4 * 1.3 = 5.2 -> 5
		t.Errorf("CountTokens = %d; want 5", got)
	}
	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("CountTokens(empty) = %d; want 0", got)
	}
}
