package chunker

import (
	"regexp"
	"strings"

	"github.com/mfales/ragengine/internal/config"
)

// Tokenizer counts tokens for chunk sizing. Swappable so tests can use
// a deterministic counter instead of the heuristic.
type Tokenizer interface {
	CountTokens(text string) int
}

// HeuristicTokenizer approximates tokens as words * 1.3, which is close
// enough for English prose when no model tokenizer is available.
type HeuristicTokenizer struct{}

func (HeuristicTokenizer) CountTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

type Chunker struct {
	chunkSize int
	overlap   int
	tokenizer Tokenizer
}

func NewChunker(chunkSize, overlap int, tokenizer Tokenizer) *Chunker {
	if chunkSize <= 0 {
		chunkSize = config.ChunkSizeTokens
	}
	if overlap < 0 {
		overlap = config.ChunkOverlapTokens
	}
	if tokenizer == nil {
		tokenizer = HeuristicTokenizer{}
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap, tokenizer: tokenizer}
}

// CountTokens exposes the chunker's tokenizer so callers can record the
// same token counts the packing decisions were made with.
func (c *Chunker) CountTokens(text string) int {
	return c.tokenizer.CountTokens(text)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Chunk splits text into ordered, overlapping, token-bounded chunks.
// Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	text = cleanText(text)
	if text == "" {
		return nil
	}

	sentences := splitIntoSentences(text)

	var chunks []string
	var currentChunk []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := c.tokenizer.CountTokens(sentence)

		// A single sentence over the limit gets split by words on its own
		if sentenceTokens > c.chunkSize {
			if len(currentChunk) > 0 {
				chunks = append(chunks, strings.Join(currentChunk, " "))
				currentChunk = nil
				currentTokens = 0
			}
			chunks = append(chunks, c.splitLongSentence(sentence)...)
			continue
		}

		if currentTokens+sentenceTokens > c.chunkSize {
			if len(currentChunk) > 0 {
				chunks = append(chunks, strings.Join(currentChunk, " "))
			}

			// Seed the next chunk with trailing whole sentences that fit
			// inside the overlap budget
			var overlapSentences []string
			overlapCount := 0
			for i := len(currentChunk) - 1; i >= 0; i-- {
				sTokens := c.tokenizer.CountTokens(currentChunk[i])
				if overlapCount+sTokens > c.overlap {
					break
				}
				overlapSentences = append([]string{currentChunk[i]}, overlapSentences...)
				overlapCount += sTokens
			}

			currentChunk = append(overlapSentences, sentence)
			currentTokens = c.tokenizer.CountTokens(strings.Join(currentChunk, " "))
		} else {
			currentChunk = append(currentChunk, sentence)
			currentTokens += sentenceTokens
		}
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, strings.Join(currentChunk, " "))
	}

	return chunks
}

func cleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// splitIntoSentences cuts after [.!?] followed by whitespace. cleanText
// has already collapsed whitespace so a single space is the boundary.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 2
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func (c *Chunker) splitLongSentence(sentence string) []string {
	words := strings.Fields(sentence)

	var chunks []string
	var currentWords []string
	currentTokens := 0

	for _, word := range words {
		wordTokens := c.tokenizer.CountTokens(word)
		if currentTokens+wordTokens > c.chunkSize {
			if len(currentWords) > 0 {
				chunks = append(chunks, strings.Join(currentWords, " "))
			}
			currentWords = []string{word}
			currentTokens = wordTokens
		} else {
			currentWords = append(currentWords, word)
			currentTokens += wordTokens
		}
	}

	if len(currentWords) > 0 {
		chunks = append(chunks, strings.Join(currentWords, " "))
	}

	return chunks
}
