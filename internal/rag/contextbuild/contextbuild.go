package contextbuild

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/pkg/logx"
)

var logger = logx.NewLogger("ContextBuild")

const (
	previewChars     = 200
	truncationMarker = "\n[... truncated ...]"
	blockSeparator   = "\n\n---\n\n"
)

// DocumentLoader hands the assembler full document bodies for
// high-scoring matches. commonModels.DocumentStore satisfies it.
type DocumentLoader interface {
	GetDocumentsBySource(ctx context.Context, sourceId string) (map[string]commonModels.Document, error)
}

// SourceEntry describes one numbered block of the assembled context. The
// Number matches the [Source N] header the generator is asked to cite.
type SourceEntry struct {
	Number     int     `json:"number"`
	DocumentId string  `json:"documentId"`
	SourceId   string  `json:"sourceId"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	BestScore  float32 `json:"bestScore"`
	Preview    string  `json:"preview"`
	Cited      bool    `json:"cited"`
}

type Options struct {
	TokenBudget      int
	CharsPerToken    int
	FullDocThreshold float32
	FullDocMaxChars  int
	MinBlockChars    int
}

func DefaultOptions() Options {
	return Options{
		TokenBudget:      config.MaxContextTokens,
		CharsPerToken:    config.CharsPerToken,
		FullDocThreshold: config.FullDocScoreThreshold,
		FullDocMaxChars:  config.MaxFullDocChars,
		MinBlockChars:    config.MinBlockChars,
	}
}

type Assembler struct {
	docs DocumentLoader
	opts Options
}

func NewAssembler(docs DocumentLoader, opts Options) *Assembler {
	if opts.TokenBudget <= 0 {
		opts = DefaultOptions()
	}
	return &Assembler{docs: docs, opts: opts}
}

type block struct {
	documentId string
	sourceId   string
	title      string
	url        string
	bestScore  float32
	hits       []commonModels.SearchHit
}

// Build turns ordered search hits into the serialized context handed to
// the generator plus the per-source table the caller returns alongside
// the answer. Hits must already be in document-priority order; the
// assembler groups consecutive hits of the same document into one block
// and numbers blocks 1-based in that order. A block whose best score
// reaches the full-document threshold is rendered from the document's
// complete stored body instead of the matched chunks. Assembly stops at
// the first block that would overflow the character budget.
func (a *Assembler) Build(ctx context.Context, hits []commonModels.SearchHit) (string, []SourceEntry) {
	if len(hits) == 0 {
		return "", nil
	}

	blocks := groupByDocument(hits)
	budget := a.opts.TokenBudget * a.opts.CharsPerToken

	var parts []string
	var table []SourceEntry
	used := 0

	for i, b := range blocks {
		content := a.blockContent(ctx, b)
		rendered := renderBlock(i+1, b, content)

		cost := len(rendered)
		if len(parts) > 0 {
			cost += len(blockSeparator)
		}

		if used+cost > budget {
			remaining := budget - used - len(truncationMarker)
			if len(parts) > 0 {
				remaining -= len(blockSeparator)
			}
			if remaining < a.opts.MinBlockChars {
				break
			}
			rendered = rendered[:remaining] + truncationMarker
			parts = append(parts, rendered)
			table = append(table, tableEntry(i+1, b))
			break
		}

		used += cost
		parts = append(parts, rendered)
		table = append(table, tableEntry(i+1, b))
	}

	return strings.Join(parts, blockSeparator), table
}

// MarkCited flags the table rows whose source number appears in the
// extracted citation set.
func MarkCited(table []SourceEntry, cited []int) {
	citedSet := make(map[int]bool, len(cited))
	for _, n := range cited {
		citedSet[n] = true
	}
	for i := range table {
		table[i].Cited = citedSet[table[i].Number]
	}
}

func groupByDocument(hits []commonModels.SearchHit) []block {
	var blocks []block
	for _, hit := range hits {
		if len(blocks) > 0 && blocks[len(blocks)-1].documentId == hit.DocumentId {
			last := &blocks[len(blocks)-1]
			last.hits = append(last.hits, hit)
			if hit.Score > last.bestScore {
				last.bestScore = hit.Score
			}
			continue
		}
		blocks = append(blocks, block{
			documentId: hit.DocumentId,
			sourceId:   hit.SourceId,
			title:      hit.Title,
			url:        hit.URL,
			bestScore:  hit.Score,
			hits:       []commonModels.SearchHit{hit},
		})
	}
	return blocks
}

func (a *Assembler) blockContent(ctx context.Context, b block) string {
	if b.bestScore >= a.opts.FullDocThreshold {
		if body, ok := a.fullDocument(ctx, b); ok {
			return body
		}
	}
	return mergeChunks(b.hits)
}

func (a *Assembler) fullDocument(ctx context.Context, b block) (string, bool) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	docs, err := a.docs.GetDocumentsBySource(ctx, b.sourceId)
	if err != nil {
		log.Warn("Loading full document failed, falling back to chunks", "documentId", b.documentId, "error", err)
		return "", false
	}
	for _, doc := range docs {
		if doc.Id != b.documentId {
			continue
		}
		body := doc.Content
		if body == "" {
			return "", false
		}
		if len(body) > a.opts.FullDocMaxChars {
			body = body[:a.opts.FullDocMaxChars] + truncationMarker
		}
		return body, true
	}
	return "", false
}

// mergeChunks joins a block's chunk texts de-duplicated by chunk index.
// Hits arrive ordered by chunk index already, so a linear pass suffices.
func mergeChunks(hits []commonModels.SearchHit) string {
	seen := make(map[int]bool, len(hits))
	var parts []string
	for _, hit := range hits {
		if seen[hit.ChunkIndex] {
			continue
		}
		seen[hit.ChunkIndex] = true
		parts = append(parts, hit.Content)
	}
	return strings.Join(parts, "\n\n")
}

func renderBlock(number int, b block, content string) string {
	var meta []string
	if b.title != "" {
		meta = append(meta, "Title: "+b.title)
	}
	if b.url != "" {
		meta = append(meta, "URL: "+b.url)
	}

	header := fmt.Sprintf("[Source %d]", number)
	if len(meta) > 0 {
		header += " (" + strings.Join(meta, ", ") + ")"
	}
	return header + "\n" + content
}

func tableEntry(number int, b block) SourceEntry {
	preview := mergeChunks(b.hits)
	if len(preview) > previewChars {
		preview = preview[:previewChars] + "..."
	}
	return SourceEntry{
		Number:     number,
		DocumentId: b.documentId,
		SourceId:   b.sourceId,
		Title:      b.title,
		URL:        b.url,
		BestScore:  b.bestScore,
		Preview:    preview,
	}
}
