package contextbuild

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mfales/ragengine/internal/domain/commonModels"
)

type mockLoader struct {
	getDocsFunc func(ctx context.Context, sourceId string) (map[string]commonModels.Document, error)
}

func (m *mockLoader) GetDocumentsBySource(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
	if m.getDocsFunc == nil {
		return nil, nil
	}
	return m.getDocsFunc(ctx, sourceId)
}

func testOptions() Options {
	return Options{
		TokenBudget:      100,
		CharsPerToken:    4,
		FullDocThreshold: 0.85,
		FullDocMaxChars:  50,
		MinBlockChars:    20,
	}
}

func hit(doc string, index int, score float32, content string) commonModels.SearchHit {
	return commonModels.SearchHit{
		DocumentId: doc,
		SourceId:   "src-1",
		ChunkIndex: index,
		Score:      score,
		Content:    content,
		Title:      "Doc " + doc,
		URL:        "https://example.com/" + doc,
	}
}

func TestBlockGroupingAndNumbering(t *testing.T) {
	a := NewAssembler(&mockLoader{}, testOptions())
	hits := []commonModels.SearchHit{
		hit("doc-1", 0, 0.8, "first chunk"),
		hit("doc-1", 1, 0.7, "second chunk"),
		hit("doc-2", 4, 0.6, "other doc"),
	}

	text, table := a.Build(context.Background(), hits)

	if !strings.Contains(text, "[Source 1] (Title: Doc doc-1, URL: https://example.com/doc-1)") {
		t.Fatalf("missing first source header: %q", text)
	}
	if !strings.Contains(text, "[Source 2]") {
		t.Fatalf("missing second source header: %q", text)
	}
	if !strings.Contains(text, "first chunk\n\nsecond chunk") {
		t.Fatalf("chunks of one document not merged: %q", text)
	}
	if !strings.Contains(text, "\n\n---\n\n") {
		t.Fatalf("blocks not separated: %q", text)
	}

	if len(table) != 2 {
		t.Fatalf("got %d table rows, want 2", len(table))
	}
	if table[0].Number != 1 || table[0].DocumentId != "doc-1" || table[0].BestScore != 0.8 {
		t.Fatalf("unexpected first row: %+v", table[0])
	}
	if table[1].Number != 2 || table[1].DocumentId != "doc-2" {
		t.Fatalf("unexpected second row: %+v", table[1])
	}
}

func TestDuplicateChunkIndicesMergedOnce(t *testing.T) {
	a := NewAssembler(&mockLoader{}, testOptions())
	hits := []commonModels.SearchHit{
		hit("doc-1", 2, 0.8, "repeated"),
		hit("doc-1", 2, 0.0, "repeated"),
		hit("doc-1", 3, 0.0, "next"),
	}

	text, _ := a.Build(context.Background(), hits)
	if strings.Count(text, "repeated") != 1 {
		t.Fatalf("duplicate chunk rendered twice: %q", text)
	}
}

func TestFullDocumentSubstitution(t *testing.T) {
	loader := &mockLoader{
		getDocsFunc: func(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
			return map[string]commonModels.Document{
				"key": {Id: "doc-1", SourceId: sourceId, Content: strings.Repeat("x", 80)},
			}, nil
		},
	}
	a := NewAssembler(loader, testOptions())
	hits := []commonModels.SearchHit{hit("doc-1", 0, 0.9, "chunk text")}

	text, _ := a.Build(context.Background(), hits)

	if strings.Contains(text, "chunk text") {
		t.Fatalf("chunk text used despite high score: %q", text)
	}
	if !strings.Contains(text, strings.Repeat("x", 50)) {
		t.Fatalf("full body missing: %q", text)
	}
	if !strings.Contains(text, "truncated") {
		t.Fatalf("truncation marker missing after max chars: %q", text)
	}
}

func TestFullDocumentFallsBackOnLoadError(t *testing.T) {
	loader := &mockLoader{
		getDocsFunc: func(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
			return nil, errors.New("store down")
		},
	}
	a := NewAssembler(loader, testOptions())
	hits := []commonModels.SearchHit{hit("doc-1", 0, 0.9, "chunk text")}

	text, _ := a.Build(context.Background(), hits)
	if !strings.Contains(text, "chunk text") {
		t.Fatalf("expected chunk fallback: %q", text)
	}
}

func TestBelowThresholdKeepsChunks(t *testing.T) {
	loader := &mockLoader{
		getDocsFunc: func(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
			t.Fatal("document store consulted for a low-scoring block")
			return nil, nil
		},
	}
	a := NewAssembler(loader, testOptions())
	hits := []commonModels.SearchHit{hit("doc-1", 0, 0.5, "chunk text")}

	text, _ := a.Build(context.Background(), hits)
	if !strings.Contains(text, "chunk text") {
		t.Fatalf("expected chunk content: %q", text)
	}
}

func TestBudgetNeverExceeded(t *testing.T) {
	opts := testOptions()
	opts.TokenBudget = 30 // 120 chars
	a := NewAssembler(&mockLoader{}, opts)

	var hits []commonModels.SearchHit
	for i := 0; i < 10; i++ {
		hits = append(hits, hit("doc-"+string(rune('a'+i)), 0, 0.7, strings.Repeat("w", 60)))
	}

	text, _ := a.Build(context.Background(), hits)
	limit := opts.TokenBudget * opts.CharsPerToken
	if len(text) > limit {
		t.Fatalf("context %d chars exceeds budget %d", len(text), limit)
	}
}

func TestOverflowBlockTruncatedWhenRoomRemains(t *testing.T) {
	opts := testOptions()
	opts.TokenBudget = 40 // 160 chars
	opts.MinBlockChars = 10
	a := NewAssembler(&mockLoader{}, opts)

	hits := []commonModels.SearchHit{
		hit("doc-1", 0, 0.7, strings.Repeat("a", 40)),
		hit("doc-2", 0, 0.6, strings.Repeat("b", 400)),
	}

	text, table := a.Build(context.Background(), hits)
	if len(table) != 2 {
		t.Fatalf("truncated block missing from table: %d rows", len(table))
	}
	if !strings.HasSuffix(text, truncationMarker) {
		t.Fatalf("overflow block not marked truncated: %q", text[len(text)-40:])
	}
}

func TestOverflowBlockDroppedWhenTooLittleRoom(t *testing.T) {
	opts := testOptions()
	opts.TokenBudget = 30 // 120 chars
	opts.MinBlockChars = 500
	a := NewAssembler(&mockLoader{}, opts)

	hits := []commonModels.SearchHit{
		hit("doc-1", 0, 0.7, strings.Repeat("a", 40)),
		hit("doc-2", 0, 0.6, strings.Repeat("b", 400)),
		hit("doc-3", 0, 0.5, "short"),
	}

	text, table := a.Build(context.Background(), hits)
	if len(table) != 1 {
		t.Fatalf("got %d table rows, want 1 (assembly stops at first overflow)", len(table))
	}
	if strings.Contains(text, "short") {
		t.Fatalf("lower-priority block reordered in after overflow: %q", text)
	}
}

func TestEmptyHits(t *testing.T) {
	a := NewAssembler(&mockLoader{}, testOptions())
	text, table := a.Build(context.Background(), nil)
	if text != "" || table != nil {
		t.Fatalf("got %q / %v, want empty", text, table)
	}
}

func TestPreviewTruncated(t *testing.T) {
	a := NewAssembler(&mockLoader{}, testOptions())
	hits := []commonModels.SearchHit{hit("doc-1", 0, 0.7, strings.Repeat("p", 300))}

	_, table := a.Build(context.Background(), hits)
	if len(table[0].Preview) != previewChars+3 {
		t.Fatalf("preview length %d, want %d", len(table[0].Preview), previewChars+3)
	}
	if !strings.HasSuffix(table[0].Preview, "...") {
		t.Fatalf("preview not marked truncated: %q", table[0].Preview)
	}
}

func TestMarkCited(t *testing.T) {
	table := []SourceEntry{{Number: 1}, {Number: 2}, {Number: 3}}
	MarkCited(table, []int{1, 3})
	if !table[0].Cited || table[1].Cited || !table[2].Cited {
		t.Fatalf("unexpected cited flags: %+v", table)
	}
}
