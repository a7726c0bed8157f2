package retriever

import (
	"context"
	"sort"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/mfales/ragengine/pkg/logx"
)

var logger = logx.NewLogger("Retriever")

type Params struct {
	Limit         uint64
	Filter        vectorDB.QueryFilter
	ContextWindow int
}

type Retriever struct {
	index      vectorDB.DataProcessor
	collection string
}

func New(index vectorDB.DataProcessor, collection string) *Retriever {
	return &Retriever{index: index, collection: collection}
}

// SearchWithContext runs the base similarity query and pulls in the
// chunks adjacent to every hit. Adjacent chunks carry a zero score, they
// are context rather than matches. The merged result is ordered by the
// best score seen for each document, then by chunk index inside it, so
// the strongest documents sit at the front of the context budget while
// reading in natural order.
func (r *Retriever) SearchWithContext(ctx context.Context, queryVector []float32, p Params) ([]commonModels.SearchHit, error) {
	hits, err := r.index.Query(ctx, r.collection, queryVector, p.Limit, p.Filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	if p.ContextWindow > 0 {
		neighbors := r.fetchNeighbors(ctx, hits, p.ContextWindow)
		hits = append(hits, neighbors...)
	}

	orderHits(hits)
	return hits, nil
}

func (r *Retriever) fetchNeighbors(ctx context.Context, hits []commonModels.SearchHit, window int) []commonModels.SearchHit {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	hitIndices := make(map[string]map[int]bool)
	for _, hit := range hits {
		if hitIndices[hit.DocumentId] == nil {
			hitIndices[hit.DocumentId] = make(map[int]bool)
		}
		hitIndices[hit.DocumentId][hit.ChunkIndex] = true
	}

	var neighbors []commonModels.SearchHit
	for documentId, indices := range hitIndices {
		wanted := make(map[int]bool)
		for idx := range indices {
			for offset := -window; offset <= window; offset++ {
				adjacent := idx + offset
				if adjacent < 0 || indices[adjacent] {
					continue
				}
				wanted[adjacent] = true
			}
		}
		if len(wanted) == 0 {
			continue
		}

		fetch := make([]int, 0, len(wanted))
		for idx := range wanted {
			fetch = append(fetch, idx)
		}
		sort.Ints(fetch)

		found, err := r.index.FetchChunks(ctx, r.collection, documentId, fetch)
		if err != nil {
			// context expansion is best effort, the hits themselves stand
			log.Warn("Fetching adjacent chunks failed", "documentId", documentId, "error", err)
			continue
		}
		for i := range found {
			found[i].Score = 0
		}
		neighbors = append(neighbors, found...)
	}
	return neighbors
}

func orderHits(hits []commonModels.SearchHit) {
	bestScore := make(map[string]float32)
	for _, hit := range hits {
		if hit.Score > bestScore[hit.DocumentId] {
			bestScore[hit.DocumentId] = hit.Score
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.DocumentId != b.DocumentId {
			if bestScore[a.DocumentId] != bestScore[b.DocumentId] {
				return bestScore[a.DocumentId] > bestScore[b.DocumentId]
			}
			return a.DocumentId < b.DocumentId
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}
