package qdrantDB

import (
	"time"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/qdrant/go-client/qdrant"
)

// a day in seconds, makes the end bound cover the whole end date
const endOfDay = 86400

func buildFilter(f vectorDB.QueryFilter) *qdrant.Filter {
	var must []*qdrant.Condition

	if len(f.SourceIds) == 1 {
		must = append(must, qdrant.NewMatch("source_id", f.SourceIds[0]))
	} else if len(f.SourceIds) > 1 {
		must = append(must, qdrant.NewMatchKeywords("source_id", f.SourceIds...))
	}

	if !f.Date.IsZero() {
		must = append(must, dateCondition(f.Date))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// dateCondition translates the date policy into payload conditions: a
// published_at_ts range, or-ed with field absence when IncludeUndated
// is set so undated documents stay retrievable.
func dateCondition(d commonModels.DateFilter) *qdrant.Condition {
	r := &qdrant.Range{}
	if d.Start != nil {
		r.Gte = qdrant.PtrOf(float64(d.Start.Unix()))
	}
	if d.End != nil {
		r.Lte = qdrant.PtrOf(float64(d.End.Unix() + endOfDay))
	}
	rangeCond := qdrant.NewRange("published_at_ts", r)

	if !d.IncludeUndated {
		return rangeCond
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Filter{
			Filter: &qdrant.Filter{
				Should: []*qdrant.Condition{
					rangeCond,
					qdrant.NewIsNull("published_at_ts"),
				},
			},
		},
	}
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
