package extract

import (
	"context"
	"fmt"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/security"
	"github.com/mfales/ragengine/pkg/logx"
)

var logger = logx.NewLogger("Extract")

// Extractor turns one source into the items to reconcile against stored
// state. Failures on individual pages or feed entries are logged and
// skipped, only a source-level failure returns an error.
type Extractor interface {
	Extract(ctx context.Context, source commonModels.Source) ([]commonModels.ExtractedItem, error)
}

func NewExtractor(sourceType commonModels.SourceType, guard *security.URLGuard) (Extractor, error) {
	switch sourceType {
	case commonModels.Web:
		return newWebExtractor(guard), nil
	case commonModels.Feed:
		return newFeedExtractor(guard), nil
	case commonModels.File:
		return newFileExtractor(), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
