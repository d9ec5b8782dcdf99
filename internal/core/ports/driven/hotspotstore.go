package driven

import (
	"context"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

// HotspotStore is the narrow interface through which the pipeline hands
// canonical records to the external persistence collaborator. Loads are
// all-or-nothing per run; transport-level failures are returned wrapping
// domain.ErrLoadFailure so the load stage can retry them.
type HotspotStore interface {
	Load(ctx context.Context, records []domain.Hotspot) (domain.LoadResult, error)
}
