package pipeline

import (
	"context"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Passthrough is the generic file transform: the raw bytes become the single
// derived artifact under the original display name.
type Passthrough struct{}

var _ items.Transformer = Passthrough{}

func (Passthrough) Transform(_ context.Context, it *items.Item, raw []byte) ([]items.Artifact, error) {
	return []items.Artifact{{Name: it.DisplayName, Data: raw}}, nil
}
