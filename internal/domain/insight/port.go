package insight

import "context"

// Client port for the narrative model. metricsJSON is the serialized analyzer
// output for one release; the reply must be the Narrative JSON schema.
type Client interface {
	ReleaseHealth(ctx context.Context, metricsJSON string) (string, error)
}
