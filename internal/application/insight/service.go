package insight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trackforge/release-radar/internal/domain/insight"
)

// Service turns analyzer output into a release-health narrative via the model
// client. A nil client means the feature is not configured; callers degrade to
// the numeric aggregates.
type Service struct {
	client insight.Client
}

func NewService(client insight.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Enabled() bool { return s != nil && s.client != nil }

// Narrate serializes the metrics payload, asks the model, and parses the
// strict-JSON reply.
func (s *Service) Narrate(ctx context.Context, metrics any) (*insight.Narrative, error) {
	if !s.Enabled() {
		return nil, nil
	}
	payload, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("marshaling metrics: %w", err)
	}
	raw, err := s.client.ReleaseHealth(ctx, string(payload))
	if err != nil {
		return nil, err
	}
	var n insight.Narrative
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("parsing narrative: %w", err)
	}
	return &n, nil
}
