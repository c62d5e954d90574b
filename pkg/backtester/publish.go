package backtester

import (
	"context"

	"github.com/ridopark/algoreplay/pkg/status"
)

// Destinations selects where an artifact is stored
type Destinations struct {
	File        bool `yaml:"file" json:"file"`
	Cache       bool `yaml:"cache" json:"cache"`
	ObjectStore bool `yaml:"object_store" json:"object_store"`
	Notify      bool `yaml:"notify" json:"notify"`
}

// Any reports whether at least one destination is enabled
func (d Destinations) Any() bool {
	return d.File || d.Cache || d.ObjectStore || d.Notify
}

// PublishRequest describes one artifact to store
type PublishRequest struct {
	Label        string
	Destinations Destinations
	Compress     bool
}

// ArtifactStore stores a labelled artifact and reports SUCCESS, a
// destination failure code, or NOT_RUN when every destination is disabled.
// The engine never retries a store call.
type ArtifactStore interface {
	Store(ctx context.Context, req PublishRequest, payload any) status.Code
}
