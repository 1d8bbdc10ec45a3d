// Package store persists frames, samples, and draw runs.
package store

import (
	"context"

	"github.com/price-stats/sampling-cli/internal/model"
)

// Store defines the persistence interface for the sampling pipeline.
type Store interface {
	// Frames
	SaveFrame(ctx context.Context, f *model.Frame) error
	GetFrame(ctx context.Context, frameID string) (*model.Frame, error)
	LatestFrame(ctx context.Context) (*model.Frame, error)

	// Samples
	SaveSample(ctx context.Context, s *model.Sample) error
	GetSample(ctx context.Context, sampleID string) (*model.Sample, error)
	// RecentSamples returns up to limit samples, most recent first.
	// Rotation reads its history from here.
	RecentSamples(ctx context.Context, limit int) ([]model.Sample, error)

	// Draw runs
	CreateDrawRun(ctx context.Context, frameID string, seed int64) (*model.DrawRun, error)
	CompleteDrawRun(ctx context.Context, runID, sampleID string, unitCount int) error
	FailDrawRun(ctx context.Context, runID string, cause error) error
	ListDrawRuns(ctx context.Context, limit int) ([]model.DrawRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
