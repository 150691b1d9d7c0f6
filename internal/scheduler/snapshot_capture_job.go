package scheduler

import (
	"fmt"

	"github.com/clubvest/brokersync/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// SnapshotCaptureJob records end-of-day balance snapshots
type SnapshotCaptureJob struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewSnapshotCaptureJob creates a new snapshot capture job
func NewSnapshotCaptureJob(service *snapshots.Service, log zerolog.Logger) *SnapshotCaptureJob {
	return &SnapshotCaptureJob{
		service: service,
		log:     log.With().Str("job", "snapshot-capture").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotCaptureJob) Name() string {
	return "snapshot-capture"
}

// Run captures today's snapshots. Duplicates are expected when the job
// reruns within a day and do not fail the run.
func (j *SnapshotCaptureJob) Run() error {
	result, err := j.service.CaptureSnapshots("")
	if err != nil {
		return fmt.Errorf("snapshot capture failed: %w", err)
	}

	if !result.OK {
		return fmt.Errorf("snapshot capture finished with %d account errors", len(result.Errors))
	}

	j.log.Info().
		Int("captured", result.Captured).
		Int("duplicates", result.Duplicates).
		Msg("Scheduled snapshot capture completed")
	return nil
}
