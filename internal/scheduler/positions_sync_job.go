package scheduler

import (
	"fmt"

	"github.com/clubvest/brokersync/internal/modules/sync"
	"github.com/rs/zerolog"
)

// PositionsSyncJob runs the nightly position synchronization
type PositionsSyncJob struct {
	service *sync.Service
	log     zerolog.Logger
}

// NewPositionsSyncJob creates a new positions sync job
func NewPositionsSyncJob(service *sync.Service, log zerolog.Logger) *PositionsSyncJob {
	return &PositionsSyncJob{
		service: service,
		log:     log.With().Str("job", "positions-sync").Logger(),
	}
}

// Name returns the job name
func (j *PositionsSyncJob) Name() string {
	return "positions-sync"
}

// Run synchronizes positions for today. A run that finished with
// per-account errors is surfaced as a job failure so it shows up in the
// scheduler log, even though the successful accounts were written.
func (j *PositionsSyncJob) Run() error {
	result, err := j.service.SyncAllAccounts("")
	if err != nil {
		return fmt.Errorf("positions sync failed: %w", err)
	}

	if !result.OK {
		return fmt.Errorf("positions sync finished with %d account errors", len(result.Errors))
	}

	j.log.Info().
		Int("accounts", result.AccountsSynced).
		Int("positions", result.PositionsWritten).
		Msg("Scheduled position sync completed")
	return nil
}
