package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/backup"
	"github.com/rs/zerolog"
)

// BackupJob uploads a database backup to S3
type BackupJob struct {
	service *backup.Service
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *backup.Service, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "s3-backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "s3-backup"
}

// Run uploads one backup with an upper bound on upload time
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.service.Run(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}
