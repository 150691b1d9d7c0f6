// Package backup uploads database backups to S3.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/clubvest/brokersync/internal/config"
	"github.com/clubvest/brokersync/internal/database"
	"github.com/rs/zerolog"
)

// Service uploads the SQLite database file to an S3 bucket. The WAL is
// checkpointed with TRUNCATE first so the main file alone is a complete,
// consistent copy.
type Service struct {
	db       *database.DB
	uploader *manager.Uploader
	cfg      config.BackupConfig
	log      zerolog.Logger
}

// NewService creates a new backup service. Static credentials from the
// config win over the default AWS credential chain when present.
func NewService(ctx context.Context, cfg config.BackupConfig, db *database.DB, log zerolog.Logger) (*Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &Service{
		db:       db,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		log:      log.With().Str("component", "backup").Logger(),
	}, nil
}

// Run checkpoints the WAL and uploads the database file. The object key
// includes a UTC timestamp so each backup is kept.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("checkpoint before backup failed: %w", err)
	}

	file, err := os.Open(s.db.Path())
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s",
		s.cfg.Prefix,
		time.Now().UTC().Format("20060102-150405"),
		filepath.Base(s.db.Path()))

	start := time.Now()
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Str("bucket", s.cfg.Bucket).
		Str("key", key).
		Int64("bytes", stat.Size()).
		Dur("took", time.Since(start)).
		Msg("Database backup uploaded")

	return nil
}
