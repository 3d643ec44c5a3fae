// Package backup periodically uploads a JSON snapshot of the authoritative
// store to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/cuesync/internal/cryptox"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/models"
	sc "github.com/dmitrijs2005/cuesync/internal/server/config"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Source provides the records to back up.
type Source interface {
	Snapshot(ctx context.Context) (map[models.Kind][]models.Record, error)
}

// Uploader is the part of *s3.Client used here.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Snapshot is the document written to the bucket.
type Snapshot struct {
	TakenAt    time.Time           `json:"taken_at"`
	Characters []*models.Character `json:"characters"`
	Cues       []*models.Cue       `json:"cues"`
}

type Snapshotter struct {
	source   Source
	uploader Uploader
	bucket   string
	key      []byte
	interval time.Duration
	logger   logging.Logger
	now      func() time.Time
}

// NewS3Client builds an S3 client for the configured endpoint using
// static credentials.
func NewS3Client(ctx context.Context, cfg *sc.Config) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// New creates a Snapshotter. A non-empty hex key enables AES-GCM
// encryption of the uploaded documents.
func New(source Source, uploader Uploader, cfg *sc.Config, logger logging.Logger) (*Snapshotter, error) {
	s := &Snapshotter{
		source:   source,
		uploader: uploader,
		bucket:   cfg.S3Bucket,
		interval: cfg.BackupInterval,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.BackupKey != "" {
		key, err := hex.DecodeString(cfg.BackupKey)
		if err != nil {
			return nil, fmt.Errorf("backup key: %w", err)
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("backup key must be 16, 24 or 32 bytes, got %d", len(key))
		}
		s.key = key
	}
	return s, nil
}

// Run takes a backup every interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key, err := s.Backup(ctx)
			if err != nil {
				s.logger.Error(ctx, "Backup failed", "error", err)
				continue
			}
			s.logger.Info(ctx, "Backup uploaded", "bucket", s.bucket, "key", key)
		}
	}
}

// Backup uploads one snapshot and returns its object key.
func (s *Snapshotter) Backup(ctx context.Context) (string, error) {
	recs, err := s.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}

	snap := Snapshot{TakenAt: s.now().UTC()}
	for _, r := range recs[models.KindCharacter] {
		if c, ok := r.(*models.Character); ok {
			snap.Characters = append(snap.Characters, c)
		}
	}
	for _, r := range recs[models.KindCue] {
		if c, ok := r.(*models.Cue); ok {
			snap.Cues = append(snap.Cues, c)
		}
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}

	contentType := "application/json"
	if s.key != nil {
		body, err = cryptox.Seal(body, s.key)
		if err != nil {
			return "", fmt.Errorf("encrypting snapshot: %w", err)
		}
		contentType = "application/octet-stream"
	}

	key := s.objectKey(snap.TakenAt)
	_, err = s.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	return key, nil
}

func (s *Snapshotter) objectKey(t time.Time) string {
	return fmt.Sprintf("snapshots/%d/%02d/%02d/%s-%s.json", t.Year(), t.Month(), t.Day(), t.Format("150405"), uuid.NewString())
}
