// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver uploads a JSON snapshot of all reports every N polls.
type S3Archiver struct {
	logger   zerolog.Logger
	uploader objectUploader
	bucket   string
	prefix   string
	node     string
	instance string
	every    int
	now      func() time.Time

	mu    sync.Mutex
	polls int
}

func NewS3Archiver(ctx context.Context, cfg DiskHealthMetricsConfig) (*S3Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(manager.NewUploader(client), cfg), nil
}

func newS3Archiver(u objectUploader, cfg DiskHealthMetricsConfig) *S3Archiver {
	every := cfg.S3EveryNPolls
	if every <= 0 {
		every = 1
	}
	return &S3Archiver{
		logger:   log.With().Str("component", "archive").Logger(),
		uploader: u,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		node:     cfg.NodeName,
		instance: cfg.InstanceID,
		every:    every,
		now:      time.Now,
	}
}

// Publish counts polls and uploads on every Nth one, starting with the
// first.
func (a *S3Archiver) Publish(ctx context.Context, reports []DeviceReport) error {
	a.mu.Lock()
	due := a.polls%a.every == 0
	a.polls++
	a.mu.Unlock()
	if !due {
		return nil
	}

	snap := Snapshot{
		ID:         uuid.NewString(),
		NodeName:   a.node,
		InstanceID: a.instance,
		Time:       a.now().UTC(),
		Devices:    reports,
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	key := a.objectKey(snap)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error uploading snapshot to s3://%s/%s: %w", a.bucket, key, err)
	}
	a.logger.Info().Str("bucket", a.bucket).Str("key", key).Int("devices", len(reports)).Msg("snapshot_uploaded")
	return nil
}

func (a *S3Archiver) objectKey(snap Snapshot) string {
	node := a.node
	if node == "" {
		node = "unknown"
	}
	name := fmt.Sprintf("%s-%s.json", snap.Time.Format("20060102T150405Z"), snap.ID)
	return path.Join(a.prefix, node, name)
}

func (a *S3Archiver) String() string {
	return "s3://" + a.bucket
}
