package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive configuration errors.
var (
	ErrMissingBucket      = errors.New("archive bucket name is required")
	ErrMissingCredentials = errors.New("archive access key id and secret are required")
	ErrMissingEndpoint    = errors.New("archive endpoint is required")
)

// ArchiveConfig holds configuration for the raw snapshot archive.
type ArchiveConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string // Default: "auto"
	Prefix          string // Default: "raw"
}

// S3Archiver stores raw dataset payloads in S3-compatible object storage.
type S3Archiver struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeNow func() time.Time
}

// NewS3Archiver creates an archiver with path-style addressing so it works
// against R2 and MinIO as well as S3.
func NewS3Archiver(cfg ArchiveConfig) (*S3Archiver, error) {
	if cfg.BucketName == "" {
		return nil, ErrMissingBucket
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "raw"
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &S3Archiver{
		client:  client,
		bucket:  cfg.BucketName,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeNow: time.Now,
	}, nil
}

// ObjectKey returns the key a payload fetched at t is stored under:
// {prefix}/{dataset}/{UTC timestamp}.geojson.
func (a *S3Archiver) ObjectKey(dataset string, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s.geojson", a.prefix, dataset, t.UTC().Format("20060102T150405Z"))
}

// Archive uploads payload and returns its object key.
func (a *S3Archiver) Archive(ctx context.Context, dataset string, payload []byte) (string, error) {
	key := a.ObjectKey(dataset, a.timeNow())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/geo+json"),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
