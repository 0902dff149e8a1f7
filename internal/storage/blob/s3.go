package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/observation-tools/observation-tools/model"
)

// S3Config configures the S3-compatible blob backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// S3 stores objects in an S3-compatible bucket (MinIO, AWS, ...). Keys
// mirror the filesystem layout: {observation_id}/{payload_id}.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects to the endpoint and ensures the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: connect to %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blob: create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads the object.
func (s *S3) Put(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(observationID, payloadID), r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("blob: put object: %w", err)
	}
	return nil
}

// Get opens the object for reading.
func (s *S3) Get(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(observationID, payloadID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob: get object: %w", err)
	}
	// GetObject is lazy; surface missing objects now.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: stat object: %w", err)
	}
	return obj, nil
}
