package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/session"
)

const snapshotPrefix = "sessions/"

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps snapshots as JSON objects under sessions/ in one bucket.
type MinioStore struct {
	mc     *minio.Client
	bucket string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "conductor-sessions"
	}

	return &MinioStore{mc: mc, bucket: bucket}, nil
}

// Init creates the bucket if it doesn't exist
func (s *MinioStore) Init(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}

	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		logger.Info("bucket created", "bucket", s.bucket)
	}

	return nil
}

func objectName(sessionID string) string {
	return snapshotPrefix + sessionID + ".json"
}

func (s *MinioStore) Save(ctx context.Context, c *session.Context) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return persistErr("save", c.SessionID, err)
	}

	_, err = s.mc.PutObject(ctx, s.bucket, objectName(c.SessionID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return persistErr("save", c.SessionID, err)
	}

	logger.Debug("snapshot uploaded", "bucket", s.bucket, "session", c.SessionID, "size", len(data))
	return nil
}

func (s *MinioStore) Load(ctx context.Context, sessionID string) (*session.Context, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, objectName(sessionID), minio.GetObjectOptions{})
	if err != nil {
		return nil, persistErr("load", sessionID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, persistErr("load", sessionID, err)
	}

	return decode(sessionID, data)
}

func (s *MinioStore) Delete(ctx context.Context, sessionID string) error {
	err := s.mc.RemoveObject(ctx, s.bucket, objectName(sessionID), minio.RemoveObjectOptions{})
	return persistErr("delete", sessionID, err)
}

// Healthy checks if MinIO is reachable
func (s *MinioStore) Healthy(ctx context.Context) bool {
	_, err := s.mc.BucketExists(ctx, s.bucket)
	return err == nil
}
