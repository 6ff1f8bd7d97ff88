package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

// NewMinioStorage 创建 MinIO 存储, bucket 不存在时自动创建
func NewMinioStorage(ctx context.Context, cfg config.MinioConfig, log logger.Logger) (*MinioStorage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("minio bucket name is empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     log.Named("minio"),
	}, nil
}

// Store implements Storage.Store
func (m *MinioStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, key, reader, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		m.logger.Error("Failed to store file to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Get implements Storage.Get
func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	// GetObject is lazy, Stat surfaces missing keys here
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return obj, nil
}

// Delete implements Storage.Delete
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		m.logger.Error("Failed to delete file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// CleanupBefore implements Storage.CleanupBefore
func (m *MinioStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	for obj := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			m.logger.Error("Error listing objects",
				logger.String("bucket", m.bucketName),
				logger.Error(obj.Err),
			)
			continue
		}
		if !obj.LastModified.Before(threshold) {
			continue
		}
		if err := m.Delete(ctx, obj.Key); err != nil {
			continue
		}
		m.logger.Info("Deleted expired object",
			logger.String("key", obj.Key),
			logger.Time("lastModified", obj.LastModified),
		)
	}
	return nil
}
