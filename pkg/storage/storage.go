package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/storage/memory"
	"github.com/feichai0017/resume-extractor/pkg/storage/minio"
	"github.com/feichai0017/resume-extractor/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3     StorageType = "s3"
	StorageTypeMinio  StorageType = "minio"
	StorageTypeMemory StorageType = "memory"
)

// Storage 接口定义
type Storage interface {
	// Store 存储文件
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get 获取文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理过期文件
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch StorageType(cfg.Type) {
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log)
	case StorageTypeMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
