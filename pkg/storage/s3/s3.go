package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// API is the part of the S3 client the storage uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type S3Storage struct {
	client     API
	bucketName string
	logger     logger.Logger
}

// New wraps an existing client.
func New(client API, bucket string, log logger.Logger) *S3Storage {
	if log == nil {
		log = logger.NewNop()
	}
	return &S3Storage{
		client:     client,
		bucketName: bucket,
		logger:     log.Named("s3"),
	}
}

// NewS3Storage 根据配置创建 S3 存储并校验 bucket
func NewS3Storage(ctx context.Context, cfg config.S3Config, log logger.Logger) (*S3Storage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("s3 bucket name is empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// 验证 bucket 是否存在
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	st := New(client, cfg.BucketName, log)
	st.logger.Info("S3 storage ready",
		logger.String("bucket", cfg.BucketName),
		logger.String("region", cfg.Region),
		logger.String("endpoint", cfg.Endpoint),
	)
	return st, nil
}

// Store 实现 Storage 接口的 Store 方法
func (s *S3Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		s.logger.Error("Failed to store file to S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Get 实现 Storage 接口的 Get 方法
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to get file from S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return result.Body, nil
}

// Delete 实现 Storage 接口的 Delete 方法
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to delete file from S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// CleanupBefore 删除最后修改时间早于 threshold 的对象
func (s *S3Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.Error("Failed to list objects",
				logger.String("bucket", s.bucketName),
				logger.Error(err),
			)
			return fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(threshold) {
				continue
			}
			key := aws.ToString(obj.Key)
			if err := s.Delete(ctx, key); err != nil {
				continue
			}
			s.logger.Info("Deleted expired object",
				logger.String("key", key),
				logger.Time("lastModified", *obj.LastModified),
			)
		}
	}
	return nil
}
