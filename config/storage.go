package config

import (
	"os"
	"strconv"
	"time"
)

// StorageConfig selects the object store holding uploads and job results.
type StorageConfig struct {
	// Type 为 "s3", "minio" 或 "memory"
	Type string `yaml:"type"`
	// Retention 之前的对象会被清理, 0 表示不清理
	Retention time.Duration `yaml:"retention"`
	S3        S3Config      `yaml:"s3"`
	Minio     MinioConfig   `yaml:"minio"`
}

type S3Config struct {
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
}

type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

func (s *StorageConfig) applyEnv() {
	setString(&s.Type, "STORAGE_TYPE")

	setString(&s.S3.BucketName, "AWS_S3_BUCKET_NAME")
	setString(&s.S3.Region, "AWS_REGION")
	setString(&s.S3.Endpoint, "AWS_ENDPOINT")
	setString(&s.S3.AccessKey, "AWS_ACCESS_KEY")
	setString(&s.S3.SecretKey, "AWS_SECRET_KEY")

	setString(&s.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&s.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&s.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&s.Minio.Region, "MINIO_REGION")
	setString(&s.Minio.BucketName, "MINIO_BUCKET_NAME")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		s.Minio.UseSSL, _ = strconv.ParseBool(v)
	}
}
