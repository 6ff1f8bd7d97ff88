package config

import "time"

const (
	OCRProviderOCRSpace = "ocrspace"
	OCRProviderTextract = "textract"
)

// OCRConfig covers the remote OCR provider and the local OCR service.
type OCRConfig struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	// APIKey 为空时请求不带 apikey 字段
	APIKey   string `yaml:"apiKey"`
	Language string `yaml:"language"`
	Engine   string `yaml:"engine"`
	// Timeout bounds one OCR HTTP call; 0 disables it.
	Timeout time.Duration `yaml:"timeout"`
	// LocalServiceURL is the first-party /api/v1/ocr endpoint used in browser context.
	LocalServiceURL string `yaml:"localServiceURL"`
}

type TextractConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	// MinConfidence drops LINE blocks below this score
	MinConfidence float32 `yaml:"minConfidence"`
}
