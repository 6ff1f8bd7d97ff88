package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/resume-extractor/pkg/logger"
)

var (
	appOnce   sync.Once
	appConfig *Config
	appErr    error
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	OCR        OCRConfig        `yaml:"ocr"`
	Textract   TextractConfig   `yaml:"textract"`
	Parser     ParserConfig     `yaml:"parser"`
	Queue      QueueConfig      `yaml:"queue"`
	Storage    StorageConfig    `yaml:"storage"`
	Logger     logger.Config    `yaml:"logger"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	GRPCAddr        string        `yaml:"grpcAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

type ExtractionConfig struct {
	// Context is "browser" or "server"
	Context       string        `yaml:"context"`
	MaxFileSize   int64         `yaml:"maxFileSize"`
	NativeTimeout time.Duration `yaml:"nativeTimeout"`
	MinTextLength int           `yaml:"minTextLength"`
	MaxPages      int           `yaml:"maxPages"`
}

type ParserConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	RedisAddr      string         `yaml:"redisAddr"`
	RedisDB        int            `yaml:"redisDB"`
	MaxRetries     int            `yaml:"maxRetries"`
	RetryDelay     time.Duration  `yaml:"retryDelay"`
	ProcessTimeout time.Duration  `yaml:"processTimeout"`
	Concurrency    int            `yaml:"concurrency"`
	StatusTTL      time.Duration  `yaml:"statusTTL"`
	Queues         map[string]int `yaml:"queues"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Extraction: ExtractionConfig{
			Context:       "server",
			MaxFileSize:   1 << 20,
			NativeTimeout: 15 * time.Second,
			MinTextLength: 50,
			MaxPages:      50,
		},
		OCR: OCRConfig{
			Provider:        OCRProviderOCRSpace,
			Endpoint:        "https://api.ocr.space/parse/image",
			Language:        "eng",
			Engine:          "2",
			Timeout:         60 * time.Second,
			LocalServiceURL: "http://localhost:8080/api/v1/ocr",
		},
		Textract: TextractConfig{
			MinConfidence: 50,
		},
		Parser: ParserConfig{
			Provider: "googleai",
			Model:    "gemini-2.5-flash",
			Timeout:  30 * time.Second,
		},
		Queue: QueueConfig{
			RedisAddr:      "localhost:6379",
			MaxRetries:     3,
			RetryDelay:     time.Minute,
			ProcessTimeout: 5 * time.Minute,
			Concurrency:    10,
			StatusTTL:      24 * time.Hour,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
		Storage: StorageConfig{
			Type: "s3",
		},
		Logger: logger.Config{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	loadDotEnv()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get loads the process-wide config once, from CONFIG_PATH when set.
func Get() (*Config, error) {
	appOnce.Do(func() {
		appConfig, appErr = Load(os.Getenv("CONFIG_PATH"))
	})
	return appConfig, appErr
}

// Validate checks values that would make the pipeline misbehave.
func (c *Config) Validate() error {
	if c.Extraction.MaxFileSize <= 0 {
		return errors.New("extraction.maxFileSize must be positive")
	}
	if c.Extraction.NativeTimeout <= 0 {
		return errors.New("extraction.nativeTimeout must be positive")
	}
	switch c.Extraction.Context {
	case "browser", "server":
	default:
		return fmt.Errorf("extraction.context must be browser or server, got %q", c.Extraction.Context)
	}
	switch c.OCR.Provider {
	case OCRProviderOCRSpace, OCRProviderTextract:
	default:
		return fmt.Errorf("unsupported ocr.provider %q", c.OCR.Provider)
	}
	if c.OCR.Timeout < 0 {
		return errors.New("ocr.timeout must not be negative")
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Server.GRPCAddr, "GRPC_ADDR")
	setString(&c.Extraction.Context, "EXTRACTION_CONTEXT")
	setInt64(&c.Extraction.MaxFileSize, "EXTRACTION_MAX_FILE_SIZE")
	setDuration(&c.Extraction.NativeTimeout, "EXTRACTION_NATIVE_TIMEOUT")

	setString(&c.OCR.Provider, "OCR_PROVIDER")
	setString(&c.OCR.Endpoint, "OCR_ENDPOINT")
	setString(&c.OCR.APIKey, "OCR_API_KEY")
	setDuration(&c.OCR.Timeout, "OCR_TIMEOUT")
	setString(&c.OCR.LocalServiceURL, "OCR_LOCAL_SERVICE_URL")

	setString(&c.Textract.Region, "AWS_REGION")
	setString(&c.Textract.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.Textract.SecretKey, "AWS_SECRET_KEY")
	setString(&c.Textract.Endpoint, "AWS_TEXTRACT_ENDPOINT")

	setString(&c.Parser.APIKey, "GEMINI_API_KEY")
	setString(&c.Parser.Model, "PARSER_MODEL")
	if v := os.Getenv("PARSER_ENABLED"); v != "" {
		c.Parser.Enabled, _ = strconv.ParseBool(v)
	}

	setString(&c.Queue.RedisAddr, "REDIS_ADDR")

	c.Storage.applyEnv()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

var dotEnvOnce sync.Once

// loadDotEnv loads .env from the working directory, then the project root.
func loadDotEnv() {
	dotEnvOnce.Do(func() {
		if err := godotenv.Load(); err == nil {
			return
		}
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}
	})
}
