package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Face detector backends.
const (
	BackendPigo = "pigo"
	BackendGoCV = "gocv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64
	CORSOrigins        []string

	ThresholdsFile     string
	ThresholdsFallback bool

	Backend   string
	ModelsDir string
	// YuNetModel and FaceMeshModel are resolved against ModelsDir unless absolute.
	YuNetModel     string
	FaceMeshModel  string
	FaceMeshInput  string
	FaceMeshOutput string
	ONNXRuntimeLib string

	DebugDir       string
	DebugNamespace bool
	DebugContainer string

	AzureAccount string
	AzureKey     string
	AzureURL     string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ModelPath resolves name against ModelsDir. Empty names stay empty.
func (c *Config) ModelPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

// AzureEnabled reports whether blob storage credentials are present.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		CORSOrigins:        parseListOrDefault("CORS_ALLOW_ORIGINS", []string{"*"}),

		ThresholdsFile:     getEnvOrDefault("FACEQA_THRESHOLDS_FILE", "config.json"),
		ThresholdsFallback: parseBoolOrDefault("FACEQA_THRESHOLDS_FALLBACK", false),

		Backend:        strings.ToLower(getEnvOrDefault("FACEQA_BACKEND", BackendPigo)),
		ModelsDir:      getEnvOrDefault("FACEQA_MODELS_DIR", "models"),
		YuNetModel:     getEnvOrDefault("FACEQA_YUNET_MODEL", "face_detection_yunet_2023mar.onnx"),
		FaceMeshModel:  getEnvOrDefault("FACEQA_FACEMESH_MODEL", "face_mesh.onnx"),
		FaceMeshInput:  getEnvOrDefault("FACEQA_FACEMESH_INPUT", "input_1"),
		FaceMeshOutput: getEnvOrDefault("FACEQA_FACEMESH_OUTPUT", "conv2d_21"),
		ONNXRuntimeLib: os.Getenv("ONNXRUNTIME_LIB"),

		DebugDir:       os.Getenv("FACEQA_DEBUG_DIR"),
		DebugNamespace: parseBoolOrDefault("FACEQA_DEBUG_NAMESPACE", true),
		DebugContainer: os.Getenv("FACEQA_DEBUG_CONTAINER"),

		AzureAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:     os.Getenv("AZURE_STORAGE_KEY"),
		AzureURL:     os.Getenv("AZURE_STORAGE_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values LoadFromEnv cannot default its way around.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.Backend != BackendPigo && c.Backend != BackendGoCV {
		return fmt.Errorf("FACEQA_BACKEND must be %q or %q (got %q)", BackendPigo, BackendGoCV, c.Backend)
	}
	if strings.TrimSpace(c.ThresholdsFile) == "" {
		return fmt.Errorf("FACEQA_THRESHOLDS_FILE must not be empty")
	}
	if c.DebugContainer != "" && !c.AzureEnabled() {
		return fmt.Errorf("FACEQA_DEBUG_CONTAINER requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseListOrDefault splits a comma separated variable, dropping empty items.
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
