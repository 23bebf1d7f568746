package logger

import (
	"io"
	"os"
	"strconv"
)

// Config holds logger configuration.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // explicit output; overrides stdout/file selection
	ServiceName string    // service name for log tagging

	// Environment: local, dev, prod. File output is only used outside local.
	Environment string
	File        FileConfig
}

// FileConfig controls rotated file output.
type FileConfig struct {
	Path       string
	Only       bool // skip stdout when writing to the file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "moodtune",
		Environment: "local",
	}
}

// ConfigFromEnv reads logger configuration from environment variables.
// Unset or malformed variables fall back to DefaultConfig values.
func ConfigFromEnv() *Config {
	def := DefaultConfig()
	return &Config{
		Level:       getEnv("LOG_LEVEL", def.Level),
		Format:      getEnv("LOG_FORMAT", def.Format),
		ServiceName: getEnv("SERVICE_NAME", def.ServiceName),
		Environment: getEnv("APP_ENV", def.Environment),
		File: FileConfig{
			Path:       getEnv("LOG_FILE", "/var/log/moodtune/app.log"),
			Only:       getEnvBool("LOG_FILE_ONLY", false),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}
