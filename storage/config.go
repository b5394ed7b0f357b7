package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds buffer pool and disk manager configuration.
type Config struct {
	// Buffer Pool
	BufferPoolSize uint32 `json:"buffer_pool_size"` // Number of frames in the pool
	ReplacerK      uint32 `json:"replacer_k"`       // K for the LRU-K replacer

	// Disk
	DataDirectory string `json:"data_directory"` // Directory holding page files
	PageSize      uint32 `json:"page_size"`       // Page size in bytes (must match PageSize)
	DiskBackend   string `json:"disk_backend"`    // "file" or "mmap"
	Compression   string `json:"compression"`     // "none", "lz4", or "snappy"

	// Performance
	EnableMetrics bool   `json:"enable_metrics"` // Whether to collect performance metrics
	LogLevel      string `json:"log_level"`      // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferPoolSize: 100,
		ReplacerK:      2,
		DataDirectory:  "./data",
		PageSize:       PageSize,
		DiskBackend:    "file",
		Compression:    "none",
		EnableMetrics:  true,
		LogLevel:       "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file, starting from
// DefaultConfig and overlaying whatever fields the file sets.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables, falling
// back to DefaultConfig for anything unset.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("PAGEPOOL_BUFFER_POOL_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.BufferPoolSize = uint32(size)
		}
	}

	if val := os.Getenv("PAGEPOOL_REPLACER_K"); val != "" {
		if k, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.ReplacerK = uint32(k)
		}
	}

	if val := os.Getenv("PAGEPOOL_DATA_DIRECTORY"); val != "" {
		config.DataDirectory = val
	}

	if val := os.Getenv("PAGEPOOL_PAGE_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PageSize = uint32(size)
		}
	}

	if val := os.Getenv("PAGEPOOL_DISK_BACKEND"); val != "" {
		config.DiskBackend = val
	}

	if val := os.Getenv("PAGEPOOL_COMPRESSION"); val != "" {
		config.Compression = val
	}

	if val := os.Getenv("PAGEPOOL_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("PAGEPOOL_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// SaveToFile writes the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", " ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.BufferPoolSize == 0 {
		return fmt.Errorf("buffer pool size must be greater than 0")
	}
	if c.ReplacerK == 0 {
		return fmt.Errorf("replacer k must be greater than 0")
	}
	if c.PageSize == 0 {
		return fmt.Errorf("page size must be greater than 0")
	}
	if c.PageSize%512 != 0 {
		return fmt.Errorf("page size must be a multiple of 512")
	}
	if c.DataDirectory == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	validBackends := map[string]bool{"file": true, "mmap": true}
	if !validBackends[c.DiskBackend] {
		return fmt.Errorf("invalid disk backend: %s (must be file or mmap)", c.DiskBackend)
	}

	validCompression := map[string]bool{"none": true, "lz4": true, "snappy": true}
	if !validCompression[c.Compression] {
		return fmt.Errorf("invalid compression: %s (must be none, lz4, or snappy)", c.Compression)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// NewDiskManagerFromConfig builds the DiskManager described by c: the
// backend selected by DiskBackend ("file" or "mmap"), wrapped in a
// CompressingDiskManager when Compression names a codec other than "none".
// DataDirectory is created if it does not already exist.
func NewDiskManagerFromConfig(c *Config) (DiskManager, error) {
	if err := os.MkdirAll(c.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(c.DataDirectory, "pagepool.db")

	var dm DiskManager
	switch c.DiskBackend {
	case "mmap":
		mdm, err := NewMmapDiskManager(dbPath)
		if err != nil {
			return nil, fmt.Errorf("create mmap disk manager: %w", err)
		}
		dm = mdm
	case "file":
		fdm, err := NewFileDiskManager(dbPath)
		if err != nil {
			return nil, fmt.Errorf("create file disk manager: %w", err)
		}
		dm = fdm
	default:
		return nil, fmt.Errorf("unsupported disk backend: %s", c.DiskBackend)
	}

	switch c.Compression {
	case "lz4":
		dm = NewCompressingDiskManager(dm, CodecLZ4)
	case "snappy":
		dm = NewCompressingDiskManager(dm, CodecSnappy)
	case "none":
		// no wrapping
	default:
		return nil, fmt.Errorf("unsupported compression codec: %s", c.Compression)
	}

	return dm, nil
}
