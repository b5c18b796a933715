package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Capture       CaptureConfig       `yaml:"capture"`
	VAD           VADConfig           `yaml:"vad"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains WebSocket ingest server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	ReadBufferSize int    `yaml:"read_buffer_size"` // bytes
	MaxSessions    int    `yaml:"max_sessions"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// CaptureConfig contains capture pipeline parameters
type CaptureConfig struct {
	ChunkInterval  float64 `yaml:"chunk_interval"`  // seconds
	PipeBuffer     int     `yaml:"pipe_buffer"`     // frames
	SessionTimeout int     `yaml:"session_timeout"` // seconds
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold   float64 `yaml:"threshold"` // signal level on the 0-255 scale
	StartFrames int     `yaml:"start_frames"`
	StopFrames  int     `yaml:"stop_frames"`
}

// TranscriptConfig contains transcript assembly configuration
type TranscriptConfig struct {
	MergeWindow float64 `yaml:"merge_window"` // seconds
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcript.Validate(); err != nil {
		return fmt.Errorf("transcript config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates ingest server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.ReadBufferSize < 1024 {
		return fmt.Errorf("read_buffer_size must be at least 1024 bytes, got %d", s.ReadBufferSize)
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.ChunkInterval <= 0 {
		return fmt.Errorf("chunk_interval must be positive, got %f", c.ChunkInterval)
	}

	if c.PipeBuffer < 0 {
		return fmt.Errorf("pipe_buffer cannot be negative, got %d", c.PipeBuffer)
	}

	if c.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", c.SessionTimeout)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 255 {
		return fmt.Errorf("threshold must be between 0 and 255, got %f", v.Threshold)
	}

	if v.StartFrames < 1 {
		return fmt.Errorf("start_frames must be at least 1, got %d", v.StartFrames)
	}

	if v.StopFrames < 1 {
		return fmt.Errorf("stop_frames must be at least 1, got %d", v.StopFrames)
	}

	return nil
}

// Validate validates transcript configuration
func (t *TranscriptConfig) Validate() error {
	if t.MergeWindow <= 0 {
		return fmt.Errorf("merge_window must be positive, got %f", t.MergeWindow)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetChunkInterval returns the chunk slicing interval as a time.Duration
func (c *CaptureConfig) GetChunkInterval() time.Duration {
	return time.Duration(c.ChunkInterval * float64(time.Second))
}

// GetSessionTimeout returns the session timeout as a time.Duration
func (c *CaptureConfig) GetSessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

// GetMergeWindow returns the fragment merge window as a time.Duration
func (t *TranscriptConfig) GetMergeWindow() time.Duration {
	return time.Duration(t.MergeWindow * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
