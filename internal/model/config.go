package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all lexbrief settings.
// Values come from flags, LEXBRIEF_* env vars, the config file, then these defaults.
type Config struct {
	DataDir string        `yaml:"data_dir" mapstructure:"data_dir"`
	Session string        `yaml:"session" mapstructure:"session"`
	Sources []string      `yaml:"default_sources" mapstructure:"default_sources"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the completion provider shared by both stages
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, groq, gemini, anthropic, ollama
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"-" mapstructure:"api_key"` // Never written to the config file
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int           `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimit   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Shared across sessions, 0 disables
	CacheTTL    time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`                     // 0 disables response caching
}

// IndexConfig configures the bundled knowledge index
type IndexConfig struct {
	TopK         int    `yaml:"top_k" mapstructure:"top_k"`
	ChunkSize    int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	PDFTool      string `yaml:"pdf_tool" mapstructure:"pdf_tool"`
}

// HistoryConfig configures the history store
type HistoryConfig struct {
	Limit         int  `yaml:"limit" mapstructure:"limit"`
	KeepRetrieval bool `yaml:"keep_retrieval" mapstructure:"keep_retrieval"` // Store the stage-one JSON beside each entry
}

// HTTPConfig configures remote document fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	PerHostRate   float64       `yaml:"per_host_rate" mapstructure:"per_host_rate"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the fetch cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// BatchConfig configures batch query runs
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	ShowRetrieval bool `yaml:"show_retrieval" mapstructure:"show_retrieval"`
}

// DefaultSources are the legal guides every new session starts with
var DefaultSources = []string{
	"https://kb.icai.org/pdfs/PDFFile5b28c9ce64e524.54675199.pdf",
	"https://www.cyrilshroff.com/wp-content/uploads/2020/09/Guide-to-Litigation-in-India.pdf",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dataDir := ".lexbrief"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".lexbrief", "data")
	}

	return &Config{
		DataDir: dataDir,
		Session: "default",
		Sources: append([]string(nil), DefaultSources...),
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "",
			Timeout:     120,
			Temperature: 0.25,
			MaxTokens:   4096,
			RateLimit:   0,
			CacheTTL:    time.Hour,
		},
		Index: IndexConfig{
			TopK:         8,
			ChunkSize:    1000,
			ChunkOverlap: 200,
			PDFTool:      "pdftotext",
		},
		History: HistoryConfig{
			Limit:         10,
			KeepRetrieval: true,
		},
		HTTP: HTTPConfig{
			Timeout:       60 * time.Second,
			UserAgent:     "lexbrief/0.1 (+https://github.com/ppiankov/lexbrief)",
			MaxBodyBytes:  50 << 20,
			RespectRobots: true,
			PerHostRate:   1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxUploadBytes: 50 << 20,
		},
	}
}

// UploadsDir is where uploaded buffers are persisted
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// HistoryDir is the root of per-session history directories
func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "history")
}

// SessionsDir holds per-session source sets
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// IndexPath is the SQLite database backing the knowledge index
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index", "knowledge.db")
}

// CacheDir holds fetched documents
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}
