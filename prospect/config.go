package prospect

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fetch modes.
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

// Config configures the prospect service.
type Config struct {
	// DataDir is the root directory holding one <tenant>.db per tenant.
	DataDir string `yaml:"data_dir"`

	Fetch FetchConfig `yaml:"fetch"`

	// LLM configures the pain-point extractor. An empty endpoint keeps the
	// placeholder extractor.
	LLM LLMConfig `yaml:"llm"`

	// RegionHints override the content-region selectors tried in order.
	RegionHints []string `yaml:"region_hints"`

	// StripTags override the elements removed before region selection.
	StripTags []string `yaml:"strip_tags"`
}

// FetchConfig configures page retrieval for Crawl.
type FetchConfig struct {
	Mode      string        `yaml:"mode"`    // "http" (default) or "browser"
	Timeout   time.Duration `yaml:"timeout"` // Default: 30s.
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
	// BrowserURL is the DevTools WebSocket of a running Chrome. Empty
	// launches a local headless Chrome in browser mode.
	BrowserURL string `yaml:"browser_url"`
}

// LLMConfig addresses an Azure-OpenAI-compatible chat completions deployment.
type LLMConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"` // deployment name
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
	// MaxInputChars truncates the text sent to the model. Default: 12000.
	MaxInputChars int `yaml:"max_input_chars"`
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = "client_dbs"
	}
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = FetchHTTP
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 * 1024 * 1024
	}
	c.LLM.defaults()
}

func (c *LLMConfig) defaults() {
	if c.APIVersion == "" {
		c.APIVersion = "2024-02-01"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 12000
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
