// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds settings for outbound fetches made by the input adapters.
type HTTPConfig struct {
	// Timeout bounds a single fetch, including redirects.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every fetch.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRedirects caps the redirect chain; the fetch fails beyond it.
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects" mapstructure:"max_redirects"`
}

// NormalizeConfig holds settings for the four input adapters.
type NormalizeConfig struct {
	// URL configures study page fetches (default 30s, 5 redirects).
	URL HTTPConfig `json:"url" yaml:"url" mapstructure:"url"`

	// DOI configures registry lookups (default 15s).
	DOI HTTPConfig `json:"doi" yaml:"doi" mapstructure:"doi"`

	// OpenAlexEmail is sent as mailto for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
}

// ProviderConfig holds settings for the external analysis provider.
type ProviderConfig struct {
	// BaseURL is the provider API root (e.g. "https://api.anthropic.com").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates requests. Usually loaded from .secrets/ or env.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// Timeout is the absolute deadline of one provider call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries after the first attempt (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is doubled on every retry (default 500ms).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`

	// MaxJitter is the upper bound of the random delay added to each retry (default 1s).
	MaxJitter time.Duration `json:"max_jitter" yaml:"max_jitter" mapstructure:"max_jitter"`

	// RateLimitRPS paces outbound attempts across all requests. Zero disables pacing.
	RateLimitRPS   float64 `json:"rate_limit_rps" yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// CacheConfig holds settings for the analysis cache.
type CacheConfig struct {
	// TTL is how long a cached analysis stays valid (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// SweepInterval is how often expired entries are purged in server mode.
	// Zero disables the background sweep.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr        string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout bounds one whole request, analysis included. It must be
	// at least Config.MinWriteTimeout; serve raises it when it is not.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies; PDFs arrive base64-encoded.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// Config groups all settings for the trust-engine pipeline and its surfaces.
type Config struct {
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	Provider  ProviderConfig  `json:"provider" yaml:"provider" mapstructure:"provider"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// rateLimitAllowance covers time spent waiting on the provider rate limiter.
const rateLimitAllowance = time.Minute

// MaxAnalysisTime is the longest one provider phase can take when every
// attempt runs to its timeout: MaxRetries+1 calls plus the largest backoff
// before each retry.
func (p ProviderConfig) MaxAnalysisTime() time.Duration {
	total := time.Duration(p.MaxRetries+1) * p.Timeout
	for attempt := range p.MaxRetries {
		total += p.RetryBaseDelay<<attempt + p.MaxJitter
	}
	return total
}

// MinWriteTimeout is the server write timeout that lets a slow but valid
// analysis finish: the adapter fetches (a DOI makes two lookups), the
// provider worst case, and an allowance for rate-limit waits.
func (c Config) MinWriteTimeout() time.Duration {
	fetch := max(c.Normalize.URL.Timeout, 2*c.Normalize.DOI.Timeout)
	return fetch + c.Provider.MaxAnalysisTime() + rateLimitAllowance
}

// DefaultUserAgent identifies trust-engine to study hosts and registries.
const DefaultUserAgent = "Mozilla/5.0 (compatible; trust-engine/0.1; +study-analysis)"

// DefaultConfig returns the configuration used when no file or flag overrides it.
func DefaultConfig() Config {
	return Config{
		Normalize: NormalizeConfig{
			URL: HTTPConfig{Timeout: 30 * time.Second, UserAgent: DefaultUserAgent, MaxRedirects: 5},
			DOI: HTTPConfig{Timeout: 15 * time.Second, UserAgent: DefaultUserAgent, MaxRedirects: 5},
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.anthropic.com",
			Model:          "claude-sonnet-4-5",
			MaxTokens:      8192,
			Temperature:    0.2,
			Timeout:        5 * time.Minute,
			MaxRetries:     2,
			RetryBaseDelay: 500 * time.Millisecond,
			MaxJitter:      time.Second,
			RateLimitRPS:   2,
			RateLimitBurst: 4,
		},
		Cache: CacheConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    20 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    40 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}
