// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the trust-engine CLI. The analyze
// command scores one study from the command line; serve exposes the same
// pipeline over HTTP.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/trust-engine/internal/analysis"
	"github.com/pdiddy/trust-engine/internal/cache"
	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/internal/normalize"
	"github.com/pdiddy/trust-engine/internal/observability"
	"github.com/pdiddy/trust-engine/internal/pipeline"
	"github.com/pdiddy/trust-engine/internal/secrets"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the effective configuration after defaults, file, env, and flags.
	cfg types.Config

	logger zerolog.Logger

	// loadedSecrets holds values read from .secrets/ at startup.
	loadedSecrets secrets.Store
)

var rootCmd = &cobra.Command{
	Use:   "trust-engine",
	Short: "Score the trustworthiness of scientific studies",
	Long: `trust-engine ingests a scientific study by URL, DOI, PDF, or pasted text,
normalizes it, validates its metadata and citations, asks an analysis
provider to assess it, and computes a 0-100 trust score with a category
breakdown, detected flaws, and narrative summaries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.LoadDotEnv(".env"); err != nil {
			return err
		}
		if err := loadConfig(); err != nil {
			return err
		}
		logger = observability.NewLogger(cfg.Logging)

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./trust-engine.yaml or ~/.config/trust-engine/trust-engine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or console")
	rootCmd.PersistentFlags().String("model", "", "analysis provider model")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("provider.model", rootCmd.PersistentFlags().Lookup("model"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trust-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "trust-engine"))
		}
	}

	viper.SetEnvPrefix("TRUST_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables such as
// TRUST_ENGINE_PROVIDER_MODEL are seen by Unmarshal.
func setDefaults(d types.Config) {
	defaults := map[string]any{
		"normalize.url.timeout":       d.Normalize.URL.Timeout,
		"normalize.url.user_agent":    d.Normalize.URL.UserAgent,
		"normalize.url.max_redirects": d.Normalize.URL.MaxRedirects,
		"normalize.doi.timeout":       d.Normalize.DOI.Timeout,
		"normalize.doi.user_agent":    d.Normalize.DOI.UserAgent,
		"normalize.doi.max_redirects": d.Normalize.DOI.MaxRedirects,
		"normalize.openalex_email":    d.Normalize.OpenAlexEmail,
		"provider.base_url":           d.Provider.BaseURL,
		"provider.model":              d.Provider.Model,
		"provider.api_key":            d.Provider.APIKey,
		"provider.max_tokens":         d.Provider.MaxTokens,
		"provider.temperature":        d.Provider.Temperature,
		"provider.timeout":            d.Provider.Timeout,
		"provider.max_retries":        d.Provider.MaxRetries,
		"provider.retry_base_delay":   d.Provider.RetryBaseDelay,
		"provider.max_jitter":         d.Provider.MaxJitter,
		"provider.rate_limit_rps":     d.Provider.RateLimitRPS,
		"provider.rate_limit_burst":   d.Provider.RateLimitBurst,
		"cache.ttl":                   d.Cache.TTL,
		"cache.sweep_interval":        d.Cache.SweepInterval,
		"server.addr":                 d.Server.Addr,
		"server.read_timeout":         d.Server.ReadTimeout,
		"server.write_timeout":        d.Server.WriteTimeout,
		"server.shutdown_timeout":     d.Server.ShutdownTimeout,
		"server.max_body_bytes":       d.Server.MaxBodyBytes,
		"logging.level":               d.Logging.Level,
		"logging.format":              d.Logging.Format,
		"logging.output":              d.Logging.Output,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig decodes viper's merged view into cfg.
func loadConfig() error {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return fmt.Errorf("decoding configuration: %w", err)
	}
	cfg = c
	return nil
}

// newPipeline wires the pipeline from cfg. The provider key comes from
// config, then .secrets/anthropic-api-key, then ANTHROPIC_API_KEY.
func newPipeline(metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	apiKey := loadedSecrets.Resolve(cfg.Provider.APIKey, secrets.AnthropicKeyFile, secrets.AnthropicKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("no provider API key: set provider.api_key, .secrets/%s, or %s", secrets.AnthropicKeyFile, secrets.AnthropicKeyEnv)
	}

	normCfg := cfg.Normalize
	normCfg.OpenAlexEmail = loadedSecrets.Resolve(normCfg.OpenAlexEmail, secrets.OpenAlexEmailFile, secrets.OpenAlexEmailEnv)

	backend := &analysis.ClaudeBackend{
		APIKey:  apiKey,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
	}

	return &pipeline.Pipeline{
		Adapters: normalize.Adapters(normCfg, &httputil.Fetcher{}, logger),
		Analyzer: analysis.NewAnalyzer(backend, cfg.Provider, logger, metrics),
		Cache:    cache.New[types.Analysis](cfg.Cache.TTL),
		Logger:   logger,
		Metrics:  metrics,
	}, nil
}

// newMetrics registers collectors on a private registry that also carries
// the Go runtime and process collectors.
func newMetrics() (*observability.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return observability.NewMetrics(reg), reg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
