// Package config loads the crawler configuration from defaults, an optional config file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oi-archive/usaco-crawler/index"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/plugin/usaco"
)

// Config holds all configuration of the crawler.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Git     GitConfig     `mapstructure:"git"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	RPC     RPCConfig     `mapstructure:"rpc"`
	Log     LogConfig     `mapstructure:"log"`
}

// CrawlerConfig holds probe settings.
type CrawlerConfig struct {
	ProbeURL         string        `mapstructure:"probe_url"`
	ProblemURL       string        `mapstructure:"problem_url"`
	MaxGap           int           `mapstructure:"max_gap"`
	TransportRetries int           `mapstructure:"transport_retries"`
	FetchAttempts    int           `mapstructure:"fetch_attempts"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RateInterval     time.Duration `mapstructure:"rate_interval"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// PathsConfig locates the dataset, the report and the derived artifacts.
type PathsConfig struct {
	Problems      string `mapstructure:"problems"`
	ExtraProblems string `mapstructure:"extra_problems"`
	DivToProbs    string `mapstructure:"div_to_probs"`
	IDToSol       string `mapstructure:"id_to_sol"`
	IDs           string `mapstructure:"ids"`
	Report        string `mapstructure:"report"`
}

// MergeConfig holds the exclusion rules of the merger.
type MergeConfig struct {
	ExcludedIDs []int `mapstructure:"excluded_ids"`
	MinimumYear int   `mapstructure:"minimum_year"`
}

// GitConfig controls committing written files.
type GitConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Repo        string `mapstructure:"repo"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

type DaemonConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// RPCConfig locates the archive server. With Remote set, updates are submitted to it
// instead of being written locally.
type RPCConfig struct {
	Addr   string `mapstructure:"addr"`
	Remote bool   `mapstructure:"remote"`
	Root   string `mapstructure:"root"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const listingDir = "src/components/markdown/ProblemsList/DivisionList/"

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawler.probe_url", "http://usaco.org/index.php?page=viewproblem2&cpid=%d")
	v.SetDefault("crawler.problem_url", "http://www.usaco.org/index.php?page=viewproblem2&cpid=%d")
	v.SetDefault("crawler.max_gap", usaco.DefaultMaxGap)
	v.SetDefault("crawler.transport_retries", 0)
	v.SetDefault("crawler.fetch_attempts", 3)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.rate_interval", 200*time.Millisecond)
	v.SetDefault("crawler.user_agent", "OI-Archive Crawler")

	v.SetDefault("paths.problems", "problems.json")
	v.SetDefault("paths.extra_problems", "content/extraProblems.json")
	v.SetDefault("paths.div_to_probs", listingDir+"div_to_probs.json")
	v.SetDefault("paths.id_to_sol", listingDir+"id_to_sol.json")
	v.SetDefault("paths.ids", "ids.log")
	v.SetDefault("paths.report", "out/report.txt")

	v.SetDefault("merge.excluded_ids", index.DefaultExclusion().ExcludedIDs)
	v.SetDefault("merge.minimum_year", 0)

	v.SetDefault("git.enabled", false)
	v.SetDefault("git.repo", ".")
	v.SetDefault("git.author_name", "OI-Archive Crawler")
	v.SetDefault("git.author_email", "null")

	v.SetDefault("daemon.schedule", "@midnight")

	v.SetDefault("rpc.addr", "127.0.0.1:27381")
	v.SetDefault("rpc.remote", false)
	v.SetDefault("rpc.root", ".")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration into a Config. file may be empty, in which case config.yaml is
// looked up in . and ./config; a missing file is not an error. Environment variables
// override file values, with "." in keys replaced by "_" (CRAWLER_MAX_GAP).
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	if !strings.Contains(c.Crawler.ProbeURL, "%d") {
		return fmt.Errorf("crawler.probe_url %q has no %%d placeholder", c.Crawler.ProbeURL)
	}
	if !strings.Contains(c.Crawler.ProblemURL, "%d") {
		return fmt.Errorf("crawler.problem_url %q has no %%d placeholder", c.Crawler.ProblemURL)
	}
	if c.Crawler.MaxGap <= 0 {
		return fmt.Errorf("crawler.max_gap must be positive, got %d", c.Crawler.MaxGap)
	}
	if c.Crawler.TransportRetries < 0 {
		return fmt.Errorf("crawler.transport_retries must not be negative, got %d", c.Crawler.TransportRetries)
	}
	for key, path := range map[string]string{
		"paths.problems":       c.Paths.Problems,
		"paths.extra_problems": c.Paths.ExtraProblems,
		"paths.div_to_probs":   c.Paths.DivToProbs,
		"paths.id_to_sol":      c.Paths.IDToSol,
		"paths.report":         c.Paths.Report,
	} {
		if path == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Merge.MinimumYear < 0 {
		return fmt.Errorf("merge.minimum_year must not be negative, got %d", c.Merge.MinimumYear)
	}
	return nil
}

// Plugin returns the settings of the USACO plugin.
func (c *Config) Plugin() usaco.Config {
	return usaco.Config{
		Paths: usaco.Paths{
			Problems: c.Paths.Problems,
			Report:   c.Paths.Report,
			Index: index.Paths{
				ExtraProblems: c.Paths.ExtraProblems,
				DivToProbs:    c.Paths.DivToProbs,
				IDToSol:       c.Paths.IDToSol,
				IDs:           c.Paths.IDs,
			},
		},
		Crawl: usaco.CrawlConfig{
			MaxGap:           c.Crawler.MaxGap,
			TransportRetries: c.Crawler.TransportRetries,
		},
		Exclusion: index.Exclusion{
			ExcludedIDs: c.Merge.ExcludedIDs,
			MinimumYear: c.Merge.MinimumYear,
		},
	}
}

func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.Log.Level, Development: c.Log.Development}
}
