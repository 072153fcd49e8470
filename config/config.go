// Package config loads linkguard settings from the project directory and
// merges command-line overrides on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/linkguard/rules"
	"github.com/lukemcguire/linkguard/urlutil"
)

// File names looked up in the project root.
const (
	JSONFile   = "linkguard.config.json"
	YAMLFile   = "linkguard.yaml"
	IgnoreFile = ".linkguardignore"
	GitIgnore  = ".gitignore"
)

// Config holds the settings of one scan.
type Config struct {
	Mode           string
	Timeout        time.Duration
	Concurrency    int
	PerHostLimit   int
	RateLimit      int
	IgnorePatterns []string
	ExcludeURLs    []string
	StrictSSL      bool
	UserAgent      string
	LogLevel       string
	LogFile        string
	MetricsFile    string

	// Source is the config file that was applied, empty when none was.
	Source string
	// Warnings lists problems that were tolerated while loading.
	Warnings []string
}

// fileConfig mirrors the config file; pointers tell absent keys from zero values.
type fileConfig struct {
	Mode           *string  `yaml:"mode"`
	Timeout        *float64 `yaml:"timeout"` // seconds
	Concurrency    *int     `yaml:"concurrency"`
	PerHostLimit   *int     `yaml:"per_host_limit"`
	RateLimit      *int     `yaml:"rate_limit"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	ExcludeURLs    []string `yaml:"exclude_urls"`
	StrictSSL      *bool    `yaml:"strict_ssl"`
	UserAgent      *string  `yaml:"user_agent"`
	LogLevel       *string  `yaml:"log_level"`
	LogFile        *string  `yaml:"log_file"`
	MetricsFile    *string  `yaml:"metrics_file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Mode:         rules.ModeDev,
		Timeout:      10 * time.Second,
		Concurrency:  50,
		PerHostLimit: 10,
		LogLevel:     "info",
	}
}

// Load reads the config file and ignore files under root. A missing config
// file leaves the defaults in place; a malformed one is recorded in Warnings
// and ignored as a whole. Only an unusable root is an error.
func Load(root string) (*Config, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	cfg := Default()
	for _, name := range []string{JSONFile, YAMLFile} {
		path := filepath.Join(root, name)
		data, readErr := os.ReadFile(path)
		if errors.Is(readErr, fs.ErrNotExist) {
			continue
		}
		if readErr != nil {
			cfg.warnf("ignoring unreadable config file %s: %v", path, readErr)
			break
		}
		if name == JSONFile {
			// Tabs are JSON whitespace but not YAML indentation; valid JSON
			// never has raw tabs inside strings.
			data = bytes.ReplaceAll(data, []byte("\t"), []byte(" "))
		}
		if applyErr := cfg.apply(data); applyErr != nil {
			cfg.warnf("ignoring malformed config file %s: %v", path, applyErr)
			break
		}
		cfg.Source = path
		break
	}

	patterns, err := loadIgnorePatterns(root, cfg)
	if err != nil {
		return nil, err
	}
	cfg.IgnorePatterns = union(cfg.IgnorePatterns, patterns)
	return cfg, nil
}

// apply decodes a JSON or YAML document and copies the keys it sets. Nothing
// is copied when decoding fails.
func (c *Config) apply(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setIf(&c.Mode, fc.Mode)
	if fc.Timeout != nil {
		c.Timeout = time.Duration(*fc.Timeout * float64(time.Second))
	}
	setIf(&c.Concurrency, fc.Concurrency)
	setIf(&c.PerHostLimit, fc.PerHostLimit)
	setIf(&c.RateLimit, fc.RateLimit)
	setIf(&c.StrictSSL, fc.StrictSSL)
	setIf(&c.UserAgent, fc.UserAgent)
	setIf(&c.LogLevel, fc.LogLevel)
	setIf(&c.LogFile, fc.LogFile)
	setIf(&c.MetricsFile, fc.MetricsFile)
	if fc.IgnorePatterns != nil {
		c.IgnorePatterns = fc.IgnorePatterns
	}
	if fc.ExcludeURLs != nil {
		c.ExcludeURLs = fc.ExcludeURLs
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Overrides carries command-line settings. Nil and empty fields leave the
// loaded value alone.
type Overrides struct {
	Mode           *string
	Timeout        *time.Duration
	Concurrency    *int
	PerHostLimit   *int
	RateLimit      *int
	IgnorePatterns []string
	ExcludeURLs    []string
	StrictSSL      *bool
	LogLevel       *string
	LogFile        *string
	MetricsFile    *string
}

// Merge applies o. Ignore patterns are added to the loaded ones; every other
// set field replaces the loaded value.
func (c *Config) Merge(o Overrides) {
	setIf(&c.Mode, o.Mode)
	setIf(&c.Timeout, o.Timeout)
	setIf(&c.Concurrency, o.Concurrency)
	setIf(&c.PerHostLimit, o.PerHostLimit)
	setIf(&c.RateLimit, o.RateLimit)
	setIf(&c.StrictSSL, o.StrictSSL)
	setIf(&c.LogLevel, o.LogLevel)
	setIf(&c.LogFile, o.LogFile)
	setIf(&c.MetricsFile, o.MetricsFile)
	if len(o.IgnorePatterns) > 0 {
		c.IgnorePatterns = union(c.IgnorePatterns, o.IgnorePatterns)
	}
	if len(o.ExcludeURLs) > 0 {
		c.ExcludeURLs = o.ExcludeURLs
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks that the settings can drive a scan.
func (c *Config) Validate() error {
	if !rules.ValidMode(c.Mode) {
		return fmt.Errorf("invalid mode %q, must be one of: %s, %s", c.Mode, rules.ModeDev, rules.ModeProd)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.PerHostLimit < 1 {
		return fmt.Errorf("per_host_limit must be >= 1, got %d", c.PerHostLimit)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0, got %d", c.RateLimit)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// ShouldExcludeURL reports whether url matches an exclude pattern.
func (c *Config) ShouldExcludeURL(url string) bool {
	for _, pattern := range c.ExcludeURLs {
		if urlutil.MatchGlob(pattern, url) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads .linkguardignore when present, otherwise every
// .gitignore below root. Unreadable files are recorded as warnings.
func loadIgnorePatterns(root string, cfg *Config) ([]string, error) {
	explicit := filepath.Join(root, IgnoreFile)
	if _, err := os.Stat(explicit); err == nil {
		patterns, parseErr := parseIgnoreFile(explicit)
		if parseErr != nil {
			cfg.warnf("ignoring unreadable ignore file %s: %v", explicit, parseErr)
		}
		return patterns, nil
	}

	var patterns []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != GitIgnore {
			return nil
		}
		found, parseErr := parseIgnoreFile(path)
		if parseErr != nil {
			cfg.warnf("ignoring unreadable ignore file %s: %v", path, parseErr)
			return nil
		}
		patterns = append(patterns, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s files: %w", GitIgnore, err)
	}
	return patterns, nil
}

// parseIgnoreFile returns the patterns of a gitignore-style file. Comments
// and blank lines are skipped; negation and trailing slashes are dropped.
func parseIgnoreFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "!"))
		line = strings.TrimSuffix(line, "/")
		if line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}

// union returns the sorted distinct values of a and b.
func union(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}
