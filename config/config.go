// Package config handles tobe configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tobe/shield"
)

// Config is the top-level tobe configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string         `yaml:"remote"`
	MemoryLimit      int64          `yaml:"memory_limit"`
	RecycleInterval  time.Duration  `yaml:"recycle_interval"`
	ResourceBlocking []string       `yaml:"resource_blocking"`
	Stealth          string         `yaml:"stealth"` // headless | headful
	XvfbDisplay      string         `yaml:"xvfb_display"`
	Viewport         ViewportConfig `yaml:"viewport"`
}

// ViewportConfig is the emulated window of every tab.
type ViewportConfig struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	DeviceScaleFactor float64 `yaml:"device_scale_factor"`
}

// CaptureConfig tunes the full-page pipeline.
type CaptureConfig struct {
	StepRatio      float64       `yaml:"step_ratio"`
	MaxPixels      int64         `yaml:"max_pixels"`
	Attempts       int           `yaml:"attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	ScrollSettle   time.Duration `yaml:"scroll_settle"`
	FrameSettle    time.Duration `yaml:"frame_settle"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	FixedSelectors []string      `yaml:"fixed_selectors"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
	// Keep is how many screenshots the history retains.
	Keep int `yaml:"keep"`
}

// ExportConfig controls where screenshots are written.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BlockPrivate rejects capture URLs that resolve to private or
	// loopback addresses.
	BlockPrivate bool `yaml:"block_private"`
	// RateLimits maps "METHOD /path" to "N/duration" per client IP.
	RateLimits map[string]string `yaml:"rate_limits"`
}

// DefaultRateLimits throttles the routes that drive a browser tab.
var DefaultRateLimits = map[string]string{
	"POST /api/capture/fullpage":  "6/1m",
	"POST /api/capture/visible":   "30/1m",
	"POST /api/capture/selection": "30/1m",
}

// DefaultFixedSelectors is the heuristic first pass of the fixed element
// masker: structural chrome that is usually pinned to the viewport.
var DefaultFixedSelectors = []string{
	"header", "nav", ".header", ".navbar", ".navigation",
	".fixed-header", ".sticky-header", ".top-bar", ".toolbar", ".menu-bar",
	`[style*="position: fixed"]`, `[style*="position:fixed"]`,
	".fixed", ".sticky", ".floating", ".overlay", ".modal", ".popup",
	".notification", ".toast", ".cookie-banner", ".ad-banner",
	".social-share", ".scroll-to-top", ".back-to-top", ".floating-button",
	".chat-widget", ".support-widget", ".live-chat", ".feedback-button",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that applyDefaults cannot repair.
func (c *Config) Validate() error {
	if c.Capture.StepRatio > 1 {
		return fmt.Errorf("config: capture.step_ratio %v must be in (0, 1]", c.Capture.StepRatio)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q must be headless or headful", c.Browser.Stealth)
	}
	for ep, rule := range c.Server.RateLimits {
		if _, err := shield.ParseRule(rule); err != nil {
			return fmt.Errorf("config: server.rate_limits[%s]: %w", ep, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.Viewport.Width <= 0 {
		c.Browser.Viewport.Width = 1280
	}
	if c.Browser.Viewport.Height <= 0 {
		c.Browser.Viewport.Height = 800
	}
	if c.Browser.Viewport.DeviceScaleFactor <= 0 {
		c.Browser.Viewport.DeviceScaleFactor = 1
	}
	if c.Capture.StepRatio <= 0 {
		c.Capture.StepRatio = 0.9
	}
	if c.Capture.MaxPixels <= 0 {
		c.Capture.MaxPixels = 80_000_000
	}
	if c.Capture.Attempts <= 0 {
		c.Capture.Attempts = 3
	}
	if c.Capture.RetryDelay <= 0 {
		c.Capture.RetryDelay = 500 * time.Millisecond
	}
	if c.Capture.ScrollSettle <= 0 {
		c.Capture.ScrollSettle = 300 * time.Millisecond
	}
	if c.Capture.FrameSettle <= 0 {
		c.Capture.FrameSettle = 200 * time.Millisecond
	}
	if c.Capture.CallTimeout <= 0 {
		c.Capture.CallTimeout = 10 * time.Second
	}
	if len(c.Capture.FixedSelectors) == 0 {
		c.Capture.FixedSelectors = append([]string(nil), DefaultFixedSelectors...)
	}
	if c.Store.Path == "" {
		c.Store.Path = "tobe.db"
	}
	if c.Store.Keep <= 0 {
		c.Store.Keep = 50
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "screenshots"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8787"
	}
	if c.Server.RateLimits == nil {
		c.Server.RateLimits = make(map[string]string, len(DefaultRateLimits))
		for ep, rule := range DefaultRateLimits {
			c.Server.RateLimits[ep] = rule
		}
	}
}
