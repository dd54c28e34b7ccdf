package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dubedition/guidecore/internal/errors"
)

// SiteKind represents the kind of content tree detected.
type SiteKind string

const (
	SiteKindHTML     SiteKind = "html"
	SiteKindMarkdown SiteKind = "markdown"
	SiteKindMixed    SiteKind = "mixed"
	SiteKindUnknown  SiteKind = "unknown"
)

// Config represents the complete guidecore configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Site    SiteConfig    `yaml:"site" json:"site"`
	Content ContentConfig `yaml:"content" json:"content"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Render  RenderConfig  `yaml:"render" json:"render"`
}

// SiteConfig describes the guide site itself.
type SiteConfig struct {
	// Title is the site title shown in rendered output and search surfaces.
	Title string `yaml:"title" json:"title"`
	// Root is the site root directory containing the entry document.
	Root string `yaml:"root" json:"root"`
	// Index is the entry document, relative to Root.
	Index string `yaml:"index" json:"index"`
	// Lang is the document language attribute.
	Lang string `yaml:"lang" json:"lang"`
}

// ContentConfig configures fragment content resolution and loading.
// Fetch timeout and the viewport margin are configurable via:
//  1. User config (~/.config/guidecore/config.yaml) - personal defaults
//  2. Project config (.guidecore.yaml) - per-site tuning
//  3. Env vars (GUIDECORE_CONTENT_BASE, GUIDECORE_FETCH_TIMEOUT) - highest priority
type ContentConfig struct {
	// BasePath is prefixed to relative fragment source refs.
	// Refs starting with "/" or "//" bypass the base path.
	BasePath string `yaml:"base_path" json:"base_path"`

	// FetchTimeout bounds a single fragment fetch (e.g. "10s").
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`

	// MaxConcurrent caps parallel fragment loads during batch loading.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// ViewportMargin is the distance in pixels a fragment may sit outside
	// the viewport and still be loaded eagerly.
	ViewportMargin int `yaml:"viewport_margin" json:"viewport_margin"`

	// Markdown enables rendering of .md fragment sources to HTML.
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// SearchConfig configures the section search engine.
type SearchConfig struct {
	// TitleScore is awarded per keyword found in a section title.
	TitleScore int `yaml:"title_score" json:"title_score"`

	// ExactTitleBonus is awarded when a single-keyword query equals the
	// whole title.
	ExactTitleBonus int `yaml:"exact_title_bonus" json:"exact_title_bonus"`

	// BodyScore is awarded per keyword found in a section body.
	BodyScore int `yaml:"body_score" json:"body_score"`

	// MaxResults caps the number of returned matches.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// SnippetMin and SnippetMax bound excerpt length in characters.
	SnippetMin int `yaml:"snippet_min" json:"snippet_min"`
	SnippetMax int `yaml:"snippet_max" json:"snippet_max"`

	// CacheSize is the number of memoized query results.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// CacheTTL is how long a memoized result stays fresh (e.g. "5m").
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host        string   `yaml:"host" json:"host"`
	Port        int      `yaml:"port" json:"port"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	LiveReload  bool     `yaml:"live_reload" json:"live_reload"`
	LogLevel    string   `yaml:"log_level" json:"log_level"`
}

// WatchConfig configures content tree watching.
type WatchConfig struct {
	// Enabled enables the content watcher (default: true when serving).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Debounce coalesces bursts of file events (e.g. "500ms").
	Debounce string `yaml:"debounce" json:"debounce"`
	// Workers caps concurrent reindex work after a change burst.
	Workers int `yaml:"workers" json:"workers"`
}

// RenderConfig configures static output rendering.
type RenderConfig struct {
	// Output is the directory rendered pages are written to.
	Output string `yaml:"output" json:"output"`
	// Clean removes stale files from Output before rendering.
	Clean bool `yaml:"clean" json:"clean"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Site: SiteConfig{
			Title: "Guide",
			Root:  ".",
			Index: "index.html",
			Lang:  "en",
		},
		Content: ContentConfig{
			BasePath:       "./content/",
			FetchTimeout:   "10s",
			MaxConcurrent:  8,
			ViewportMargin: 200,
			Markdown:       true,
		},
		Search: SearchConfig{
			TitleScore:      10,
			ExactTitleBonus: 50,
			BodyScore:       5,
			MaxResults:      20,
			SnippetMin:      80,
			SnippetMax:      100,
			CacheSize:       128,
			CacheTTL:        "5m",
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8448,
			CORSOrigins: []string{"*"},
			LiveReload:  true,
			LogLevel:    "info",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "500ms",
			Workers:  runtime.NumCPU(),
		},
		Render: RenderConfig{
			Output: "./dist",
			Clean:  false,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/guidecore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/guidecore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "guidecore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "guidecore", "config.yaml")
	}
	return filepath.Join(home, ".config", "guidecore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	// Check if file exists
	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	// Load the config
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/guidecore/config.yaml)
//  3. Project config (.guidecore.yaml in site root)
//  4. Environment variables (GUIDECORE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .guidecore.yaml or .guidecore.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".guidecore.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".guidecore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return errors.New(errors.ErrCodeConfigPermission,
				fmt.Sprintf("config file not readable: %s", path), err).
				WithDetail("path", path).
				WithSuggestion("Check the file's permissions; guidecore needs read access.")
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Site
	if other.Site.Title != "" {
		c.Site.Title = other.Site.Title
	}
	if other.Site.Root != "" {
		c.Site.Root = other.Site.Root
	}
	if other.Site.Index != "" {
		c.Site.Index = other.Site.Index
	}
	if other.Site.Lang != "" {
		c.Site.Lang = other.Site.Lang
	}

	// Content
	if other.Content.BasePath != "" {
		c.Content.BasePath = other.Content.BasePath
	}
	if other.Content.FetchTimeout != "" {
		c.Content.FetchTimeout = other.Content.FetchTimeout
	}
	if other.Content.MaxConcurrent != 0 {
		c.Content.MaxConcurrent = other.Content.MaxConcurrent
	}
	if other.Content.ViewportMargin != 0 {
		c.Content.ViewportMargin = other.Content.ViewportMargin
	}
	// Markdown is boolean - only merge when some other content field was set,
	// since yaml.Unmarshal cannot distinguish "absent" from "false"
	if other.Content.BasePath != "" || other.Content.FetchTimeout != "" {
		c.Content.Markdown = other.Content.Markdown
	}

	// Search scoring
	// Note: 0 is not a practical value for scores, so we only merge non-zero values
	if other.Search.TitleScore != 0 {
		c.Search.TitleScore = other.Search.TitleScore
	}
	if other.Search.ExactTitleBonus != 0 {
		c.Search.ExactTitleBonus = other.Search.ExactTitleBonus
	}
	if other.Search.BodyScore != 0 {
		c.Search.BodyScore = other.Search.BodyScore
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.SnippetMin != 0 {
		c.Search.SnippetMin = other.Search.SnippetMin
	}
	if other.Search.SnippetMax != 0 {
		c.Search.SnippetMax = other.Search.SnippetMax
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}
	if other.Search.CacheTTL != "" {
		c.Search.CacheTTL = other.Search.CacheTTL
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}
	// LiveReload is boolean - merge when any server field was set
	if other.Server.Host != "" || other.Server.Port != 0 {
		c.Server.LiveReload = other.Server.LiveReload
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.Workers != 0 {
		c.Watch.Workers = other.Watch.Workers
	}
	// Enabled is boolean - merge when any watch field was set
	if other.Watch.Debounce != "" || other.Watch.Workers != 0 {
		c.Watch.Enabled = other.Watch.Enabled
	}

	// Render
	if other.Render.Output != "" {
		c.Render.Output = other.Render.Output
		c.Render.Clean = other.Render.Clean
	}
}

// applyEnvOverrides applies GUIDECORE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GUIDECORE_SITE_ROOT"); v != "" {
		c.Site.Root = v
	}
	if v := os.Getenv("GUIDECORE_CONTENT_BASE"); v != "" {
		c.Content.BasePath = v
	}
	if v := os.Getenv("GUIDECORE_FETCH_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Content.FetchTimeout = v
		}
	}
	if v := os.Getenv("GUIDECORE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("GUIDECORE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.CacheSize = n
		}
	}
	if v := os.Getenv("GUIDECORE_CACHE_TTL"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Search.CacheTTL = v
		}
	}
	if v := os.Getenv("GUIDECORE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("GUIDECORE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("GUIDECORE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("GUIDECORE_WATCH_ENABLED"); v != "" {
		c.Watch.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("GUIDECORE_RENDER_OUTPUT"); v != "" {
		c.Render.Output = v
	}
}

// FetchTimeoutDuration returns the parsed fragment fetch timeout.
// Falls back to 10s when unset or unparseable.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Content.FetchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// DebounceDuration returns the parsed watch debounce interval.
// Falls back to 500ms when unset or unparseable.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// CacheTTLDuration returns the parsed search memo TTL.
// Falls back to 5m when unset or unparseable.
func (c *Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Search.CacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// DetectSiteKind detects the kind of content tree rooted at dir.
// Priority: entry document presence, then content file extensions.
func DetectSiteKind(dir string) SiteKind {
	hasHTML := fileExists(filepath.Join(dir, "index.html"))

	var hasMD bool
	contentDir := filepath.Join(dir, "content")
	if entries, err := os.ReadDir(contentDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".md", ".markdown":
				hasMD = true
			case ".html", ".htm":
				hasHTML = true
			}
		}
	}

	switch {
	case hasHTML && hasMD:
		return SiteKindMixed
	case hasHTML:
		return SiteKindHTML
	case hasMD:
		return SiteKindMarkdown
	default:
		return SiteKindUnknown
	}
}

// FindSiteRoot finds the site root directory.
// It looks for .guidecore.yaml/.yml, an index.html, or a .git directory
// by walking up the directory tree.
func FindSiteRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// Check for .guidecore.yaml or .guidecore.yml
		if fileExists(filepath.Join(currentDir, ".guidecore.yaml")) ||
			fileExists(filepath.Join(currentDir, ".guidecore.yml")) {
			return currentDir, nil
		}

		// Check for the entry document
		if fileExists(filepath.Join(currentDir, "index.html")) {
			return currentDir, nil
		}

		// Check for .git directory
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverContentDirs discovers common content directories in the site.
func DiscoverContentDirs(dir string) []string {
	commonContentDirs := []string{"content", "fragments", "sections", "docs"}

	var found []string
	for _, d := range commonContentDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	return found
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of SiteKind.
func (s SiteKind) String() string {
	return string(s)
}

// IsKnown returns true if the site kind is known (not unknown).
func (s SiteKind) IsKnown() bool {
	return s != SiteKindUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Validate search scoring
	if c.Search.TitleScore <= 0 {
		return fmt.Errorf("search.title_score must be positive, got %d", c.Search.TitleScore)
	}
	if c.Search.ExactTitleBonus < 0 {
		return fmt.Errorf("search.exact_title_bonus must be non-negative, got %d", c.Search.ExactTitleBonus)
	}
	if c.Search.BodyScore < 0 {
		return fmt.Errorf("search.body_score must be non-negative, got %d", c.Search.BodyScore)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	// Validate snippet bounds
	if c.Search.SnippetMin <= 0 || c.Search.SnippetMax <= 0 {
		return fmt.Errorf("snippet bounds must be positive, got min=%d max=%d", c.Search.SnippetMin, c.Search.SnippetMax)
	}
	if c.Search.SnippetMin > c.Search.SnippetMax {
		return fmt.Errorf("search.snippet_min must not exceed snippet_max, got min=%d max=%d", c.Search.SnippetMin, c.Search.SnippetMax)
	}

	// Validate content settings
	if c.Content.BasePath == "" {
		return fmt.Errorf("content.base_path must not be empty")
	}
	if c.Content.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.Content.FetchTimeout); err != nil {
			return fmt.Errorf("content.fetch_timeout is not a valid duration: %q", c.Content.FetchTimeout)
		}
	}
	if c.Content.MaxConcurrent < 1 {
		return fmt.Errorf("content.max_concurrent must be at least 1, got %d", c.Content.MaxConcurrent)
	}
	if c.Content.ViewportMargin < 0 {
		return fmt.Errorf("content.viewport_margin must be non-negative, got %d", c.Content.ViewportMargin)
	}

	// Validate server settings
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	// Validate watch settings
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce is not a valid duration: %q", c.Watch.Debounce)
		}
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.TitleScore == 0 {
		c.Search.TitleScore = defaults.Search.TitleScore
		added = append(added, "search.title_score")
	}
	if c.Search.ExactTitleBonus == 0 {
		c.Search.ExactTitleBonus = defaults.Search.ExactTitleBonus
		added = append(added, "search.exact_title_bonus")
	}
	if c.Search.BodyScore == 0 {
		c.Search.BodyScore = defaults.Search.BodyScore
		added = append(added, "search.body_score")
	}
	if c.Search.SnippetMin == 0 {
		c.Search.SnippetMin = defaults.Search.SnippetMin
		added = append(added, "search.snippet_min")
	}
	if c.Search.SnippetMax == 0 {
		c.Search.SnippetMax = defaults.Search.SnippetMax
		added = append(added, "search.snippet_max")
	}
	if c.Search.CacheSize == 0 {
		c.Search.CacheSize = defaults.Search.CacheSize
		added = append(added, "search.cache_size")
	}
	if c.Content.ViewportMargin == 0 {
		c.Content.ViewportMargin = defaults.Content.ViewportMargin
		added = append(added, "content.viewport_margin")
	}
	if c.Content.MaxConcurrent == 0 {
		c.Content.MaxConcurrent = defaults.Content.MaxConcurrent
		added = append(added, "content.max_concurrent")
	}
	if c.Watch.Workers == 0 {
		c.Watch.Workers = defaults.Watch.Workers
		added = append(added, "watch.workers")
	}

	return added
}
