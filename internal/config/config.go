// Package config loads and validates novos.toml project configuration.
//
// Every field has a default so a project can run with an empty file. The
// loaded Config is an immutable value threaded explicitly through the loader,
// scheduler, and renderer; nothing in the engine reads ambient global state.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"git.home.luguber.info/inful/novos/internal/nverr"
)

// DefaultFile is the canonical project configuration filename.
const DefaultFile = "novos.toml"

// Config is the full project configuration schema.
type Config struct {
	// BaseURL is the production URL used for absolute links in feeds.
	BaseURL string `toml:"base_url"`
	// Base is the sub-path prefix when the site is not hosted at the root.
	Base string `toml:"base"`

	PostsDir    string `toml:"posts_dir"`
	PagesDir    string `toml:"pages_dir"`
	OutputDir   string `toml:"output_dir"`
	IncludesDir string `toml:"includes_dir"`
	StaticDir   string `toml:"static_dir"`
	SassDir     string `toml:"sass_dir"`
	// PostsOutDir is the subdirectory of OutputDir that rendered posts land in.
	PostsOutDir string `toml:"posts_outdir"`

	Site  Site  `toml:"site"`
	Build Build `toml:"build"`
	Serve Serve `toml:"serve"`
}

// Site holds site-identity metadata injected into template contexts and feeds.
type Site struct {
	Title       string `toml:"title"`
	Author      string `toml:"author"`
	Description string `toml:"description"`
}

// Build holds the switches consumed by the build pipeline.
type Build struct {
	Sass               bool   `toml:"sass"`
	SyntaxHighlighting bool   `toml:"syntax_highlighting"`
	SyntaxTheme        string `toml:"syntax_theme"`
	SearchIndex        bool   `toml:"search_index"`
	RSS                bool   `toml:"rss"`
	CleanOutput        bool   `toml:"clean_output"`
	Minify             bool   `toml:"minify"`
	// Workers bounds the render worker pool. 0 means NumCPU.
	Workers int `toml:"workers"`
	// MaxShortcodeDepth bounds recursive shortcode expansion.
	MaxShortcodeDepth int `toml:"max_shortcode_depth"`
}

// Serve holds development server settings.
type Serve struct {
	Port     int      `toml:"port"`
	Debounce duration `toml:"debounce"`
	MaxDelay duration `toml:"max_delay"`
	// Ignore holds additional doublestar glob patterns excluded from watching.
	Ignore []string `toml:"ignore"`
}

// duration is a TOML-friendly wrapper accepting "150ms"-style strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when novos.toml is empty or fields
// are omitted.
func Default() *Config {
	return &Config{
		BaseURL:     "https://example.com",
		PostsDir:    "posts",
		PagesDir:    "pages",
		OutputDir:   ".build",
		IncludesDir: "includes",
		StaticDir:   "static",
		SassDir:     "sass",
		PostsOutDir: "posts",
		Site: Site{
			Title: "novos",
		},
		Build: Build{
			Sass:               true,
			SyntaxHighlighting: true,
			SyntaxTheme:        "monokai",
			SearchIndex:        true,
			RSS:                true,
			CleanOutput:        false,
			Minify:             false,
			Workers:            0,
			MaxShortcodeDepth:  16,
		},
		Serve: Serve{
			Port:     8080,
			Debounce: duration{150 * time.Millisecond},
			MaxDelay: duration{2 * time.Second},
		},
	}
}

// Load reads and validates the configuration file at path.
//
// A missing file is a fatal config error (run 'novos init' first). Directories
// explicitly declared in the file must exist; missing defaults are tolerated
// so a minimal project (pages only, no sass) still builds.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nverr.ConfigNotFound(path)
		}
		return nil, nverr.ConfigInvalid(path, err)
	}

	cfg := Default()
	meta, err := toml.Decode(string(raw), cfg)
	if err != nil {
		return nil, nverr.ConfigInvalid(path, err)
	}

	cfg.normalize()

	root := filepath.Dir(path)
	if err := cfg.validateLayout(root, meta); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Build.Workers <= 0 {
		c.Build.Workers = runtime.NumCPU()
	}
	if c.Build.MaxShortcodeDepth <= 0 {
		c.Build.MaxShortcodeDepth = Default().Build.MaxShortcodeDepth
	}
	if c.Serve.Debounce.Duration <= 0 {
		c.Serve.Debounce = Default().Serve.Debounce
	}
	if c.Serve.MaxDelay.Duration <= c.Serve.Debounce.Duration {
		c.Serve.MaxDelay = duration{c.Serve.Debounce.Duration * 10}
	}
	if c.Serve.Port <= 0 {
		c.Serve.Port = Default().Serve.Port
	}
	if c.Build.SyntaxTheme == "" {
		c.Build.SyntaxTheme = Default().Build.SyntaxTheme
	}
}

// validateLayout rejects explicitly configured directories that do not exist.
// Default directories are optional: a project without posts/ is fine.
func (c *Config) validateLayout(root string, meta toml.MetaData) error {
	declared := map[string]string{
		"posts_dir":    c.PostsDir,
		"pages_dir":    c.PagesDir,
		"includes_dir": c.IncludesDir,
		"static_dir":   c.StaticDir,
		"sass_dir":     c.SassDir,
	}
	for key, dir := range declared {
		if !meta.IsDefined(key) {
			continue
		}
		full := filepath.Join(root, dir)
		info, err := os.Stat(full)
		if err != nil || !info.IsDir() {
			return nverr.UnknownLayout(dir)
		}
	}
	return nil
}

// DebounceWindow returns the serve-mode quiet window.
func (c *Config) DebounceWindow() time.Duration { return c.Serve.Debounce.Duration }

// DebounceMaxDelay returns the longest a rebuild may be postponed while
// change events keep arriving.
func (c *Config) DebounceMaxDelay() time.Duration { return c.Serve.MaxDelay.Duration }
