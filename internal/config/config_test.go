package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/novos/internal/nverr"
)

func writeConfig(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "posts", cfg.PostsDir)
	require.Equal(t, ".build", cfg.OutputDir)
	require.Equal(t, "posts", cfg.PostsOutDir)
	require.True(t, cfg.Build.Sass)
	require.True(t, cfg.Build.SearchIndex)
	require.True(t, cfg.Build.RSS)
	require.Equal(t, 16, cfg.Build.MaxShortcodeDepth)
	require.Positive(t, cfg.Build.Workers)
	require.Equal(t, 150*time.Millisecond, cfg.DebounceWindow())
	require.Equal(t, 2*time.Second, cfg.DebounceMaxDelay())
	require.Equal(t, 8080, cfg.Serve.Port)
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "content"), 0o755))
	path := writeConfig(t, dir, `
base_url = "https://blog.example.org"
base = "/blog"
pages_dir = "content"
posts_outdir = "articles"

[site]
title = "My Blog"
author = "Jan"

[build]
sass = false
minify = true
workers = 3
max_shortcode_depth = 4

[serve]
port = 9999
debounce = "50ms"
max_delay = "1s"
ignore = ["drafts/**"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://blog.example.org", cfg.BaseURL)
	require.Equal(t, "/blog", cfg.Base)
	require.Equal(t, "content", cfg.PagesDir)
	require.Equal(t, "articles", cfg.PostsOutDir)
	require.Equal(t, "My Blog", cfg.Site.Title)
	require.False(t, cfg.Build.Sass)
	require.True(t, cfg.Build.Minify)
	require.Equal(t, 3, cfg.Build.Workers)
	require.Equal(t, 4, cfg.Build.MaxShortcodeDepth)
	require.Equal(t, 9999, cfg.Serve.Port)
	require.Equal(t, 50*time.Millisecond, cfg.DebounceWindow())
	require.Equal(t, time.Second, cfg.DebounceMaxDelay())
	require.Equal(t, []string{"drafts/**"}, cfg.Serve.Ignore)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.Error(t, err)
	require.True(t, nverr.Is(err, nverr.CategoryConfig))
}

func TestLoad_DeclaredDirectoryMustExist(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `pages_dir = "content"`)

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, nverr.Is(err, nverr.CategoryLoad))
}

func TestLoad_DefaultDirectoriesAreOptional(t *testing.T) {
	// No posts/, sass/, etc. on disk; only defaults in play.
	dir := t.TempDir()
	path := writeConfig(t, dir, `[site]
title = "minimal"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "minimal", cfg.Site.Title)
}

func TestLoad_MaxDelayNeverBelowQuietWindow(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `[serve]
debounce = "500ms"
max_delay = "100ms"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.DebounceMaxDelay())
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `base_url = `)

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, nverr.Is(err, nverr.CategoryConfig))
}

func TestInit_ScaffoldsBuildableTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, false))

	for _, rel := range []string{
		DefaultFile,
		"posts/hello-world.md",
		"pages/about.md",
		"includes/index.html",
		"includes/post.html",
		"includes/page.html",
		"includes/shortcodes/note.html",
		"sass/style.scss",
		"static/robots.txt",
	} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err, "missing %s", rel)
	}

	// The scaffolded config loads cleanly.
	_, err := Load(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)

	// A second init leaves edited files alone unless forced.
	edited := filepath.Join(dir, "pages", "about.md")
	require.NoError(t, os.WriteFile(edited, []byte("custom"), 0o644))
	require.NoError(t, Init(dir, false))
	data, err := os.ReadFile(edited)
	require.NoError(t, err)
	require.Equal(t, "custom", string(data))

	require.NoError(t, Init(dir, true))
	data, err = os.ReadFile(edited)
	require.NoError(t, err)
	require.NotEqual(t, "custom", string(data))
}
