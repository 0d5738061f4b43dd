package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// scaffold maps relative paths to the starter content written by Init.
var scaffold = map[string]string{
	DefaultFile: `base_url = "https://example.com"

[site]
title = "My Site"
author = ""

[build]
sass = true
syntax_highlighting = true
search_index = true
rss = true
`,
	"pages/about.md": `---
title: About
---

This site was scaffolded by novos.
`,
	"posts/hello-world.md": `---
title: Hello, World
date: 2024-01-01
tags: meta
---

Welcome to your new site. <% .note "Edit me in posts/" %>
`,
	"includes/index.html": `<!DOCTYPE html>
<html>
<head><title>{{ .Site.Title }}</title><link rel="stylesheet" href="/css/style.css"></head>
<body>
<h1>{{ .Site.Title }}</h1>
{{ .Posts }}
</body>
</html>
`,
	"includes/post.html": `<!DOCTYPE html>
<html>
<head><title>{{ .Page.Title }}</title><link rel="stylesheet" href="/css/style.css"></head>
<body>
<article>
<h1>{{ .Page.Title }}</h1>
{{ .Content }}
</article>
</body>
</html>
`,
	"includes/page.html": `<!DOCTYPE html>
<html>
<head><title>{{ .Page.Title }}</title><link rel="stylesheet" href="/css/style.css"></head>
<body>
{{ .Content }}
</body>
</html>
`,
	"includes/shortcodes/note.html": `<aside class="note"><%= .arg1 =%></aside>
`,
	"sass/style.scss": `body {
  font-family: sans-serif;
  max-width: 42rem;
  margin: 0 auto;
}
`,
	"static/robots.txt": "User-agent: *\nAllow: /\n",
}

// Init scaffolds a new project rooted at dir. Existing files are never
// overwritten unless force is set.
func Init(dir string, force bool) error {
	for rel, content := range scaffold {
		path := filepath.Join(dir, rel)
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("scaffold %s: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("scaffold %s: %w", rel, err)
		}
	}
	return nil
}
