package content

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/nverr"
)

// Loader scans a project tree into a node set.
type Loader struct {
	root string
	cfg  *config.Config
}

// NewLoader creates a loader for the project rooted at root.
func NewLoader(root string, cfg *config.Config) *Loader {
	return &Loader{root: root, cfg: cfg}
}

// Scan walks the project tree once and classifies every file into a node.
//
// Per-file failures (unreadable file, malformed front matter) do not abort the
// scan: the broken file is recorded as an error node that participates in the
// graph but renders to nothing, and the error is returned alongside the set.
func (l *Loader) Scan() (*Set, []error) {
	set := NewSet()
	var errs []error

	for _, dir := range l.sourceDirs() {
		full := filepath.Join(l.root, dir)
		if _, err := os.Stat(full); err != nil {
			continue
		}
		walkErr := filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, nverr.LoadFailed(p, err))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(l.root, p)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			kind, ok := l.Classify(rel)
			if !ok {
				return nil
			}
			node := l.loadNode(rel, kind)
			set.Put(node)
			if node.Err != nil {
				errs = append(errs, node.Err)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, nverr.LoadFailed(full, walkErr))
		}
	}
	return set, errs
}

// Rescan reloads only the given project-relative paths, updating the set in
// place. It returns the identities that changed content (including newly
// created nodes) and those removed from disk.
func (l *Loader) Rescan(set *Set, relPaths []string) (changed []ID, removed []ID, errs []error) {
	seen := map[ID]bool{}
	for _, rel := range relPaths {
		rel = filepath.ToSlash(rel)
		kind, ok := l.Classify(rel)
		if !ok {
			continue
		}
		id := ID(rel)
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, err := os.Stat(filepath.Join(l.root, rel)); err != nil {
			if set.Get(id) != nil {
				set.Remove(id)
				removed = append(removed, id)
			}
			continue
		}

		prev := set.Get(id)
		node := l.loadNode(rel, kind)
		set.Put(node)
		if node.Err != nil {
			errs = append(errs, node.Err)
		}
		if prev == nil || prev.Hash != node.Hash {
			changed = append(changed, id)
		}
	}
	return changed, removed, errs
}

// Classify maps a project-relative path to a node kind by location and
// extension. Files outside the configured layout are not tracked.
func (l *Loader) Classify(rel string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(rel))
	switch {
	case inDir(rel, path.Join(l.cfg.IncludesDir, "shortcodes")):
		if ext == ".html" {
			return KindShortcode, true
		}
	case inDir(rel, l.cfg.IncludesDir):
		if ext == ".html" {
			return KindTemplate, true
		}
	case inDir(rel, l.cfg.PostsDir):
		if ext == ".md" {
			return KindPage, true
		}
	case inDir(rel, l.cfg.PagesDir):
		if ext == ".md" || ext == ".html" {
			return KindPage, true
		}
	case inDir(rel, l.cfg.SassDir):
		if ext == ".scss" || ext == ".sass" {
			return KindStylesheet, true
		}
	case inDir(rel, l.cfg.StaticDir):
		return KindStatic, true
	}
	return "", false
}

func inDir(rel, dir string) bool {
	dir = path.Clean(dir)
	return rel != dir && strings.HasPrefix(rel, dir+"/")
}

func (l *Loader) loadNode(rel string, kind Kind) *Node {
	abs := filepath.Join(l.root, rel)
	node := &Node{
		ID:      ID(rel),
		Kind:    kind,
		AbsPath: abs,
		Slug:    Slugify(strings.TrimSuffix(path.Base(rel), path.Ext(rel))),
	}

	info, err := os.Stat(abs)
	if err != nil {
		node.Err = nverr.LoadFailed(rel, err)
		return node
	}
	node.ModTime = info.ModTime()

	raw, err := os.ReadFile(abs)
	if err != nil {
		node.Err = nverr.LoadFailed(rel, err)
		return node
	}
	node.Hash = HashBytes(raw)
	node.Body = raw

	switch kind {
	case KindPage:
		l.loadPage(node, rel, raw)
	case KindTemplate, KindShortcode:
		// Templates may open with a front-matter block naming a parent layout
		// (`template: base`); shortcodes rarely do but the syntax is allowed.
		meta, body, had, err := SplitFrontMatter(raw)
		if err != nil {
			node.Err = nverr.MalformedFrontMatter(rel, err)
			return node
		}
		if had {
			node.Meta = meta
			node.Body = body
		}
	case KindStylesheet:
		// Partials (underscore prefix) are tracked for invalidation but
		// produce no artifact of their own.
		if !strings.HasPrefix(path.Base(rel), "_") {
			stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
			node.OutPath = path.Join("css", stem+".css")
			node.URL = l.siteURL(node.OutPath)
		}
	case KindStatic:
		out, relErr := relTo(rel, l.cfg.StaticDir)
		if relErr == nil {
			node.OutPath = out
			node.URL = l.siteURL(out)
		}
	}
	return node
}

func (l *Loader) loadPage(node *Node, rel string, raw []byte) {
	meta, body, _, err := SplitFrontMatter(raw)
	if err != nil {
		node.Err = nverr.MalformedFrontMatter(rel, err)
		return
	}
	if meta.Title == "" {
		meta.Title = node.Slug
	}
	node.Meta = meta
	node.Body = body

	switch {
	case inDir(rel, l.cfg.PostsDir):
		node.Section = "posts"
		node.OutPath = path.Join(l.cfg.PostsOutDir, node.Slug+".html")
	default:
		node.Section = "pages"
		node.OutPath = node.Slug + ".html"
	}
	node.URL = l.siteURL(node.OutPath)
}

func (l *Loader) siteURL(outPath string) string {
	base := strings.TrimSuffix(l.cfg.Base, "/")
	return base + "/" + outPath
}

func (l *Loader) sourceDirs() []string {
	return []string{
		l.cfg.PagesDir,
		l.cfg.PostsDir,
		l.cfg.IncludesDir,
		l.cfg.SassDir,
		l.cfg.StaticDir,
	}
}

func relTo(rel, dir string) (string, error) {
	r, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(rel))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}

// HashBytes returns the hex-encoded SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
