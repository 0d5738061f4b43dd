// Package serve implements the development loop: filesystem watching,
// change debouncing, incremental reconciliation, live reload, and the
// local HTTP server.
package serve

import (
	"bufio"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/novos/internal/config"
)

// ChangeOp classifies a filesystem event for the reconciler.
type ChangeOp string

const (
	OpWrite  ChangeOp = "write"
	OpRemove ChangeOp = "remove"
)

// Change is one relevant filesystem event, path relative to the site root.
type Change struct {
	RelPath string
	Op      ChangeOp
}

// Watcher converts raw fsnotify events into filtered Change values. New
// directories are added to the watch set as they appear.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	ignores []string
	out     chan Change
	logger  *slog.Logger
}

// NewWatcher sets up recursive watches over the site root, excluding the
// output directory, dotfiles, editor backup files, configured ignore
// patterns, and anything matched by the project .gitignore.
func NewWatcher(root string, cfg *config.Config, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    root,
		fsw:     fsw,
		ignores: ignorePatterns(root, cfg),
		out:     make(chan Change, 256),
		logger:  logger,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		if rel != "." && w.ignored(rel) {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Changes is the stream of filtered events. Closed when Run returns.
func (w *Watcher) Changes() <-chan Change { return w.out }

// Run pumps fsnotify events until the watcher is closed. It never blocks on
// a slow consumer; an overfull change channel drops events, and the
// debouncer's quiet window absorbs the loss on the next write.
func (w *Watcher) Run() {
	defer close(w.out)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the underlying watcher, unblocking Run.
func (w *Watcher) Close() error { return w.fsw.Close() }

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, serr := os.Stat(ev.Name); serr == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.logger.Warn("watch new directory", "path", rel, "error", err)
			}
			return
		}
	}

	var op ChangeOp
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		op = OpRemove
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}

	select {
	case w.out <- Change{RelPath: rel, Op: op}:
	default:
		w.logger.Debug("change channel full, dropping event", "path", rel)
	}
}

func (w *Watcher) ignored(rel string) bool {
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") && base != ".gitignore" {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	for _, pattern := range w.ignores {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ignorePatterns combines the output directory, configured ignore globs, and
// the project .gitignore into one doublestar pattern list.
func ignorePatterns(root string, cfg *config.Config) []string {
	patterns := []string{
		filepath.ToSlash(cfg.OutputDir),
		filepath.ToSlash(cfg.OutputDir) + "/**",
		".git/**",
	}
	patterns = append(patterns, cfg.Serve.Ignore...)
	patterns = append(patterns, gitignorePatterns(filepath.Join(root, ".gitignore"))...)
	return patterns
}

// gitignorePatterns reads a .gitignore into doublestar patterns. Negations
// and escapes are out of scope; plain names match at any depth like git does.
func gitignorePatterns(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if strings.Contains(line, "/") {
			line = strings.TrimPrefix(line, "/")
			patterns = append(patterns, line, line+"/**")
		} else {
			patterns = append(patterns, "**/"+line, "**/"+line+"/**", line, line+"/**")
		}
	}
	return patterns
}
