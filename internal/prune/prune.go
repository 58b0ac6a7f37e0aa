// Package prune destructively filters a directory tree. Two walk modes share
// structure: an extension allow-list filter and a category trim. Both are
// followed by an empty-directory cleanup pass.
//
// Per-entry filesystem failures are logged and skipped; pruning is
// best-effort, never all-or-nothing.
package prune

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Classifier reports which categories match a block of content.
type Classifier interface {
	Match(text []byte) []string
	Categories() []string
}

// Recorder persists a file that survived trimming and returns its
// identifier. A Recorder error aborts the trim.
type Recorder func(path string) (string, error)

// Pruner holds the allow-list and ignore-list shared by every walk.
type Pruner struct {
	allow  map[string]bool
	ignore map[string]bool
	logger *slog.Logger
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithLogger sets the logger for skipped entries and deletion failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pruner) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a Pruner keeping files whose lower-cased extension is in
// extensions and never entering directories named in ignoreDirs.
func New(extensions, ignoreDirs []string, opts ...Option) *Pruner {
	p := &Pruner{
		allow:  make(map[string]bool, len(extensions)),
		ignore: make(map[string]bool, len(ignoreDirs)),
		logger: slog.Default(),
	}
	for _, ext := range extensions {
		p.allow[strings.ToLower(ext)] = true
	}
	for _, d := range ignoreDirs {
		p.ignore[d] = true
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allowed reports whether path has an allow-listed extension.
func (p *Pruner) Allowed(path string) bool {
	return p.allow[strings.ToLower(filepath.Ext(path))]
}

// Ignored reports whether a directory name is on the ignore-list.
func (p *Pruner) Ignored(name string) bool {
	return p.ignore[name]
}

// FilterResult is the outcome of FilterExtensions.
type FilterResult struct {
	Kept        []string `json:"kept"`
	Deleted     []string `json:"deleted"`
	RemovedDirs []string `json:"removed_dirs"`
}

// FilterExtensions deletes every file under root whose extension is not
// allow-listed, then removes directories left empty. Ignore-listed
// directories are neither entered nor deleted.
func (p *Pruner) FilterExtensions(root string) (*FilterResult, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	res := &FilterResult{}
	err := p.walkFiles(root, func(path string) {
		if p.Allowed(path) {
			res.Kept = append(res.Kept, path)
			return
		}
		if err := os.Remove(path); err != nil {
			p.logger.Warn("prune.delete_failed", "path", path, "error", err)
			return
		}
		res.Deleted = append(res.Deleted, path)
	})
	if err != nil {
		return nil, err
	}

	res.RemovedDirs = p.RemoveEmptyDirs(root)
	return res, nil
}

// KeptFile describes a file that survived trimming.
type KeptFile struct {
	Categories []string `json:"categories"`
	FileID     string   `json:"fileId"`
}

// TrimResult is the outcome of Trim.
//
// Partition invariant: every allow-listed file visited appears in exactly
// one of Kept or Removed, except files whose deletion failed, which appear
// in neither.
type TrimResult struct {
	Kept        map[string]KeptFile `json:"kept_crypto_files"`
	Removed     []string            `json:"removed_non_crypto_files"`
	ByCategory  map[string][]string `json:"matches_by_category"`
	RemovedDirs []string            `json:"removed_dirs"`
}

// Trim classifies every allow-listed file under root. Files matching at
// least one category are passed to record and kept; the rest are deleted.
// Unreadable files are treated as empty and therefore deleted. Files with
// other extensions are left untouched.
//
// A record error stops the walk and is returned; files already deleted stay
// deleted.
func (p *Pruner) Trim(root string, c Classifier, record Recorder) (*TrimResult, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	res := &TrimResult{
		Kept:       make(map[string]KeptFile),
		ByCategory: make(map[string][]string),
	}
	for _, name := range c.Categories() {
		res.ByCategory[name] = []string{}
	}

	var recordErr error
	err := p.walkFiles(root, func(path string) {
		if recordErr != nil || !p.Allowed(path) {
			return
		}

		content, err := os.ReadFile(path)
		if err != nil {
			p.logger.Warn("prune.read_failed", "path", path, "error", err)
			content = nil
		}

		categories := c.Match(content)
		if len(categories) == 0 {
			if err := os.Remove(path); err != nil {
				p.logger.Warn("prune.delete_failed", "path", path, "error", err)
				return
			}
			res.Removed = append(res.Removed, path)
			return
		}

		id, err := record(path)
		if err != nil {
			recordErr = fmt.Errorf("record %s: %w", path, err)
			return
		}
		res.Kept[path] = KeptFile{Categories: categories, FileID: id}
		for _, name := range categories {
			res.ByCategory[name] = append(res.ByCategory[name], path)
		}
	})
	if err != nil {
		return nil, err
	}
	if recordErr != nil {
		return res, recordErr
	}

	res.RemovedDirs = p.RemoveEmptyDirs(root)
	return res, nil
}

// AllowedFiles lists the allow-listed files under root without modifying
// anything.
func (p *Pruner) AllowedFiles(root string) ([]string, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	var paths []string
	err := p.walkFiles(root, func(path string) {
		if p.Allowed(path) {
			paths = append(paths, path)
		}
	})
	return paths, err
}

// RemoveEmptyDirs removes directories under root that are empty at the time
// they are checked, deepest first, so a parent emptied by removing its last
// child is removed in the same pass. root itself and ignore-listed
// directories are never removed.
func (p *Pruner) RemoveEmptyDirs(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("prune.walk_failed", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if p.ignore[d.Name()] {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})

	// Pre-order lists every parent before its children; reversing it visits
	// children first.
	var removed []string
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		entries, err := os.ReadDir(dir)
		if err != nil {
			p.logger.Warn("prune.readdir_failed", "path", dir, "error", err)
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			p.logger.Warn("prune.rmdir_failed", "path", dir, "error", err)
			continue
		}
		removed = append(removed, dir)
	}
	return removed
}

// walkFiles calls fn for every non-directory entry under root, skipping
// ignore-listed directories. WalkDir reads a directory's full listing before
// visiting its entries, so fn may delete the entry it is given.
func (p *Pruner) walkFiles(root string, fn func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, err)
			}
			p.logger.Warn("prune.walk_failed", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && p.ignore[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		fn(path)
		return nil
	})
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("invalid root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid root %s: not a directory", root)
	}
	return nil
}
