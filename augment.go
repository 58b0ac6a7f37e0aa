package cryptosieve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// inlined is one dependency to append to an entry file.
type inlined struct {
	rel     string
	content []byte
}

// augment appends the local import closure of every matching allow-listed
// file to that file. All closures and dependency contents are read before
// the first write, so every entry sees the untouched tree.
//
// Only regular files are written to, and only dependencies whose resolved
// location lies inside root are inlined. Symlinks never carry writes or
// content across the workspace boundary.
func (e *Engine) augment(root string) (*AugmentCounts, error) {
	files, err := e.pruner.AllowedFiles(root)
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	plan := map[string][]inlined{}
	var entries []string
	cache := map[string][]byte{}
	read := func(path string) ([]byte, bool) {
		if b, ok := cache[path]; ok {
			return b, b != nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("augment.read_failed", "path", path, "error", err)
			cache[path] = nil
			return nil, false
		}
		cache[path] = b
		return b, true
	}

	for _, path := range files {
		if info, err := os.Lstat(path); err != nil || !info.Mode().IsRegular() {
			e.logger.Debug("augment.skip_entry", "path", path)
			continue
		}
		src, ok := read(path)
		if !ok || len(e.matcher.Match(src)) == 0 {
			continue
		}
		self, err := filepath.EvalSymlinks(path)
		if err != nil {
			continue
		}
		seen := map[string]bool{self: true}
		var deps []inlined
		for _, dep := range e.imports.Closure(path) {
			target, err := filepath.EvalSymlinks(dep)
			if err != nil || seen[target] {
				continue
			}
			seen[target] = true
			rel, ok := within(realRoot, target)
			if !ok {
				e.logger.Warn("augment.outside_root", "path", path, "dep", dep)
				continue
			}
			content, ok := read(target)
			if !ok {
				continue
			}
			deps = append(deps, inlined{rel: rel, content: content})
		}
		if len(deps) > 0 {
			entries = append(entries, path)
			plan[path] = deps
		}
	}

	counts := &AugmentCounts{}
	for _, path := range entries {
		if err := appendDeps(path, plan[path]); err != nil {
			e.logger.Warn("augment.write_failed", "path", path, "error", err)
			continue
		}
		counts.Entries++
		counts.Inlined += len(plan[path])
	}
	return counts, nil
}

// within returns path relative to root, slash-separated, when path lies
// inside root.
func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// appendDeps writes each dependency to the end of path between comment
// delimiters in the file's own comment syntax.
func appendDeps(path string, deps []inlined) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", path)
	}
	prefix := commentPrefix(path)

	var b strings.Builder
	if info.Size() > 0 && !endsWithNewline(path, info.Size()) {
		b.WriteByte('\n')
	}
	for _, d := range deps {
		fmt.Fprintf(&b, "\n%s ---- cryptosieve: inlined dependency %s ----\n", prefix, d.rel)
		b.Write(d.content)
		if len(d.content) > 0 && d.content[len(d.content)-1] != '\n' {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s ---- cryptosieve: end %s ----\n", prefix, d.rel)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func endsWithNewline(path string, size int64) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, size-1); err != nil {
		return true
	}
	return buf[0] == '\n'
}

func commentPrefix(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".py") {
		return "#"
	}
	return "//"
}
