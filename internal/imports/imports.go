// Package imports extracts relative import statements from source text,
// resolves them to files on disk, and computes the transitive closure of
// local dependencies reachable from an entry file.
package imports

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultExtensions is the probe order used when resolving an import target.
// The empty string probes the target exactly as written.
var DefaultExtensions = []string{"", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py"}

var (
	// import x from './a'; export { y } from '../b'; import './c'
	esFromRe = regexp.MustCompile(`(?m)\b(?:import|export)\b[^'"` + "`" + `;]*?\bfrom\s*['"]([^'"]+)['"]`)
	esBareRe = regexp.MustCompile(`(?m)\bimport\s*['"]([^'"]+)['"]`)
	// require('./d'); import('./e')
	callRe = regexp.MustCompile(`\b(?:require|import)\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\s*\)`)
	// from .mod import x; from .. import y
	pyFromRe = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+(\.+)([\w.]*)[ \t]+import[ \t]+\(?([^)\n#]+)`)
)

// Extractor finds and resolves relative imports.
type Extractor struct {
	extensions []string
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExtensions overrides the resolution probe order.
func WithExtensions(exts ...string) Option {
	return func(e *Extractor) {
		e.extensions = append([]string(nil), exts...)
	}
}

// WithLogger sets the logger used for unreadable files during closure walks.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns an Extractor using DefaultExtensions unless overridden.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		extensions: DefaultExtensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type specifier struct {
	pos    int
	target string
}

// Specifiers returns every relative import target in src, in order of
// appearance. Targets are returned as written (e.g. "./helper", "../a/b").
func Specifiers(src []byte) []string {
	var specs []specifier
	text := string(src)

	for _, re := range []*regexp.Regexp{esFromRe, esBareRe, callRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			target := text[m[2]:m[3]]
			if isRelative(target) {
				specs = append(specs, specifier{pos: m[2], target: target})
			}
		}
	}

	for _, m := range pyFromRe.FindAllStringSubmatchIndex(text, -1) {
		dots := text[m[2]:m[3]]
		module := text[m[4]:m[5]]
		prefix := pythonPrefix(len(dots))
		if module != "" {
			specs = append(specs, specifier{pos: m[2], target: prefix + strings.ReplaceAll(module, ".", "/")})
			continue
		}
		// "from . import a, b as c" names sibling modules.
		for i, name := range strings.Split(text[m[6]:m[7]], ",") {
			name = strings.TrimSpace(name)
			if j := strings.Index(name, " "); j >= 0 {
				name = name[:j]
			}
			if name == "" || name == "*" {
				continue
			}
			specs = append(specs, specifier{pos: m[6] + i, target: prefix + name})
		}
	}

	sortByPos(specs)
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.target
	}
	return out
}

// LocalImports returns the on-disk files that path's relative imports
// resolve to, in order of appearance. Unresolvable targets are dropped and
// duplicates are kept.
func (e *Extractor) LocalImports(path string, src []byte) []string {
	dir := filepath.Dir(path)
	var resolved []string
	for _, target := range Specifiers(src) {
		if p, ok := e.Resolve(dir, target); ok {
			resolved = append(resolved, p)
		}
	}
	return resolved
}

// Resolve joins target onto dir and probes each extension in order,
// returning the first candidate that is an existing regular file. A target
// naming a directory (".", "..", or a trailing slash) probes the index file
// inside it.
func (e *Extractor) Resolve(dir, target string) (string, bool) {
	base := filepath.Join(dir, filepath.FromSlash(target))
	if namesDir(target) {
		base = filepath.Join(base, "index")
	}
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	for _, ext := range e.extensions {
		candidate := base + ext
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

func namesDir(target string) bool {
	if strings.HasSuffix(target, "/") {
		return true
	}
	last := path.Base(target)
	return last == "." || last == ".."
}

func isRelative(target string) bool {
	return target == "." || target == ".." ||
		strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../")
}

// pythonPrefix converts a count of leading dots in a Python relative import
// to a path prefix: 1 → "./", 2 → "../", 3 → "../../".
func pythonPrefix(dots int) string {
	if dots <= 1 {
		return "./"
	}
	return strings.Repeat("../", dots-1)
}

// sortByPos is an insertion sort; import lists are short and mostly ordered
// already since each regex yields its matches in order.
func sortByPos(specs []specifier) {
	for i := 1; i < len(specs); i++ {
		for j := i; j > 0 && specs[j].pos < specs[j-1].pos; j-- {
			specs[j], specs[j-1] = specs[j-1], specs[j]
		}
	}
}
