package imports

import (
	"os"
	"path/filepath"
)

// Closure returns every local file transitively reachable from entry via
// relative imports, excluding entry itself. Files are listed in pre-order of
// first discovery: a dependency precedes the dependencies it pulls in.
//
// Each file is expanded at most once, so import cycles terminate. Files that
// cannot be read contribute no further edges.
func (e *Extractor) Closure(entry string) []string {
	root := canonical(entry)
	visited := map[string]bool{}
	var order []string

	stack := []string{root}
	for len(stack) > 0 {
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[path] {
			continue
		}
		visited[path] = true
		if path != root {
			order = append(order, path)
		}

		src, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("imports.read_failed", "path", path, "error", err)
			continue
		}
		deps := e.LocalImports(path, src)
		// Push in reverse so the first import is expanded first.
		for i := len(deps) - 1; i >= 0; i-- {
			dep := canonical(deps[i])
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return order
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
