package runtime

import (
	"context"
	"errors"
	"fmt"
)

// Transform is a compiled reference to a Risor script that rewrites a tree.
// The script sees the globals ast, file_path and language, and its final
// expression becomes the new tree.
type Transform struct {
	rt     *Runtime
	source string
	label  string
}

// LoadTransform reads the script at path.
func (r *Runtime) LoadTransform(path string) (*Transform, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return &Transform{rt: r, source: src, label: path}, nil
}

// NewTransform wraps inline script source.
func (r *Runtime) NewTransform(source string) *Transform {
	return &Transform{rt: r, source: source, label: "<inline>"}
}

// Apply runs the script over tree. A script that evaluates to nil is an
// error.
func (t *Transform) Apply(ctx context.Context, tree any, path, language string) (any, error) {
	out, err := t.rt.eval(ctx, t.source, t.label, map[string]any{
		"ast":       tree,
		"file_path": path,
		"language":  language,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("runtime: transform %s: %w", t.label, errNilTree)
	}
	return out, nil
}

var errNilTree = errors.New("script returned nil")
