package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
)

// Host functions operate on the generic tree form: maps with a "type"
// string and an optional "children" list.

// makePruneTypesFn creates the "prune_types" host function.
//
// prune_types(node, types) → copy of node without descendants whose type is
// in types
func makePruneTypesFn() *object.Builtin {
	return object.NewBuiltin("prune_types", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("prune_types", 2, len(args))
		}
		types, errObj := typeSet("prune_types", args[1])
		if errObj != nil {
			return errObj
		}
		return object.FromGoType(pruneTypes(args[0].Interface(), types))
	})
}

// makeFindTypesFn creates the "find_types" host function.
//
// find_types(node, types) → list of nodes whose type is in types, pre-order
func makeFindTypesFn() *object.Builtin {
	return object.NewBuiltin("find_types", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("find_types", 2, len(args))
		}
		types, errObj := typeSet("find_types", args[1])
		if errObj != nil {
			return errObj
		}
		found := []any{}
		findTypes(args[0].Interface(), types, &found)
		return object.FromGoType(found)
	})
}

// makeLimitDepthFn creates the "limit_depth" host function.
//
// limit_depth(node, depth) → copy of node with children below depth dropped
func makeLimitDepthFn() *object.Builtin {
	return object.NewBuiltin("limit_depth", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("limit_depth", 2, len(args))
		}
		depth, ok := args[1].(*object.Int)
		if !ok {
			return object.Errorf("limit_depth: depth must be an int, got %s", args[1].Type())
		}
		return object.FromGoType(limitDepth(args[0].Interface(), int(depth.Value())))
	})
}

func typeSet(fn string, arg object.Object) (map[string]bool, object.Object) {
	list, ok := arg.(*object.List)
	if !ok {
		return nil, object.Errorf("%s: types must be a list, got %s", fn, arg.Type())
	}
	set := make(map[string]bool)
	for _, item := range list.Value() {
		s, ok := item.(*object.String)
		if !ok {
			return nil, object.Errorf("%s: types must be strings, got %s", fn, item.Type())
		}
		set[s.Value()] = true
	}
	return set, nil
}

func nodeType(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func pruneTypes(node any, drop map[string]bool) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	out := shallowCopy(m)
	if kids, ok := m["children"].([]any); ok {
		kept := make([]any, 0, len(kids))
		for _, c := range kids {
			if drop[nodeType(c)] {
				continue
			}
			kept = append(kept, pruneTypes(c, drop))
		}
		out["children"] = kept
	}
	return out
}

func findTypes(node any, want map[string]bool, found *[]any) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	if want[nodeType(m)] {
		*found = append(*found, m)
	}
	if kids, ok := m["children"].([]any); ok {
		for _, c := range kids {
			findTypes(c, want, found)
		}
	}
}

func limitDepth(node any, depth int) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	out := shallowCopy(m)
	kids, ok := m["children"].([]any)
	if !ok {
		return out
	}
	if depth <= 0 {
		delete(out, "children")
		return out
	}
	limited := make([]any, len(kids))
	for i, c := range kids {
		limited[i] = limitDepth(c, depth-1)
	}
	out["children"] = limited
	return out
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}
