package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedLanguage is returned for files with no known grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Extractor turns one file into a serialized syntax tree.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Envelope is the stored payload shape: the tree plus how it was produced.
type Envelope struct {
	OK       bool   `json:"ok"`
	Language string `json:"language,omitempty"`
	AST      any    `json:"ast,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Point is a zero-based row/column position.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Node is the JSON form of a named tree-sitter node. Anonymous tokens
// (punctuation, keywords) are omitted.
type Node struct {
	Type     string  `json:"type"`
	Field    string  `json:"field,omitempty"`
	Start    Point   `json:"start"`
	End      Point   `json:"end"`
	Text     string  `json:"text,omitempty"`
	HasError bool    `json:"hasError,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// TreeSitterExtractor parses files in process.
type TreeSitterExtractor struct {
	includeText bool
	transform   *Transform
	logger      *slog.Logger
}

// ExtractorOption configures a TreeSitterExtractor.
type ExtractorOption func(*TreeSitterExtractor)

// WithIncludeText records the source text of leaf nodes.
func WithIncludeText(on bool) ExtractorOption {
	return func(e *TreeSitterExtractor) { e.includeText = on }
}

// WithTransform applies t to every tree before serialization.
func WithTransform(t *Transform) ExtractorOption {
	return func(e *TreeSitterExtractor) { e.transform = t }
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *TreeSitterExtractor) { e.logger = l }
}

// NewTreeSitterExtractor returns an extractor that includes leaf text.
func NewTreeSitterExtractor(opts ...ExtractorOption) *TreeSitterExtractor {
	e := &TreeSitterExtractor{includeText: true}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract parses path and returns the JSON envelope. Syntax errors do not
// fail extraction; they are flagged with hasError on the affected nodes.
func (e *TreeSitterExtractor) Extract(ctx context.Context, path string) (string, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	grammar, ok := ParserForLanguage(lang)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := e.convert(tree.RootNode(), "", src)

	var ast any = root
	if e.transform != nil {
		generic, err := toGeneric(root)
		if err != nil {
			return "", err
		}
		ast, err = e.transform.Apply(ctx, generic, path, lang)
		if err != nil {
			return "", err
		}
	}

	data, err := json.Marshal(Envelope{OK: true, Language: lang, AST: ast})
	if err != nil {
		return "", fmt.Errorf("encoding ast for %s: %w", path, err)
	}
	e.logger.Debug("runtime.extracted", "path", path, "language", lang, "bytes", len(data))
	return string(data), nil
}

func (e *TreeSitterExtractor) convert(n *sitter.Node, field string, src []byte) *Node {
	sp, ep := n.StartPoint(), n.EndPoint()
	out := &Node{
		Type:     n.Type(),
		Field:    field,
		Start:    Point{Row: sp.Row, Column: sp.Column},
		End:      Point{Row: ep.Row, Column: ep.Column},
		HasError: n.Type() == "ERROR" || n.IsMissing(),
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		out.Children = append(out.Children, e.convert(child, n.FieldNameForChild(i), src))
	}
	if e.includeText && len(out.Children) == 0 {
		out.Text = n.Content(src)
	}
	return out
}

// toGeneric converts a typed tree into maps and slices so scripts can
// index it.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	return out, nil
}
