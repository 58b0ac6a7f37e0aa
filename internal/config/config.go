// Package config holds the injectable configuration shared by every
// pipeline component: the category table, the extension allow-list, the
// directory ignore-list, the import resolution order, and collaborator
// settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/cryptosieve/internal/imports"
	"github.com/jward/cryptosieve/internal/match"
)

// Config is the full configuration surface, normally loaded from
// cryptosieve.yaml.
type Config struct {
	Categories        match.Table `yaml:"categories"`
	Extensions        []string    `yaml:"extensions"`
	IgnoreDirs        []string    `yaml:"ignore_dirs"`
	ResolveExtensions []string    `yaml:"resolve_extensions"`
	Clone             CloneConfig `yaml:"clone"`
	AST               ASTConfig   `yaml:"ast"`
	CBOM              CBOMConfig  `yaml:"cbom"`
}

// CloneConfig controls workspace acquisition.
type CloneConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Depth   int           `yaml:"depth"`
	// WorkRoot is the parent of per-run workspace directories. Empty means
	// the system temp directory.
	WorkRoot string `yaml:"work_root,omitempty"`
}

// ASTConfig controls AST extraction.
type ASTConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// Command, when set, runs an external extractor instead of tree-sitter.
	// The file path is appended as the last argument; JSON is read from
	// stdout.
	Command []string `yaml:"command,omitempty"`
	// TransformScript is an optional Risor script applied to each tree
	// before it is stored.
	TransformScript string `yaml:"transform_script,omitempty"`
	// IncludeText records the source text of leaf nodes.
	IncludeText bool `yaml:"include_text"`
}

// CBOMConfig controls CBOM synthesis.
type CBOMConfig struct {
	Model       string        `yaml:"model"`
	MaxChars    int           `yaml:"max_chars"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	// Command runs the model: the prompt is written to stdin and the
	// completion read from stdout. The model id is passed via the
	// CRYPTOSIEVE_MODEL environment variable.
	Command []string `yaml:"command,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Categories:        match.DefaultTable(),
		Extensions:        []string{".js", ".jsx", ".ts", ".tsx"},
		IgnoreDirs:        []string{"node_modules", "dist"},
		ResolveExtensions: append([]string(nil), imports.DefaultExtensions...),
		Clone: CloneConfig{
			Timeout: 60 * time.Second,
			Depth:   1,
		},
		AST: ASTConfig{
			Timeout:     30 * time.Second,
			IncludeText: true,
		},
		CBOM: CBOMConfig{
			Model:       "gpt-4.1-mini",
			MaxChars:    120_000,
			MaxAttempts: 5,
			BaseDelay:   2 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; a list present in the file replaces the default
// list. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML into base and validates the result.
func Parse(data []byte, base *Config) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(base); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// Validate normalizes extensions and checks that the category table
// compiles.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("config: at least one category is required")
	}
	if len(c.Extensions) == 0 {
		return errors.New("config: extensions allow-list is empty")
	}
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
	if _, err := match.Compile(c.Categories); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.CBOM.MaxAttempts < 1 {
		return fmt.Errorf("config: cbom.max_attempts must be at least 1, got %d", c.CBOM.MaxAttempts)
	}
	return nil
}

// Matcher compiles the category table.
func (c *Config) Matcher() (*match.Matcher, error) {
	return match.Compile(c.Categories)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}
