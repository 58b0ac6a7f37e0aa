// Package cbom drives Cryptographic Bill of Materials synthesis over stored
// syntax trees and converts the model output into normalized artifacts.
package cbom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrRateLimited marks a synthesizer failure that may succeed on retry.
	ErrRateLimited = errors.New("rate limited")
	// ErrMaxRetries is returned when every attempt was rate limited.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryPolicy decides whether and when to retry a failed synthesis.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy allows 5 attempts with a 2 second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second}
}

// Delay returns the wait after the given 1-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

// Retryable reports whether err is a rate-limit failure. Errors that only
// carry an HTTP 429 in their message qualify too.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || strings.Contains(err.Error(), "429")
}

// Synthesizer sends one prompt to a model and returns the completion text.
type Synthesizer interface {
	Synthesize(ctx context.Context, model, prompt string) (string, error)
}

// Input is one stored tree to analyze.
type Input struct {
	FilePath string
	Payload  string
}

// Input kinds recorded on each Result.
const (
	InputAST          = "ast"
	InputSource       = "source"
	InputASTTruncated = "ast_truncated"
)

// Result is one raw synthesis outcome, as written to the raw artifact.
type Result struct {
	FileName   string `json:"file_name"`
	Model      string `json:"model"`
	InputKind  string `json:"input_kind"`
	InputChars int    `json:"input_chars"`
	Attempts   int    `json:"attempts"`
	Output     string `json:"output"`
}

// Failure records a file whose synthesis failed.
type Failure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// Generator runs synthesis with the size ceiling and retry policy applied.
type Generator struct {
	synth    Synthesizer
	model    string
	maxChars int
	prompt   string
	policy   RetryPolicy
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithMaxChars sets the input size ceiling in characters.
func WithMaxChars(n int) Option {
	return func(g *Generator) { g.maxChars = n }
}

// WithPrompt replaces the instruction text prepended to every input.
func WithPrompt(p string) Option {
	return func(g *Generator) { g.prompt = p }
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Generator) { g.policy = p }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(g *Generator) { g.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator returns a Generator with a 120,000 character ceiling and the
// default retry policy.
func NewGenerator(s Synthesizer, opts ...Option) *Generator {
	g := &Generator{
		synth:    s,
		model:    "gpt-4.1-mini",
		maxChars: 120_000,
		prompt:   DefaultPrompt,
		policy:   DefaultRetryPolicy(),
		sleep:    sleepContext,
	}
	for _, o := range opts {
		o(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// selectInput picks what to send: the tree when it fits, else the file's
// source when that is readable and fits, else the tree cut to the ceiling.
func (g *Generator) selectInput(in Input) (string, string) {
	if utf8.RuneCountInString(in.Payload) <= g.maxChars {
		return in.Payload, InputAST
	}
	if src, err := os.ReadFile(in.FilePath); err == nil && utf8.RuneCount(src) <= g.maxChars {
		return string(src), InputSource
	}
	g.logger.Warn("cbom.input_truncated", "path", in.FilePath, "chars", utf8.RuneCountInString(in.Payload), "max", g.maxChars)
	return truncateRunes(in.Payload, g.maxChars), InputASTTruncated
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Generate synthesizes a CBOM for one input. Rate-limited failures are
// retried per the policy; any other failure is returned immediately.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	text, kind := g.selectInput(in)
	prompt := g.prompt + text

	attempts := g.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := g.synth.Synthesize(ctx, g.model, prompt)
		if err == nil {
			return &Result{
				FileName:   in.FilePath,
				Model:      g.model,
				InputKind:  kind,
				InputChars: utf8.RuneCountInString(text),
				Attempts:   attempt,
				Output:     out,
			}, nil
		}
		if !g.policy.Retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		wait := g.policy.Delay(attempt)
		g.logger.Warn("cbom.rate_limited", "path", in.FilePath, "attempt", attempt, "wait", wait)
		if err := g.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, attempts, lastErr)
}

// GenerateAll runs Generate for each input in order. Per-file failures are
// collected; only context cancellation stops the loop early.
func (g *Generator) GenerateAll(ctx context.Context, inputs []Input) ([]Result, []Failure) {
	results := []Result{}
	failures := []Failure{}
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{FilePath: in.FilePath, Error: err.Error()})
			continue
		}
		res, err := g.Generate(ctx, in)
		if err != nil {
			g.logger.Warn("cbom.failed", "path", in.FilePath, "err", err)
			failures = append(failures, Failure{FilePath: in.FilePath, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results, failures
}

// DefaultPrompt asks for one CBOM entry per tree.
const DefaultPrompt = `The following JSON is a syntax tree of a source file that appears to use cryptography.
Identify the cryptographic usage in it and answer with a single JSON object describing it:
{
  "file_name": string or null,
  "line_number": integer or null,
  "api_call": string or null,
  "algorithm": string or null,
  "cryptographic_function": string or null,
  "mode": string or null,
  "key_size": integer or null,
  "purpose": string or null,
  "multiple_uses": boolean
}
api_call is the call performing the operation, for example encrypt(data, key).
algorithm names the primitive, for example AES, SHA-256 or RSA.
cryptographic_function is the operation kind, for example keygen, digest or verify.
mode is the block mode where one applies, for example GCM or CBC.
key_size is in bits.
If the file uses cryptography more than once, describe the first use and set multiple_uses to true.
Reply with the JSON object only.

`
