package cbom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandSynthesizer runs a model client as a subprocess. The prompt is
// written to stdin and the completion read from stdout; the model id is
// passed in CRYPTOSIEVE_MODEL. Failures whose stderr mentions 429 or a rate
// limit are reported as ErrRateLimited.
type CommandSynthesizer struct {
	Command []string
}

// Synthesize implements Synthesizer.
func (c *CommandSynthesizer) Synthesize(ctx context.Context, model, prompt string) (string, error) {
	if len(c.Command) == 0 {
		return "", errors.New("cbom command is empty")
	}
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(os.Environ(), "CRYPTOSIEVE_MODEL="+model)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") {
			return "", fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
		if msg != "" {
			return "", fmt.Errorf("cbom command: %w: %s", err, msg)
		}
		return "", fmt.Errorf("cbom command: %w", err)
	}
	return stdout.String(), nil
}
