package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExtractor runs an external parser once per file. The file path is
// appended to Command; stdout must be a JSON document. A document of the
// form {"ok": false, "error": "..."} is reported as a failure.
type CommandExtractor struct {
	Command   []string
	Transform *Transform
}

// Extract runs the command for path and returns its JSON output.
func (c *CommandExtractor) Extract(ctx context.Context, path string) (string, error) {
	if len(c.Command) == 0 {
		return "", errors.New("ast command is empty")
	}
	args := append(append([]string(nil), c.Command[1:]...), path)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ast command for %s: %w: %s", path, err, msg)
		}
		return "", fmt.Errorf("ast command for %s: %w", path, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	var doc any
	if err := json.Unmarshal(out, &doc); err != nil {
		return "", fmt.Errorf("ast command for %s: invalid JSON output: %w", path, err)
	}

	env, isObject := doc.(map[string]any)
	if isObject {
		if ok, present := env["ok"].(bool); present && !ok {
			msg, _ := env["error"].(string)
			return "", fmt.Errorf("ast command for %s: parser reported failure: %s", path, msg)
		}
	}

	if c.Transform == nil {
		return string(out), nil
	}

	lang, _ := LanguageForFile(path)
	var err error
	if tree, has := env["ast"]; isObject && has {
		rewritten, err := c.Transform.Apply(ctx, tree, path, lang)
		if err != nil {
			return "", err
		}
		env["ast"] = rewritten
	} else if doc, err = c.Transform.Apply(ctx, doc, path, lang); err != nil {
		return "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding ast for %s: %w", path, err)
	}
	return string(data), nil
}
