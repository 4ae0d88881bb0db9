package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/applymytech/openElara-sub000/internal/logging"
)

// ScriptRunner invokes the RAG backend script as a subprocess, passing the
// query on stdin and reading one JSON document from stdout. Timeout policy
// belongs to the caller's context; no timeout is imposed here.
type ScriptRunner struct {
	interpreter string
	scriptPath  string
}

// NewScriptRunner creates a runner for the backend script. The interpreter
// defaults to "python" when empty.
func NewScriptRunner(interpreter, scriptPath string) (*ScriptRunner, error) {
	if interpreter == "" {
		interpreter = "python"
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("backend script not found: %w", err)
	}
	return &ScriptRunner{interpreter: interpreter, scriptPath: scriptPath}, nil
}

// Run executes one backend command. The backend writes progress to stderr
// and its result to stdout; stderr is only surfaced when the command fails.
func (r *ScriptRunner) Run(ctx context.Context, args []string, input string) ([]byte, error) {
	log := logging.Get(logging.CategoryRetrieval)
	log.Debugf("spawning backend: %s %s %s", r.interpreter, r.scriptPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, r.interpreter, append([]string{r.scriptPath}, args...)...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("backend command failed: %w", err)
		}
		return nil, fmt.Errorf("backend command failed: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}
