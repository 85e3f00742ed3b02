package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sprite-ai/revgate/internal/model"
)

// maxStderr bounds how much of a failing analyzer's stderr ends up in its
// diagnostic.
const maxStderr = 2048

// cappedBuffer keeps the first limit bytes written to it and drops the
// rest, so a runaway process cannot exhaust memory.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if len(p) > room {
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		b.overflow = true
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

// Command runs an external analyzer as a subprocess. The View is written to
// stdin as JSON and the finding payload is read from stdout. On
// cancellation the process is interrupted and, after Grace, killed.
type Command struct {
	Path  string
	Args  []string
	Dir   string
	Env   []string
	Grace time.Duration

	// MaxOutput bounds stdout. Zero means the same limit as HTTP response
	// bodies.
	MaxOutput int
}

// Invoke implements Invoker.
func (c *Command) Invoke(ctx context.Context, view View) ([]model.Finding, error) {
	input, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encoding view: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = c.Grace

	limit := c.MaxOutput
	if limit <= 0 {
		limit = maxResponseBytes
	}
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}

	if stdout.overflow {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrMalformedOutput, limit)
	}
	return DecodePayload(view.Analyzer, stdout.Bytes())
}
