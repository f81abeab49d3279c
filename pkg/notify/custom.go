package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// customChannel pipes the result as JSON into a user script.
// the status is also exported as AIDD_STATUS for scripts that don't parse JSON.
type customChannel struct {
	script string
}

func (c *customChannel) send(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.script) //nolint:gosec // script path comes from user config
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = append(os.Environ(), "AIDD_STATUS="+r.Status)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second // children of a killed script may hold the output pipe

	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(out.String()); s != "" {
			return fmt.Errorf("script %s: %w, output: %s", c.script, err, s)
		}
		return fmt.Errorf("script %s: %w", c.script, err)
	}
	return nil
}
