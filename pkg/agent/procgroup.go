package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// killGrace is how long the process group gets between SIGTERM and SIGKILL.
const killGrace = 200 * time.Millisecond

// groupRunner starts commands in their own process group so that canceling the context
// stops the agent together with every tool process it spawned.
type groupRunner struct{}

func (r *groupRunner) Run(ctx context.Context, dir, name string, args ...string) (io.Reader, func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("context already canceled: %w", err)
	}

	// not CommandContext: cancellation kills the whole group, not just the direct child
	cmd := exec.Command(name, args...) //nolint:noctx // canceled via process group kill
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start command: %w", err)
	}

	pg := &procGroup{cmd: cmd, done: make(chan struct{})}
	go pg.killOnCancel(ctx)
	return stdout, pg.wait, nil
}

// procGroup owns a started command and its process group.
type procGroup struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func (pg *procGroup) killOnCancel(ctx context.Context) {
	select {
	case <-ctx.Done():
		pg.kill()
	case <-pg.done:
	}
}

// kill sends SIGTERM to the group and SIGKILL after a short grace period.
func (pg *procGroup) kill() {
	if pg.cmd.Process == nil {
		return
	}
	pgid := -pg.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		return // ESRCH: already gone
	}

	select {
	case <-pg.done:
		return
	case <-time.After(killGrace):
	}
	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		fmt.Fprintf(os.Stderr, "[agent] SIGKILL failed for pgid %d: %v\n", pgid, err)
	}
}

// wait is idempotent and safe for concurrent callers.
func (pg *procGroup) wait() error {
	pg.once.Do(func() {
		pg.err = pg.cmd.Wait()
		close(pg.done)
		if pg.err != nil {
			pg.err = fmt.Errorf("command wait: %w", pg.err)
		}
	})
	return pg.err
}
