package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/log"
)

// Runner executes external binaries (engine, turn checker, master,
// scripts) one at a time. Concurrent callers queue on an internal mutex,
// matching the strictly-serial discipline of the scheduler.
//
// Child processes are launched directly: file descriptors are
// close-on-exec in Go, so children never inherit the server's sockets
// and no helper process is needed.
type Runner struct {
	mu  sync.Mutex
	env []string
	log zerolog.Logger
}

// Result is the outcome of one subprocess run
type Result struct {
	Output   string
	ExitCode int
}

// New creates a runner. The given environment entries (e.g. BINDIR) are
// appended to every child's environment.
func New(env []string) *Runner {
	return &Runner{
		env: env,
		log: log.WithComponent("runner"),
	}
}

// Run executes name with args in dir, capturing combined output and the
// exit status. A non-zero exit is not an error; it is reported in the
// result. On shutdown the child gets TERM, then KILL one second later.
func (r *Runner) Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		err = nil
	default:
		r.log.Error().Err(err).Str("cmd", name).Msg("subprocess failed to run")
		return res, err
	}

	r.log.Debug().
		Str("cmd", name).
		Strs("args", args).
		Int("exit", res.ExitCode).
		Dur("took", time.Since(start)).
		Msg("subprocess finished")
	return res, nil
}
