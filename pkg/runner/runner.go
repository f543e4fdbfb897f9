// Package runner executes prebuilt platform binaries, either synchronously
// or under a supervised background worker, and relays their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/forgeworks-io/crossrun/pkg/store"
	"github.com/forgeworks-io/crossrun/pkg/timing"
)

// Request describes one invocation of a prebuilt binary. Dir is both the
// root of the per-target artifact directories and the child's working
// directory.
type Request struct {
	Cmd            string
	Dir            string
	Args           []string
	Label          string
	HeapMultiplier int
	// InheritStdio passes the parent's standard streams straight through to
	// the child instead of capturing them. Only honored by the supervisor.
	InheritStdio bool
}

// Result carries the captured output streams of a finished child. The exit
// code is deliberately not classified; the child's own output tells the
// story.
type Result struct {
	Stdout string
	Stderr string
}

// HeapFlag synthesizes the memory-limit flag every wrapped binary accepts.
// The multiplier is in gigabytes; the flag value is megabytes.
func HeapFlag(multiplier int) string {
	return fmt.Sprintf("--max-old-space-size=%d", multiplier*1024)
}

// Runner spawns binaries synchronously, blocking until the child exits.
type Runner struct {
	logger *log.Logger
	store  *store.Store // optional run history, may be nil
}

// New creates a synchronous Runner. The store may be nil to skip history
// recording.
func New(logger *log.Logger, st *store.Store) *Runner {
	return &Runner{logger: logger, store: st}
}

// Run resolves the platform binary for req.Cmd and executes it, capturing
// both output streams. A missing binary short-circuits to an empty Result.
// Non-zero child exit is not an error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	bin, err := BinaryPath(req.Dir, req.Cmd)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(bin); err != nil {
		if os.IsNotExist(err) {
			r.logger.Debugf("binary %s does not exist, nothing to run", bin)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("stat binary: %w", err)
	}

	args := append(append([]string{}, req.Args...), HeapFlag(req.HeapMultiplier))
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = req.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("run %s: %w", bin, runErr)
		}
		exitCode = exitErr.ExitCode()
	}
	r.record(req, exitCode, started)

	if out := stdout.String(); out != "" {
		r.logger.Infof("%s %s", req.Label, strings.TrimRight(out, "\n"))
	}
	if errText := stderr.String(); errText != "" && req.Label != "" {
		logStderr(r.logger, req.Label, errText)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (r *Runner) record(req Request, exitCode int, started time.Time) {
	if r.store == nil {
		return
	}
	rec := &store.RunRecord{
		Command:   req.Cmd,
		Args:      strings.Join(req.Args, " "),
		ExitCode:  exitCode,
		StartedAt: started.UTC(),
		EndedAt:   time.Now().UTC(),
	}
	if err := r.store.RecordRun(rec); err != nil {
		r.logger.Debugf("failed to record run history: %v", err)
	}
}

// logStderr feeds one stderr payload through the timing-marker parser and
// logs whatever it yields.
func logStderr(logger *log.Logger, label, payload string) {
	entry := timing.Parse(strings.TrimRight(payload, "\n"))
	if entry.Duration != nil {
		logger.Infof("%s took %s", label, entry.Duration)
	}
	if entry.Raw != "" {
		logger.Error(entry.Raw)
	}
	if msg := strings.TrimSpace(entry.Message); msg != "" {
		logger.Error(msg)
	}
}
