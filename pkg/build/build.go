// Package build drives cross-compilation of the input program for every
// valid target of the platform matrix.
package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/forgeworks-io/crossrun/pkg/platform"
	"github.com/forgeworks-io/crossrun/pkg/store"
)

// Job describes one compiler invocation: the input package, the target to
// compile for, and the artifact to produce.
type Job struct {
	Target platform.Target
	Input  string
	Output string
	// HeapMB is a memory hint for the compiler process, in megabytes.
	HeapMB int
}

// Options control one BuildAll pass.
type Options struct {
	Input string
	Dest  string
	Name  string
	// Dev builds only the current host's target.
	Dev bool
	// HeapMultiplier is multiplied by 1024 to produce the compiler memory
	// hint in megabytes.
	HeapMultiplier int
}

// CompileFunc invokes the compiler for one job.
type CompileFunc func(ctx context.Context, job Job) error

// Builder iterates the platform matrix and runs one compiler invocation per
// valid target, each into its own cleared output directory.
type Builder struct {
	logger  *log.Logger
	store   *store.Store // optional build history, may be nil
	compile CompileFunc
}

// New creates a Builder that shells out to the Go toolchain. The store may
// be nil to skip history recording.
func New(logger *log.Logger, st *store.Store) *Builder {
	b := &Builder{logger: logger, store: st}
	b.compile = goBuild
	return b
}

// NewWithCompiler creates a Builder with a custom compile function.
func NewWithCompiler(logger *log.Logger, st *store.Store, compile CompileFunc) *Builder {
	return &Builder{logger: logger, store: st, compile: compile}
}

// BuildAll compiles the input program for every target of the pass. In dev
// mode that is exactly the current host's target; otherwise the full valid
// matrix, OS-major. The first compiler failure aborts the remaining targets.
func (b *Builder) BuildAll(ctx context.Context, opts Options) error {
	start := time.Now()

	var targets []platform.Target
	if opts.Dev {
		host, err := platform.Host()
		if err != nil {
			return err
		}
		targets = []platform.Target{host}
	} else {
		targets = platform.Targets()
	}

	for _, target := range targets {
		if err := b.buildTarget(ctx, target, opts); err != nil {
			return err
		}
	}

	b.logger.Infof("built %s (%d targets) in %s", opts.Name, len(targets), time.Since(start).Round(time.Millisecond))
	return nil
}

func (b *Builder) buildTarget(ctx context.Context, target platform.Target, opts Options) error {
	dir, err := filepath.Abs(filepath.Join(opts.Dest, target.String()))
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	// Idempotent wipe: a rebuild must not leave artifacts from a previous
	// binary name or version.
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear output dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	job := Job{
		Target: target,
		Input:  opts.Input,
		Output: filepath.Join(dir, target.BinaryName(opts.Name)),
		HeapMB: opts.HeapMultiplier * 1024,
	}

	b.logger.Debugf("building %s for %s", opts.Name, target)
	started := time.Now()
	err = b.compile(ctx, job)
	b.record(opts.Name, job, time.Since(started), err)
	if err != nil {
		return fmt.Errorf("build %s for %s: %w", opts.Name, target, err)
	}
	return nil
}

func (b *Builder) record(name string, job Job, elapsed time.Duration, buildErr error) {
	if b.store == nil {
		return
	}
	rec := &store.BuildRecord{
		Name:       name,
		Target:     job.Target.String(),
		Output:     job.Output,
		DurationMS: elapsed.Milliseconds(),
		Success:    buildErr == nil,
	}
	if buildErr != nil {
		rec.Error = buildErr.Error()
	}
	if err := b.store.RecordBuild(rec); err != nil {
		b.logger.Debugf("failed to record build history: %v", err)
	}
}

// goBuild shells out to the Go toolchain with OS/architecture environment
// overrides, the input directory as working directory, and the artifact path
// as output. Compiler output goes straight to the parent's streams.
func goBuild(ctx context.Context, job Job) error {
	cmd := exec.CommandContext(ctx, "go", "build", "-o", job.Output)
	cmd.Dir = job.Input
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("GOOS=%s", job.Target.OS),
		fmt.Sprintf("GOARCH=%s", job.Target.Arch),
	)
	if job.HeapMB > 0 {
		cmd.Env = append(cmd.Env, fmt.Sprintf("GOMEMLIMIT=%dMiB", job.HeapMB))
	}
	return cmd.Run()
}
