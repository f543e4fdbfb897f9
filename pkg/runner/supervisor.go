package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/forgeworks-io/crossrun/pkg/store"
	"github.com/forgeworks-io/crossrun/pkg/timing"
)

// EventKind tags a lifecycle or output notification from a worker.
type EventKind int

const (
	// EventRunning signals that the child process started. Exactly one per
	// worker generation.
	EventRunning EventKind = iota
	// EventOutput carries one line of child output. Stderr lines that carry
	// no timing marker arrive with Stderr set.
	EventOutput
	// EventTiming carries a duration parsed from the child's error stream.
	EventTiming
	// EventCompleted signals child exit; ExitCode is valid.
	EventCompleted
	// EventFailed signals a spawn or I/O failure; Err is valid.
	EventFailed
)

// Event is one message from a worker to its supervisor. Events from a given
// worker are delivered in the order the worker sent them.
type Event struct {
	Kind     EventKind
	Line     string
	Stderr   bool
	Duration *timing.Record
	PID      int
	ExitCode int
	Err      error
}

// Status describes the supervisor's current worker, if any.
type Status struct {
	Running bool   `json:"running"`
	Cmd     string `json:"cmd,omitempty"`
	PID     int    `json:"pid,omitempty"`
}

// Supervisor runs at most one binary at a time under a background worker.
// Invoking Start again replaces the in-flight worker: the previous child is
// killed and its worker fully drained before the new generation can be
// observed as running. Start does not block on child completion.
type Supervisor struct {
	logger *log.Logger
	store  *store.Store // optional run history, may be nil

	// startMu serializes Start/Terminate so generations never interleave.
	startMu sync.Mutex

	mu          sync.Mutex
	w           *worker
	initialized bool
	pid         int
}

// NewSupervisor creates a Supervisor. The store may be nil to skip history
// recording.
func NewSupervisor(logger *log.Logger, st *store.Store) *Supervisor {
	return &Supervisor{logger: logger, store: st}
}

// Start launches req under a fresh background worker, first terminating and
// draining any in-flight worker. It returns once the new worker has been
// dispatched.
func (s *Supervisor) Start(req Request) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.replaceWorker(nil)

	w := newWorker(req)
	s.mu.Lock()
	s.w = w
	s.initialized = false
	s.mu.Unlock()

	go s.consume(w)
	go w.run()
}

// Terminate kills the current child, if any, and drains its worker.
func (s *Supervisor) Terminate() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.replaceWorker(nil)
}

// replaceWorker detaches the current worker, stops it, and waits until it
// has fully wound down. Must hold startMu.
func (s *Supervisor) replaceWorker(next *worker) {
	s.mu.Lock()
	old := s.w
	s.w = next
	s.initialized = false
	s.pid = 0
	s.mu.Unlock()

	if old != nil {
		old.terminate()
		<-old.done
	}
}

// Status reports whether a supervised child is currently running.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil || !s.initialized {
		return Status{}
	}
	return Status{Running: true, Cmd: s.w.req.Cmd, PID: s.pid}
}

// consume drains one worker's event stream and forwards it to the log sink.
// Errors are logged and swallowed; they never crash the host process.
func (s *Supervisor) consume(w *worker) {
	label := w.req.Label
	if label == "" {
		label = w.req.Cmd
	}
	for ev := range w.events {
		switch ev.Kind {
		case EventRunning:
			s.mu.Lock()
			if s.w == w {
				s.initialized = true
				s.pid = ev.PID
			}
			s.mu.Unlock()
			s.logger.Infof("%s started (pid %d)", label, ev.PID)
		case EventOutput:
			if ev.Stderr {
				s.logger.Error(ev.Line)
			} else {
				s.logger.Infof("%s %s", label, ev.Line)
			}
		case EventTiming:
			s.logger.Infof("%s took %s", label, ev.Duration)
		case EventCompleted:
			s.logger.Infof("%s exited with code %d", label, ev.ExitCode)
			s.record(w, ev.ExitCode)
		case EventFailed:
			s.logger.Errorf("%s worker failed: %v", label, ev.Err)
		}
	}

	s.mu.Lock()
	if s.w == w {
		s.w = nil
		s.initialized = false
		s.pid = 0
	}
	s.mu.Unlock()
}

// record stamps the row with the worker's own start time; a superseded
// generation must not inherit its successor's.
func (s *Supervisor) record(w *worker, exitCode int) {
	if s.store == nil {
		return
	}
	rec := &store.RunRecord{
		Command:   w.req.Cmd,
		Args:      strings.Join(w.req.Args, " "),
		ExitCode:  exitCode,
		StartedAt: w.startedAt.UTC(),
		EndedAt:   time.Now().UTC(),
	}
	if err := s.store.RecordRun(rec); err != nil {
		s.logger.Debugf("failed to record run history: %v", err)
	}
}

// worker hosts one subprocess generation. It owns the exec.Cmd and talks to
// the supervisor only through its event channel.
type worker struct {
	req    Request
	events chan Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	// startedAt is written before EventRunning is sent and read only after a
	// later event arrives, so the channel orders the accesses.
	startedAt time.Time
}

func newWorker(req Request) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		req:    req,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// terminate kills the tracked child, if any. The worker winds down on its
// own afterwards; done closes once the event stream is finished.
func (w *worker) terminate() {
	w.cancel()
}

func (w *worker) run() {
	defer close(w.done)
	defer close(w.events)
	defer w.cancel()

	bin, err := BinaryPath(w.req.Dir, w.req.Cmd)
	if err != nil {
		w.events <- Event{Kind: EventFailed, Err: err}
		return
	}

	args := append(append([]string{}, w.req.Args...), HeapFlag(w.req.HeapMultiplier))
	cmd := exec.CommandContext(w.ctx, bin, args...)
	cmd.Dir = w.req.Dir
	// A child that forks can leave its stream descriptors open in a
	// grandchild after the direct child dies. WaitDelay bounds how long that
	// holds up stream teardown, so a killed generation always winds down.
	cmd.WaitDelay = 2 * time.Second

	if w.req.InheritStdio {
		w.runInherited(cmd)
		return
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		w.events <- Event{Kind: EventFailed, Err: err}
		return
	}
	w.startedAt = time.Now()
	w.events <- Event{Kind: EventRunning, PID: cmd.Process.Pid}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutR)
		for scanner.Scan() {
			w.events <- Event{Kind: EventOutput, Line: scanner.Text()}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrR)
		for scanner.Scan() {
			w.emitStderr(scanner.Text())
		}
	}()

	// Wait returns once the child's output has been relayed through the
	// pipes or WaitDelay lapses; closing the write ends then releases the
	// scanners.
	err = cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()
	w.report(cmd, err)
}

// runInherited passes the parent's streams straight through; output is not
// capturable in this mode.
func (w *worker) runInherited(cmd *exec.Cmd) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		w.events <- Event{Kind: EventFailed, Err: err}
		return
	}
	w.startedAt = time.Now()
	w.events <- Event{Kind: EventRunning, PID: cmd.Process.Pid}
	w.report(cmd, cmd.Wait())
}

func (w *worker) report(cmd *exec.Cmd, err error) {
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			w.events <- Event{Kind: EventCompleted, ExitCode: exitErr.ExitCode()}
			return
		case errors.Is(err, exec.ErrWaitDelay):
			// The child exited but its pipes were forcibly closed; the exit
			// status itself is fine.
			w.events <- Event{Kind: EventCompleted, ExitCode: cmd.ProcessState.ExitCode()}
			return
		}
		w.events <- Event{Kind: EventFailed, Err: err}
		return
	}
	w.events <- Event{Kind: EventCompleted, ExitCode: 0}
}

// emitStderr routes one stderr line through the timing-marker parser.
func (w *worker) emitStderr(line string) {
	entry := timing.Parse(line)
	if entry.Duration != nil {
		w.events <- Event{Kind: EventTiming, Duration: entry.Duration}
	}
	if entry.Raw != "" {
		w.events <- Event{Kind: EventOutput, Line: entry.Raw, Stderr: true}
	}
	if msg := strings.TrimSpace(entry.Message); msg != "" {
		w.events <- Event{Kind: EventOutput, Line: msg, Stderr: true}
	}
}
