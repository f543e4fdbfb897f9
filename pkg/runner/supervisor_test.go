package runner

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forgeworks-io/crossrun/pkg/store"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestSupervisorRunsToCompletion(t *testing.T) {
	base := t.TempDir()
	installFakeBinary(t, base, "agent", `echo "ready"
echo "5.25ms+~+~+" >&2
exit 0
`)
	logger, logs := capturedLogger()
	s := NewSupervisor(logger, nil)

	s.Start(Request{Cmd: "agent", Dir: base, Label: "agent"})

	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(logs.String(), "exited with code 0")
	}, "completion event")

	out := logs.String()
	if !strings.Contains(out, "agent started") {
		t.Errorf("logs missing running event:\n%s", out)
	}
	if !strings.Contains(out, "agent ready") {
		t.Errorf("logs missing forwarded stdout:\n%s", out)
	}
	if !strings.Contains(out, "took 5.25ms") {
		t.Errorf("logs missing timing event:\n%s", out)
	}

	waitFor(t, 2*time.Second, func() bool {
		return !s.Status().Running
	}, "status to clear after exit")
}

func TestSupervisorSingleFlight(t *testing.T) {
	base := t.TempDir()
	// exec so the script's pid IS the sleeping process and its pipes close
	// when the supervisor kills it.
	installFakeBinary(t, base, "agent", `exec sleep 60`)
	logger, _ := capturedLogger()
	s := NewSupervisor(logger, nil)
	defer s.Terminate()

	s.Start(Request{Cmd: "agent", Dir: base, Args: []string{"first"}, Label: "agent"})
	waitFor(t, 5*time.Second, func() bool { return s.Status().Running }, "first worker to start")
	firstPID := s.Status().PID

	// A second Start supersedes the first: the old child must be gone before
	// the replacement is observed as running.
	s.Start(Request{Cmd: "agent", Dir: base, Args: []string{"second"}, Label: "agent"})
	waitFor(t, 5*time.Second, func() bool { return s.Status().Running }, "second worker to start")

	if s.Status().PID == firstPID {
		t.Fatalf("second generation reports the first child's pid %d", firstPID)
	}
	waitFor(t, 5*time.Second, func() bool { return !processAlive(firstPID) }, "first child to die")
}

func TestSupervisorTerminate(t *testing.T) {
	base := t.TempDir()
	installFakeBinary(t, base, "agent", `exec sleep 60`)
	logger, _ := capturedLogger()
	s := NewSupervisor(logger, nil)

	s.Start(Request{Cmd: "agent", Dir: base, Label: "agent"})
	waitFor(t, 5*time.Second, func() bool { return s.Status().Running }, "worker to start")
	pid := s.Status().PID

	s.Terminate()
	if s.Status().Running {
		t.Error("status still running after Terminate")
	}
	waitFor(t, 5*time.Second, func() bool { return !processAlive(pid) }, "child to die")
}

func TestSupervisorTerminateWithForkedChild(t *testing.T) {
	base := t.TempDir()
	// The backgrounded sleep inherits the script's stdout/stderr, so the
	// pipe write ends stay open after the direct child is killed.
	installFakeBinary(t, base, "agent", `echo "ready"
sleep 30 &
sleep 30
`)
	logger, _ := capturedLogger()
	s := NewSupervisor(logger, nil)

	s.Start(Request{Cmd: "agent", Dir: base, Label: "agent"})
	waitFor(t, 5*time.Second, func() bool { return s.Status().Running }, "worker to start")

	done := make(chan struct{})
	go func() {
		s.Terminate()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Terminate blocked on a grandchild holding the pipes")
	}
	if s.Status().Running {
		t.Error("status still running after Terminate")
	}
}

func TestSupervisorRecordsSupersededStartTime(t *testing.T) {
	base := t.TempDir()
	installFakeBinary(t, base, "agent", `exec sleep 60`)
	st, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	logger, _ := capturedLogger()
	s := NewSupervisor(logger, st)
	defer s.Terminate()

	s.Start(Request{Cmd: "agent", Dir: base, Args: []string{"first"}, Label: "agent"})
	waitFor(t, 5*time.Second, func() bool { return s.Status().Running }, "first worker to start")

	time.Sleep(100 * time.Millisecond)
	cutover := time.Now().UTC()
	s.Start(Request{Cmd: "agent", Dir: base, Args: []string{"second"}, Label: "agent"})

	var first store.RunRecord
	waitFor(t, 5*time.Second, func() bool {
		runs, err := st.RecentRuns(10)
		if err != nil {
			return false
		}
		for _, r := range runs {
			if r.Args == "first" {
				first = r
				return true
			}
		}
		return false
	}, "superseded run to be recorded")

	if first.StartedAt.IsZero() {
		t.Fatal("superseded run recorded without a start time")
	}
	if first.StartedAt.After(cutover) {
		t.Errorf("superseded run stamped with successor's start: started %v, cutover %v", first.StartedAt, cutover)
	}
}

func TestSupervisorMissingBinary(t *testing.T) {
	logger, logs := capturedLogger()
	s := NewSupervisor(logger, nil)

	s.Start(Request{Cmd: "ghost", Dir: t.TempDir(), Label: "ghost"})

	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(logs.String(), "worker failed")
	}, "failure event")
	if s.Status().Running {
		t.Error("status running after spawn failure")
	}
}
