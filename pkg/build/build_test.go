package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"

	"github.com/forgeworks-io/crossrun/pkg/platform"
)

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

// fakeCompile records each job and writes a placeholder artifact.
func fakeCompile(jobs *[]Job) CompileFunc {
	return func(ctx context.Context, job Job) error {
		*jobs = append(*jobs, job)
		return os.WriteFile(job.Output, []byte(job.Target.String()), 0755)
	}
}

func TestBuildAllFullMatrix(t *testing.T) {
	dest := t.TempDir()
	var jobs []Job
	b := NewWithCompiler(testLogger(), nil, fakeCompile(&jobs))

	opts := Options{Input: ".", Dest: dest, Name: "agent", HeapMultiplier: 4}
	if err := b.BuildAll(context.Background(), opts); err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}

	var gotTargets []platform.Target
	for _, job := range jobs {
		gotTargets = append(gotTargets, job.Target)
		if job.HeapMB != 4096 {
			t.Errorf("job for %s has HeapMB %d, want 4096", job.Target, job.HeapMB)
		}
	}
	if diff := cmp.Diff(platform.Targets(), gotTargets); diff != "" {
		t.Errorf("built targets mismatch (-want +got):\n%s", diff)
	}

	// Artifact layout: dest/os-arch/name, .exe only on windows.
	mustExist(t, filepath.Join(dest, "linux-amd64", "agent"))
	mustExist(t, filepath.Join(dest, "windows-amd64", "agent.exe"))
	mustNotExist(t, filepath.Join(dest, "windows-arm", "agent.exe"))
	mustNotExist(t, filepath.Join(dest, "darwin-386", "agent"))
}

func TestBuildAllDevMode(t *testing.T) {
	dest := t.TempDir()
	var jobs []Job
	b := NewWithCompiler(testLogger(), nil, fakeCompile(&jobs))

	host, err := platform.Host()
	if err != nil {
		t.Skipf("host platform not in matrix: %v", err)
	}

	opts := Options{Input: ".", Dest: dest, Name: "agent", Dev: true, HeapMultiplier: 1}
	if err := b.BuildAll(context.Background(), opts); err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}

	if len(jobs) != 1 {
		t.Fatalf("dev mode built %d targets, want 1", len(jobs))
	}
	if jobs[0].Target != host {
		t.Errorf("dev mode built %s, want host target %s", jobs[0].Target, host)
	}
	mustExist(t, filepath.Join(dest, host.String(), host.BinaryName("agent")))
}

func TestBuildAllClearsStaleArtifacts(t *testing.T) {
	dest := t.TempDir()
	var jobs []Job
	b := NewWithCompiler(testLogger(), nil, fakeCompile(&jobs))

	// Leave a stale artifact from a previous binary name in one target dir.
	staleDir := filepath.Join(dest, "linux-amd64")
	if err := os.MkdirAll(staleDir, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(staleDir, "old-agent")
	if err := os.WriteFile(stale, []byte("stale"), 0755); err != nil {
		t.Fatal(err)
	}

	opts := Options{Input: ".", Dest: dest, Name: "agent"}
	if err := b.BuildAll(context.Background(), opts); err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if err := b.BuildAll(context.Background(), opts); err != nil {
		t.Fatalf("second BuildAll failed: %v", err)
	}

	mustNotExist(t, stale)
	entries, err := os.ReadDir(staleDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "agent" {
		t.Errorf("expected exactly one artifact 'agent' in %s, got %v", staleDir, entries)
	}
}

func TestBuildAllCompilerFailureIsFatal(t *testing.T) {
	dest := t.TempDir()
	failure := errors.New("compiler exploded")
	var count int
	compile := func(ctx context.Context, job Job) error {
		count++
		if count == 2 {
			return failure
		}
		return os.WriteFile(job.Output, nil, 0755)
	}
	b := NewWithCompiler(testLogger(), nil, compile)

	err := b.BuildAll(context.Background(), Options{Input: ".", Dest: dest, Name: "agent"})
	if !errors.Is(err, failure) {
		t.Fatalf("BuildAll error = %v, want wrapped %v", err, failure)
	}
	if count != 2 {
		t.Errorf("compiler invoked %d times after failure, want 2 (remaining targets aborted)", count)
	}
	// Earlier artifacts stay on disk; there is no rollback.
	first := platform.Targets()[0]
	mustExist(t, filepath.Join(dest, first.String(), first.BinaryName("agent")))
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected %s to be absent", path)
	} else if !os.IsNotExist(err) {
		t.Errorf("stat %s: %v", path, err)
	}
}
