package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"jtail/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckParentWritable_MissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "records.db")
	if result := CheckParentWritable("db", path); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckJournalSource_Export(t *testing.T) {
	if result := CheckJournalSource(config.BackendExport, ""); result.Passed {
		t.Fatal("expected failure without a path")
	}
	missing := filepath.Join(t.TempDir(), "journal.json")
	if result := CheckJournalSource(config.BackendExport, missing); result.Passed {
		t.Fatal("expected failure for missing export file")
	}
	if err := os.WriteFile(missing, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckJournalSource(config.BackendExport, missing); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckJournalSource_SystemdDirectory(t *testing.T) {
	dir := t.TempDir()
	if result := CheckJournalSource(config.BackendSystemd, dir); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckFilter(t *testing.T) {
	if result := CheckFilter(""); !result.Passed || !result.Optional {
		t.Fatalf("empty filter = %+v", result)
	}
	if result := CheckFilter(`message.contains("x")`); !result.Passed {
		t.Fatalf("valid filter failed: %s", result.Detail)
	}
	if result := CheckFilter(`message +`); result.Passed {
		t.Fatal("expected failure for invalid filter")
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")
	cfg.Source.Backend = config.BackendExport
	cfg.Source.Path = filepath.Join(cfg.Paths.StateDir, "journal.json")
	if err := os.WriteFile(cfg.Source.Path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	failed := Failed(RunAll(&cfg))
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("failed = %+v", failed)
	}
}

func TestProbeDaemon(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	if probe := ProbeDaemon(&cfg); probe.Running {
		t.Fatal("expected not running")
	}

	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(cfg.PIDPath(), []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	probe := ProbeDaemon(&cfg)
	if !probe.Running || probe.PID != 4242 {
		t.Fatalf("probe = %+v", probe)
	}
	if probe.Detail() != "Running (pid 4242)" {
		t.Fatalf("Detail = %q", probe.Detail())
	}
}
