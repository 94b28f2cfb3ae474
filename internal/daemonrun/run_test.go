package daemonrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"jtail/internal/journal"
	"jtail/internal/testsupport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunTailsExportFileUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithExportSource(),
		testsupport.WithReadFromHead(),
		testsupport.WithPartials(),
	)
	testsupport.AppendExport(t, cfg.Source.Path,
		`{"__REALTIME_TIMESTAMP":"1700000000000000","MESSAGE":"hello","_PID":"1"}`,
		`{"__REALTIME_TIMESTAMP":"1700000001000000","MESSAGE":"par","CONTAINER_ID":"c1","CONTAINER_PARTIAL_MESSAGE":"true"}`,
		`{"__REALTIME_TIMESTAMP":"1700000002000000","MESSAGE":"tial","CONTAINER_ID":"c1"}`,
	)

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{Stdout: &out})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), `"partial"`) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("records not emitted; got %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(out.String(), `"hello"`) {
		t.Fatalf("first record missing: %q", out.String())
	}
	for {
		if _, err := os.Stat(cfg.PIDPath()); err == nil {
			break
		} else if time.Now().After(deadline) {
			cancel()
			t.Fatalf("pid file missing while running: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "jtail.log")); err != nil {
		t.Fatalf("log pointer missing: %v", err)
	}
	cursor, err := os.ReadFile(cfg.Storage.CursorPath)
	if err != nil || !strings.HasPrefix(string(cursor), "offset=") {
		t.Fatalf("cursor = %q, %v", cursor, err)
	}
}

func TestRunFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExportSource())
	err := Run(context.Background(), cfg, Options{Stdout: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "preflight") {
		t.Fatalf("Run = %v, want preflight error", err)
	}
}

func TestRunLeavesLiveInstancePIDFileAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExportSource())
	testsupport.AppendExport(t, cfg.Source.Path, `{"MESSAGE":"x"}`)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()
	if err := os.WriteFile(cfg.PIDPath(), []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = Run(context.Background(), cfg, Options{Stdout: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("Run = %v, want already running", err)
	}
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil || string(data) != "4242\n" {
		t.Fatalf("pid file = %q, %v; want the running instance's pid kept", data, err)
	}
}

func TestRunReturnsWatcherFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExportSource())
	testsupport.AppendExport(t, cfg.Source.Path, `{"MESSAGE":"x"}`)
	failing := journal.OpenerFunc(func(string) (journal.Source, error) {
		return nil, errors.New("journal unreadable")
	})
	err := Run(context.Background(), cfg, Options{Stdout: &bytes.Buffer{}, Opener: failing})
	if err == nil || !strings.Contains(err.Error(), "journal unreadable") {
		t.Fatalf("Run = %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "jtail-a.log")
	second := filepath.Join(dir, "jtail-b.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatal(err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "jtail.log"))
	if err != nil || string(data) != "jtail-b.log" {
		t.Fatalf("pointer content = %q, %v", data, err)
	}
}
