package daemon_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"jtail/internal/daemon"
	"jtail/internal/journal"
	"jtail/internal/journal/journaltest"
	"jtail/internal/logging"
	"jtail/internal/sink"
	"jtail/internal/testsupport"
	"jtail/internal/watcher"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReadFromHead(), testsupport.WithPartials())
	j := journaltest.New()
	j.AppendMessages("hello")
	var out syncBuffer
	d, err := daemon.New(cfg, logging.NewNop(), j.Opener(), sink.NewJSONLines(&out), "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.SnapshotPath == "" {
		t.Fatal("expected snapshot path with partials enabled")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "hello") {
		if time.Now().After(deadline) {
			t.Fatal("record not emitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.Stop()
	status = d.Status()
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if status.State != watcher.StateStopped {
		t.Fatalf("State = %s", status.State)
	}
	if status.Stats.Emitted != 1 {
		t.Fatalf("Emitted = %d", status.Stats.Emitted)
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := journaltest.New()
	first, err := daemon.New(cfg, logging.NewNop(), j.Opener(), sink.NewJSONLines(&bytes.Buffer{}), "")
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	second, err := daemon.New(cfg, logging.NewNop(), j.Opener(), sink.NewJSONLines(&bytes.Buffer{}), "")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second Start = %v", err)
	}
}

func TestDaemonSurfacesWatcherFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failing := journal.OpenerFunc(func(string) (journal.Source, error) {
		return nil, context.DeadlineExceeded
	})
	d, err := daemon.New(cfg, logging.NewNop(), failing, sink.NewJSONLines(&bytes.Buffer{}), "")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	if d.Err() == nil {
		t.Fatal("expected watcher error")
	}
}

func TestNewRejectsBadMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.Matches = []map[string]string{{"BAD=FIELD": "x"}}
	if _, err := daemon.New(cfg, logging.NewNop(), journaltest.New().Opener(), sink.NewJSONLines(&bytes.Buffer{}), ""); err == nil {
		t.Fatal("expected error")
	}
}
