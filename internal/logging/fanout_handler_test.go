package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIfAnyHandlerIs(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled through second handler")
	}
}

func TestTeeLoggerRoutesDebugOnlyToVerboseHandler(t *testing.T) {
	var consoleBuf, debugBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := TeeLogger(base, slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Debug("cursor persisted")
	if consoleBuf.Len() != 0 {
		t.Fatalf("info handler should not receive debug records: %s", consoleBuf.String())
	}
	if debugBuf.Len() == 0 {
		t.Fatal("debug handler should receive debug records")
	}

	logger.With("component", "watcher").Info("streaming", slog.String("state", "STREAMING"))
	for name, buf := range map[string]*bytes.Buffer{"console": &consoleBuf, "debug": &debugBuf} {
		if !bytes.Contains(buf.Bytes(), []byte(`"component":"watcher"`)) {
			t.Fatalf("%s output missing component: %s", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"state":"STREAMING"`)) {
			t.Fatalf("%s output missing record attr: %s", name, buf.String())
		}
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("no base")
	if teeBuf.Len() == 0 {
		t.Fatal("expected output in tee buffer")
	}
}
