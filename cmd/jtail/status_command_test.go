package main

import (
	"testing"

	"jtail/internal/logging"
	"jtail/internal/position"
	"jtail/internal/testsupport"
)

func TestStatusReportsStateAndChecks(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPartials())
	testsupport.AppendExport(t, env.cfg.Source.Path, `{"MESSAGE":"x"}`)
	if err := position.New(env.cfg.Storage.CursorPath, logging.NewNop()).Update([]byte("offset=16")); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Not running")
	requireContains(t, out, "[OK] offset=16")
	requireContains(t, out, "no pending fragments")
	requireContains(t, out, "State directory:")
	requireContains(t, out, "Sink:")
}
