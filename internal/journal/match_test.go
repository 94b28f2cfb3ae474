package journal

import "testing"

func TestMatchesFromTables(t *testing.T) {
	matches, err := MatchesFromTables([]map[string]string{
		{"_SYSTEMD_UNIT": "docker.service", "PRIORITY": "3"},
		{},
		{"_TRANSPORT": "kernel"},
	})
	if err != nil {
		t.Fatalf("MatchesFromTables: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected empty table to be skipped, got %d groups", len(matches))
	}
	if got := matches.String(); got != "PRIORITY=3 _SYSTEMD_UNIT=docker.service + _TRANSPORT=kernel" {
		t.Fatalf("String = %q", got)
	}

	docker := NewEntry(0, StringField("_SYSTEMD_UNIT", "docker.service"), StringField("PRIORITY", "3"))
	dockerInfo := NewEntry(0, StringField("_SYSTEMD_UNIT", "docker.service"), StringField("PRIORITY", "6"))
	kernel := NewEntry(0, StringField("_TRANSPORT", "kernel"))

	if !matches.Matches(docker) {
		t.Fatal("expected conjunction to match")
	}
	if matches.Matches(dockerInfo) {
		t.Fatal("conjunction should require every field")
	}
	if !matches.Matches(kernel) {
		t.Fatal("expected disjunction to match second group")
	}
}

func TestMatchesFromTablesRejectsBadField(t *testing.T) {
	if _, err := MatchesFromTables([]map[string]string{{"A=B": "c"}}); err == nil {
		t.Fatal("expected error for field containing '='")
	}
}

func TestEmptyMatchesMatchEverything(t *testing.T) {
	var matches Matches
	if !matches.Matches(NewEntry(0)) {
		t.Fatal("empty matches should match")
	}
}

func TestParseMatch(t *testing.T) {
	m, err := ParseMatch("_PID=42")
	if err != nil || m.Field != "_PID" || m.Value != "42" {
		t.Fatalf("ParseMatch = %+v, %v", m, err)
	}
	if _, err := ParseMatch("novalue"); err == nil {
		t.Fatal("expected error")
	}
}
