package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLintAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "jobs.go", "package q\n\nconst QOne = `--sql 11111111-2222-4333-8444-555555555555\nselect 1`\n\nconst Label = \"not a query\"\n")

	l := &linter{seen: map[string]marker{}}
	if err := l.lintPath(dir); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 0 {
		t.Fatalf("unexpected violations: %v", l.violations)
	}
}

func TestLintReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", "package q\n\nconst QA = `--sql 11111111-2222-4333-8444-555555555555\nselect 1`\n")
	writeSource(t, dir, "b.go", "package q\n\nconst (\n\tQB = `--sql 11111111-2222-4333-8444-555555555555\nupdate jobs set x = 1`\n\tQC = \"delete from jobs\"\n)\n")

	l := &linter{seen: map[string]marker{}}
	if err := l.lintPath(dir); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 2 {
		t.Fatalf("violations = %v, want 2", l.violations)
	}
	var dup, missing bool
	for _, v := range l.violations {
		switch {
		case v.name == "QB" && strings.Contains(v.message, "already used by QA"):
			dup = true
		case v.name == "QC" && strings.Contains(v.message, "missing"):
			missing = true
		}
	}
	if !dup || !missing {
		t.Fatalf("unexpected violations: %v", l.violations)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n  --sql abc\nselect 1"); got != "--sql abc" {
		t.Fatalf("firstLine = %q", got)
	}
}
