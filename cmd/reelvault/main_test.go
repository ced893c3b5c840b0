package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandShowsHelp(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, sub := range []string{"import", "resume", "jobs", "camera", "serve"} {
		if !strings.Contains(out.String(), sub) {
			t.Fatalf("help output missing %q", sub)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B"},
		[][]string{{"only-a"}},
		1,
	)
	if !strings.Contains(out, "only-a") {
		t.Fatalf("row content missing from table:\n%s", out)
	}
}

func TestRenderTableIgnoresOutOfRangeAlignments(t *testing.T) {
	out := renderTable(
		[]string{"A"},
		[][]string{{"x"}},
		-1, 5,
	)
	if !strings.Contains(out, "x") {
		t.Fatalf("row content missing from table:\n%s", out)
	}
}
