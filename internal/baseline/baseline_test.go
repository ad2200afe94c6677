package baseline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/lgili/stacklens/internal/callgraph"
	"github.com/lgili/stacklens/internal/report"
	"github.com/lgili/stacklens/internal/su"
)

func snapshot(frames map[string]int, paths map[string]int) *report.Snapshot {
	s := &report.Snapshot{}
	for name, bytes := range frames {
		s.Functions = append(s.Functions, su.Record{Function: name, StackBytes: bytes, Qualifier: "static"})
	}
	for entry, total := range paths {
		s.Paths = append(s.Paths, report.PathResult{Entry: entry, Path: callgraph.Path{TotalBytes: total}})
	}
	return s
}

func TestCompareClassifies(t *testing.T) {
	base := snapshot(map[string]int{
		"stable": 100, "grown": 100, "shrunk": 100, "gone": 40,
	}, map[string]int{"entry": 1000})
	cur := snapshot(map[string]int{
		"stable": 104, "grown": 140, "shrunk": 50, "fresh": 8,
	}, map[string]int{"entry": 1250})

	d := Compare(cur, base, 10.0, 5.0)

	wantRegs := []Delta{{Name: "grown", Baseline: 100, Current: 140, PercentChange: 40}}
	if diff := cmp.Diff(wantRegs, d.FrameRegressions, cmpopts.EquateApprox(0, 0.01)); diff != "" {
		t.Errorf("frame regressions mismatch (-want +got):\n%s", diff)
	}
	wantImps := []Delta{{Name: "shrunk", Baseline: 100, Current: 50, PercentChange: -50}}
	if diff := cmp.Diff(wantImps, d.FrameImprovements, cmpopts.EquateApprox(0, 0.01)); diff != "" {
		t.Errorf("frame improvements mismatch (-want +got):\n%s", diff)
	}
	wantPathRegs := []Delta{{Name: "entry", Baseline: 1000, Current: 1250, PercentChange: 25}}
	if diff := cmp.Diff(wantPathRegs, d.PathRegressions, cmpopts.EquateApprox(0, 0.01)); diff != "" {
		t.Errorf("path regressions mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"fresh"}, d.Added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"gone"}, d.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
	if !d.HasRegressions() {
		t.Error("HasRegressions() = false with regressions present")
	}
}

func TestCompareZeroBaseline(t *testing.T) {
	base := snapshot(map[string]int{"was_zero": 0, "still_zero": 0}, nil)
	cur := snapshot(map[string]int{"was_zero": 64, "still_zero": 0}, nil)

	d := Compare(cur, base, 10.0, 5.0)
	if len(d.FrameRegressions) != 1 || d.FrameRegressions[0].Name != "was_zero" {
		t.Fatalf("FrameRegressions = %+v, want was_zero only", d.FrameRegressions)
	}
	if d.FrameRegressions[0].PercentChange != 100 {
		t.Errorf("PercentChange = %v, want 100", d.FrameRegressions[0].PercentChange)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
}

func TestCompareCleanRun(t *testing.T) {
	base := snapshot(map[string]int{"a": 100, "b": 50}, map[string]int{"entry": 150})
	cur := snapshot(map[string]int{"a": 102, "b": 50}, map[string]int{"entry": 152})

	d := Compare(cur, base, 10.0, 5.0)
	if d.HasRegressions() {
		t.Error("HasRegressions() = true for changes inside the threshold")
	}
	if d.Unchanged != 3 {
		t.Errorf("Unchanged = %d, want 3", d.Unchanged)
	}
}

func TestRender(t *testing.T) {
	base := snapshot(map[string]int{"grown": 100, "shrunk": 200}, map[string]int{"entry": 1000})
	cur := snapshot(map[string]int{"grown": 1300, "shrunk": 100}, map[string]int{"entry": 1250})

	out := Compare(cur, base, 10.0, 5.0).Render()
	for _, want := range []string{
		"Stack Regression Check",
		"Regressions (threshold 10.0%)",
		"grown",
		"100 -> 1,300",
		"(+1200.0%)",
		"path entry",
		"Improvements",
		"(-50.0%)",
		"Summary: 2 regressions, 1 improvements, 0 unchanged",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q\n---\n%s", want, out)
		}
	}
}

func TestRenderCleanSummaryOnly(t *testing.T) {
	base := snapshot(map[string]int{"a": 100}, nil)
	cur := snapshot(map[string]int{"a": 100}, nil)

	out := Compare(cur, base, 10.0, 5.0).Render()
	if strings.Contains(out, "Regressions") {
		t.Error("clean diff should not render a regressions section")
	}
	if !strings.Contains(out, "Summary: 0 regressions, 0 improvements, 1 unchanged") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}
