// Package baseline compares two analysis snapshots and classifies
// stack growth. CI runs it against a committed snapshot to catch
// regressions before they reach hardware.
package baseline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/lgili/stacklens/internal/report"
)

// Delta is one function or path whose stack changed between runs.
type Delta struct {
	Name          string  `json:"name"`
	Baseline      int     `json:"baseline_bytes"`
	Current       int     `json:"current_bytes"`
	PercentChange float64 `json:"percent_change"`
}

// Diff is the outcome of comparing a current snapshot to a baseline.
type Diff struct {
	FrameRegressions  []Delta
	FrameImprovements []Delta
	PathRegressions   []Delta
	PathImprovements  []Delta
	Added             []string
	Removed           []string
	Unchanged         int

	thresholdPct   float64
	improvementPct float64
}

// Compare classifies every function frame and solved path present in
// either snapshot. Growth beyond thresholdPct is a regression,
// shrinkage beyond improvementPct an improvement; anything between
// counts as unchanged. A frame growing from zero bytes is reported as
// a 100% regression: the percentage is undefined there but the growth
// is real.
func Compare(current, base *report.Snapshot, thresholdPct, improvementPct float64) *Diff {
	d := &Diff{thresholdPct: thresholdPct, improvementPct: improvementPct}

	baseFrames := make(map[string]int, len(base.Functions))
	for _, fn := range base.Functions {
		baseFrames[fn.Function] = fn.StackBytes
	}
	curFrames := make(map[string]int, len(current.Functions))

	for _, fn := range current.Functions {
		curFrames[fn.Function] = fn.StackBytes
		baseBytes, ok := baseFrames[fn.Function]
		if !ok {
			d.Added = append(d.Added, fn.Function)
			continue
		}
		d.classify(fn.Function, baseBytes, fn.StackBytes, &d.FrameRegressions, &d.FrameImprovements)
	}
	for name := range baseFrames {
		if _, ok := curFrames[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)

	basePaths := make(map[string]int, len(base.Paths))
	for _, p := range base.Paths {
		basePaths[p.Entry] = p.TotalBytes
	}
	for _, p := range current.Paths {
		baseBytes, ok := basePaths[p.Entry]
		if !ok {
			continue
		}
		d.classify(p.Entry, baseBytes, p.TotalBytes, &d.PathRegressions, &d.PathImprovements)
	}

	return d
}

func (d *Diff) classify(name string, base, cur int, regs, imps *[]Delta) {
	var pct float64
	switch {
	case base == 0 && cur == 0:
		pct = 0
	case base == 0:
		pct = 100
	default:
		pct = 100 * float64(cur-base) / float64(base)
	}

	delta := Delta{Name: name, Baseline: base, Current: cur, PercentChange: pct}
	switch {
	case pct > d.thresholdPct:
		*regs = append(*regs, delta)
	case pct < -d.improvementPct:
		*imps = append(*imps, delta)
	default:
		d.Unchanged++
	}
}

// HasRegressions reports whether any frame or path regressed.
func (d *Diff) HasRegressions() bool {
	return len(d.FrameRegressions) > 0 || len(d.PathRegressions) > 0
}

// Render formats the diff as a plain-text report.
func (d *Diff) Render() string {
	var b strings.Builder
	b.WriteString("Stack Regression Check\n")
	b.WriteString("======================\n\n")

	if len(d.FrameRegressions) > 0 || len(d.PathRegressions) > 0 {
		fmt.Fprintf(&b, "Regressions (threshold %.1f%%)\n", d.thresholdPct)
		b.WriteString("-----------------------------\n")
		writeDeltas(&b, "", d.FrameRegressions)
		writeDeltas(&b, "path ", d.PathRegressions)
		b.WriteString("\n")
	}

	if len(d.FrameImprovements) > 0 || len(d.PathImprovements) > 0 {
		b.WriteString("Improvements\n")
		b.WriteString("------------\n")
		writeDeltas(&b, "", d.FrameImprovements)
		writeDeltas(&b, "path ", d.PathImprovements)
		b.WriteString("\n")
	}

	if len(d.Added) > 0 {
		fmt.Fprintf(&b, "New functions: %s\n", strings.Join(d.Added, ", "))
	}
	if len(d.Removed) > 0 {
		fmt.Fprintf(&b, "Removed functions: %s\n", strings.Join(d.Removed, ", "))
	}
	if len(d.Added) > 0 || len(d.Removed) > 0 {
		b.WriteString("\n")
	}

	regs := len(d.FrameRegressions) + len(d.PathRegressions)
	imps := len(d.FrameImprovements) + len(d.PathImprovements)
	fmt.Fprintf(&b, "Summary: %d regressions, %d improvements, %d unchanged\n", regs, imps, d.Unchanged)
	return b.String()
}

func writeDeltas(b *strings.Builder, prefix string, deltas []Delta) {
	for _, delta := range deltas {
		fmt.Fprintf(b, "  %-32s %8s -> %-8s bytes  (%+.1f%%)\n",
			prefix+delta.Name,
			humanize.Comma(int64(delta.Baseline)),
			humanize.Comma(int64(delta.Current)),
			delta.PercentChange)
	}
}
