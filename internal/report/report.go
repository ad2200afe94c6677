// Package report renders analysis results as Markdown for humans and
// as JSON snapshots for machines. The JSON form is what baseline
// comparison consumes, so its field set stays stable.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lgili/stacklens/internal/analyze"
	"github.com/lgili/stacklens/internal/callgraph"
	"github.com/lgili/stacklens/internal/su"
)

// PathResult is one solved worst-case path in a snapshot.
type PathResult struct {
	Entry string `json:"entry"`
	callgraph.Path
}

// Snapshot is the machine-readable form of one analysis run.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	SuFiles     int          `json:"su_files"`
	Skipped     int          `json:"skipped_lines"`
	Functions   []su.Record  `json:"functions"`
	Paths       []PathResult `json:"paths,omitempty"`
	EntryPoints []string     `json:"entry_points,omitempty"`
	Duplicates  []string     `json:"duplicate_functions,omitempty"`
}

// NewSnapshot converts an analysis result into a snapshot. Functions
// are ordered by frame size descending, name ascending, so snapshots
// of the same build compare byte for byte.
func NewSnapshot(res *analyze.Result) *Snapshot {
	s := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		SuFiles:     len(res.SuFiles),
		Skipped:     res.Skipped,
		Functions:   sortedRecords(res.Records),
	}
	for _, c := range res.Critical {
		s.Paths = append(s.Paths, PathResult{Entry: c.Entry, Path: c.Path})
	}
	if res.Build != nil {
		s.EntryPoints = res.EntryPoints
	}
	if res.Graph != nil {
		s.Duplicates = res.Graph.Duplicates()
	}
	return s
}

// WriteJSON writes the snapshot, indented for diff-friendliness.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSnapshot loads a snapshot written by WriteJSON.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &s, nil
}

// Markdown renders the analysis as a Markdown report. top bounds the
// consumer table; values below one fall back to 10.
func Markdown(res *analyze.Result, top int) string {
	if top < 1 {
		top = 10
	}

	var b strings.Builder
	b.WriteString("## Stack Usage Analysis\n\n")
	writeTopConsumers(&b, res, top)
	writeCriticalPaths(&b, res)
	writeEntryPoints(&b, res)
	writeSummary(&b, res)
	return b.String()
}

func writeTopConsumers(b *strings.Builder, res *analyze.Result, top int) {
	fmt.Fprintf(b, "### Top %d Stack Consumers\n\n", top)
	if len(res.Records) == 0 {
		b.WriteString("No stack usage records found.\n\n")
		return
	}

	b.WriteString("| Function | Stack (bytes) | Qualifier | File:Line |\n")
	b.WriteString("|----------|---------------|-----------|-----------|\n")
	for i, rec := range sortedRecords(res.Records) {
		if i >= top {
			break
		}
		fmt.Fprintf(b, "| `%s` | %s | %s | %s:%d |\n",
			rec.Function, humanize.Comma(int64(rec.StackBytes)), rec.Qualifier, rec.File, rec.Line)
	}
	b.WriteString("\n")
}

func writeCriticalPaths(b *strings.Builder, res *analyze.Result) {
	if len(res.Critical) == 0 {
		return
	}

	b.WriteString("### Critical Path Analysis\n\n")
	for _, c := range res.Critical {
		fmt.Fprintf(b, "#### Path: `%s()`\n\n", c.Entry)
		fmt.Fprintf(b, "**Worst-case stack**: %s bytes\n\n", humanize.Comma(int64(c.Path.TotalBytes)))
		b.WriteString("**Call chain**:\n```\n")
		for depth, fn := range c.Path.Chain {
			indent := strings.Repeat("  ", depth)
			if rec, ok := lookup(res.Graph, fn); ok {
				fmt.Fprintf(b, "%s└─ %s: %d bytes\n", indent, fn, rec.StackBytes)
			} else {
				fmt.Fprintf(b, "%s└─ %s\n", indent, fn)
			}
		}
		b.WriteString("```\n\n")
	}
}

func writeEntryPoints(b *strings.Builder, res *analyze.Result) {
	// Without recovered edges every function looks uncalled, so the
	// candidate list is only meaningful after a source scan.
	if res.Build == nil {
		return
	}

	b.WriteString("### Entry Point Candidates\n\n")
	if len(res.EntryPoints) == 0 {
		b.WriteString("No entry points found; every function is called by something.\n\n")
		return
	}
	b.WriteString("Functions with stack records that no scanned source calls:\n\n")
	for _, name := range res.EntryPoints {
		fmt.Fprintf(b, "- `%s`\n", name)
	}
	b.WriteString("\n")
}

func writeSummary(b *strings.Builder, res *analyze.Result) {
	b.WriteString("### Summary\n\n")
	if len(res.Records) == 0 {
		b.WriteString("- **Total functions analyzed**: 0\n")
		return
	}

	sorted := sortedRecords(res.Records)
	total := 0
	static, dynamic := 0, 0
	for _, rec := range sorted {
		total += rec.StackBytes
		if rec.IsStatic() {
			static++
		}
		if rec.IsDynamic() {
			dynamic++
		}
	}

	fmt.Fprintf(b, "- **Total functions analyzed**: %d\n", len(sorted))
	fmt.Fprintf(b, "- **Max single function stack**: %s bytes (`%s`)\n",
		humanize.Comma(int64(sorted[0].StackBytes)), sorted[0].Function)
	fmt.Fprintf(b, "- **Average stack per function**: %d bytes\n", total/len(sorted))
	fmt.Fprintf(b, "- **Static stack usage**: %d functions\n", static)
	fmt.Fprintf(b, "- **Dynamic stack usage**: %d functions\n", dynamic)
	if dynamic > 0 {
		b.WriteString("- Dynamic frames report lower bounds; true worst-case totals may be higher.\n")
	}
	if res.Skipped > 0 {
		fmt.Fprintf(b, "- **Skipped malformed lines**: %d\n", res.Skipped)
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(b, "- **Unreadable files**: %d\n", len(res.Failed))
	}
	if res.Graph != nil {
		if dups := res.Graph.Duplicates(); len(dups) > 0 {
			fmt.Fprintf(b, "- **Duplicate function names**: %s\n", strings.Join(dups, ", "))
		}
	}
	if res.Build != nil {
		fmt.Fprintf(b, "- **Source scan**: %d files, %d call edges\n", res.Build.Files, res.Build.Edges)
	}
}

func lookup(g *callgraph.Graph, fn string) (su.Record, bool) {
	if g == nil {
		return su.Record{}, false
	}
	return g.Function(fn)
}

// sortedRecords orders by frame size descending, then name, which
// keeps tables and snapshots deterministic.
func sortedRecords(records []su.Record) []su.Record {
	out := make([]su.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StackBytes != out[j].StackBytes {
			return out[i].StackBytes > out[j].StackBytes
		}
		return out[i].Function < out[j].Function
	})
	return out
}
