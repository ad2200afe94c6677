// Package analyze runs the stack analysis pipeline: collect .su
// files, parse records, reconstruct the call graph and solve
// worst-case paths for the requested entry points.
package analyze

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lgili/stacklens/internal/callgraph"
	"github.com/lgili/stacklens/internal/config"
	"github.com/lgili/stacklens/internal/su"
)

// MissingInputError reports that a requested .su file or directory
// does not exist. It is fatal for the request that named it; batch
// callers can report it and move on to the next target.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("stack-usage input not found: %s", e.Path)
}

// EmptyResultError reports that the selected inputs produced no
// usable records: no .su files at all, or every line was skipped.
// Distinct from MissingInputError, the inputs existed.
type EmptyResultError struct {
	Root string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no usable stack-usage records under %s", e.Root)
}

// Options selects what one analysis run reads. Exactly one of SuFile,
// Target or All must be set.
type Options struct {
	SuFile    string   // analyze a single .su file
	Target    string   // analyze <su_root>/<target>
	All       bool     // analyze everything under su_root
	SourceDir string   // overrides the configured source root
	Entries   []string // overrides the configured critical paths
}

// Critical pairs an entry point with its solved worst-case path.
type Critical struct {
	Entry string
	Path  callgraph.Path
}

// FailedFile records a .su file that could not be read. The rest of
// the batch still counts.
type FailedFile struct {
	Path string
	Err  error
}

// Result holds the results of one analysis run.
type Result struct {
	SuFiles     []string
	Records     []su.Record
	Skipped     int
	Failed      []FailedFile
	Graph       *callgraph.Graph
	Build       *callgraph.BuildStats
	Critical    []Critical
	EntryPoints []string
	Duration    time.Duration
}

// Analyzer coordinates the analysis pipeline.
type Analyzer struct {
	cfg      *config.Config
	opts     Options
	progress io.Writer
}

// New creates an analyzer for the given configuration and options.
func New(cfg *config.Config, opts Options) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		opts:     opts,
		progress: io.Discard,
	}
}

// SetProgress directs per-file progress output to w. By default
// progress is discarded, which keeps piped report output clean.
func (a *Analyzer) SetProgress(w io.Writer) {
	if w != nil {
		a.progress = w
	}
}

// Run executes the analysis pipeline.
func (a *Analyzer) Run() (*Result, error) {
	start := time.Now()

	files, root, err := a.collectSuFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &EmptyResultError{Root: root}
	}

	res := &Result{SuFiles: files}
	for _, path := range files {
		records, skipped, err := su.ParseFile(path)
		if err != nil {
			fmt.Fprintf(a.progress, "skipping %s: %v\n", path, err)
			res.Failed = append(res.Failed, FailedFile{Path: path, Err: err})
			continue
		}
		res.Records = append(res.Records, records...)
		res.Skipped += skipped
		fmt.Fprintf(a.progress, "Parsed %s: %d records\n", filepath.Base(path), len(records))
	}
	if len(res.Records) == 0 {
		return nil, &EmptyResultError{Root: root}
	}

	entries := a.opts.Entries
	if len(entries) == 0 {
		entries = a.cfg.CriticalPaths
	}
	sourceRoot := a.opts.SourceDir
	if sourceRoot == "" {
		sourceRoot = a.cfg.SourceRoot
	}
	_, sourceErr := os.Stat(sourceRoot)
	haveSource := sourceErr == nil

	// The graph is only worth building when there is something to
	// solve or a source tree to recover edges from.
	if len(entries) > 0 || haveSource {
		g := callgraph.New()
		for _, rec := range res.Records {
			g.AddFunction(rec)
		}

		if haveSource {
			b := callgraph.NewBuilder(sourceRoot)
			if len(a.cfg.SourceExts) > 0 {
				b.Extensions(a.cfg.SourceExts...)
			}
			b.ExcludeDirs(a.cfg.Exclude.Dirs...)
			b.ExcludeIdents(a.cfg.NonCallIdents...)

			stats, err := b.Build(g)
			if err != nil {
				return nil, fmt.Errorf("scanning sources: %w", err)
			}
			res.Build = stats
			fmt.Fprintf(a.progress, "Scanned %d source files: %d definitions, %d edges\n",
				stats.Files, stats.Definitions, stats.Edges)
		}

		for _, entry := range entries {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			res.Critical = append(res.Critical, Critical{Entry: entry, Path: g.WorstCase(entry)})
		}
		res.EntryPoints = g.EntryPoints()
		res.Graph = g
	}

	res.Duration = time.Since(start)
	return res, nil
}

// collectSuFiles resolves the input selection to a sorted file list
// and the root it was searched under.
func (a *Analyzer) collectSuFiles() ([]string, string, error) {
	selected := 0
	if a.opts.SuFile != "" {
		selected++
	}
	if a.opts.Target != "" {
		selected++
	}
	if a.opts.All {
		selected++
	}
	if selected != 1 {
		return nil, "", fmt.Errorf("select exactly one input: a .su file, a build target, or all targets")
	}

	switch {
	case a.opts.SuFile != "":
		if _, err := os.Stat(a.opts.SuFile); err != nil {
			return nil, "", &MissingInputError{Path: a.opts.SuFile}
		}
		return []string{a.opts.SuFile}, a.opts.SuFile, nil

	case a.opts.Target != "":
		dir := filepath.Join(a.cfg.SuRoot, a.opts.Target)
		files, err := globSuFiles(dir)
		if err != nil {
			return nil, "", err
		}
		return files, dir, nil

	default:
		files, err := globSuFiles(a.cfg.SuRoot)
		if err != nil {
			return nil, "", err
		}
		return files, a.cfg.SuRoot, nil
	}
}

// globSuFiles walks root collecting every .su file, sorted so later
// stages see a deterministic order.
func globSuFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, &MissingInputError{Path: root}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".su") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
