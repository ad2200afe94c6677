package callgraph

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// defRe matches a C function definition: one or more return-type-ish
// words, the function name, an argument list and an opening brace. It
// is a textual heuristic, not a C parser; it tolerates pointers and
// storage-class prefixes and accepts occasional false positives.
var defRe = regexp.MustCompile(`(?m)^\s*(?:\w+[\s*]+)+(\w+)\s*\([^)]*\)\s*\{`)

// callRe matches anything shaped like a call site inside a function
// body. Control keywords and known non-call macros are filtered out
// afterwards.
var callRe = regexp.MustCompile(`\b(\w+)\s*\(`)

// nonCallDefaults are identifiers that look like calls in source text
// but never are: control keywords plus a few ubiquitous macros.
var nonCallDefaults = []string{
	"if", "while", "for", "switch", "return", "sizeof", "printf", "assert",
}

// Builder recovers caller→callee edges from C source text. The scan
// is approximate in both directions: references through function
// pointers are missed, and identifiers inside strings or comments can
// produce edges that do not exist. Worst-case totals stay conservative
// because every recovered edge can only lengthen a path.
type Builder struct {
	root        string
	exts        map[string]bool
	excludeDirs map[string]bool
	nonCall     map[string]bool
}

// BuildStats summarizes one source scan.
type BuildStats struct {
	Files       int
	Skipped     int
	Definitions int
	Edges       int
}

// NewBuilder returns a builder scanning .c files under root.
func NewBuilder(root string) *Builder {
	b := &Builder{
		root:        root,
		exts:        map[string]bool{".c": true},
		excludeDirs: make(map[string]bool),
		nonCall:     make(map[string]bool),
	}
	b.ExcludeIdents(nonCallDefaults...)
	return b
}

// Extensions replaces the set of file extensions scanned.
func (b *Builder) Extensions(exts ...string) {
	b.exts = make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		b.exts[strings.ToLower(ext)] = true
	}
}

// ExcludeDirs adds directory names skipped during the walk.
func (b *Builder) ExcludeDirs(names ...string) {
	for _, name := range names {
		b.excludeDirs[name] = true
	}
}

// ExcludeIdents adds identifiers never treated as callees.
func (b *Builder) ExcludeIdents(names ...string) {
	for _, name := range names {
		b.nonCall[name] = true
	}
}

// Build scans the source tree and adds recovered edges to g.
// Unreadable files are skipped and counted, not fatal.
func (b *Builder) Build(g *Graph) (*BuildStats, error) {
	if _, err := os.Stat(b.root); err != nil {
		return nil, fmt.Errorf("source root %s: %w", b.root, err)
	}

	stats := &BuildStats{}
	edgesBefore := g.EdgeCount()

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			stats.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if b.excludeDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !b.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		// Invalid byte sequences are harmless here: the scan regexes
		// only ever match ASCII word characters, so undecodable bytes
		// act as separators instead of errors.
		content, err := os.ReadFile(path)
		if err != nil {
			stats.Skipped++
			return nil
		}
		stats.Files++
		stats.Definitions += b.scanSource(string(content), g)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.root, err)
	}

	stats.Edges = g.EdgeCount() - edgesBefore
	return stats, nil
}

// scanSource finds function definitions in one file and records call
// edges from each definition's brace-matched body. Bounding the scan
// to the body prevents a caller from absorbing calls made by functions
// defined later in the same file.
func (b *Builder) scanSource(content string, g *Graph) int {
	defs := 0
	for _, m := range defRe.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		if b.nonCall[name] {
			// "else if (...) {" and friends match the definition
			// shape; the captured name gives them away.
			continue
		}
		defs++

		bodyEnd := matchBrace(content, m[1])
		body := content[m[1]:bodyEnd]
		for _, cm := range callRe.FindAllStringSubmatch(body, -1) {
			callee := cm[1]
			if b.nonCall[callee] {
				continue
			}
			g.AddCall(name, callee)
		}
	}
	return defs
}

// matchBrace returns the index of the brace closing the block opened
// just before start, or len(s) if the file ends unbalanced. Braces
// inside strings or comments are not understood and can skew the
// window; it is still far tighter than scanning to end of file.
func matchBrace(s string, start int) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}
