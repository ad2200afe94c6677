// Package su parses GCC -fstack-usage report files.
//
// Each .su line describes one function's own stack frame:
//
//	path/to/file.c:LINE:COL:function<TAB>BYTES<TAB>QUALIFIER
//
// The qualifier is "static", "dynamic", "bounded", or a comma-separated
// combination. A "dynamic" frame means the compiler could only prove a
// lower bound, so totals derived from it are lower bounds too.
package su

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Record is one function's stack frame as reported by the compiler.
type Record struct {
	Function   string `json:"function"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	StackBytes int    `json:"stack_bytes"`
	Qualifier  string `json:"qualifier"`
}

// IsStatic reports whether the frame size is a compile-time constant.
func (r Record) IsStatic() bool { return strings.Contains(r.Qualifier, "static") }

// IsDynamic reports whether the frame grows at runtime (alloca, VLAs).
// The recorded byte count is then only a lower bound.
func (r Record) IsDynamic() bool { return strings.Contains(r.Qualifier, "dynamic") }

// IsBounded reports whether a dynamic frame has a known upper bound.
func (r Record) IsBounded() bool { return strings.Contains(r.Qualifier, "bounded") }

func (r Record) String() string {
	return fmt.Sprintf("%s:%d:%s %d bytes (%s)", r.File, r.Line, r.Function, r.StackBytes, r.Qualifier)
}

// ErrSkipLine marks a line that is not a usable stack-usage record.
// Callers are expected to count it and continue; one bad line must not
// discard the rest of the file.
var ErrSkipLine = errors.New("skip malformed stack-usage line")

// locationRe splits the first tab field into file, line, column and
// function. The file part is lazy so paths containing colons still
// resolve; the function part keeps everything after the column.
var locationRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):(.+)$`)

// ParseLine parses a single .su line. Lines that do not carry three
// tab-separated fields, whose location does not split into
// file:line:column:function, or whose byte count is not a non-negative
// integer return an error wrapping ErrSkipLine.
func ParseLine(line string) (Record, error) {
	line = strings.TrimSpace(line)

	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("%w: want 3 tab-separated fields, got %d", ErrSkipLine, len(parts))
	}

	m := locationRe.FindStringSubmatch(parts[0])
	if m == nil {
		return Record{}, fmt.Errorf("%w: unparsable location %q", ErrSkipLine, parts[0])
	}
	lineNo, err := strconv.Atoi(m[2])
	if err != nil {
		return Record{}, fmt.Errorf("%w: line number %q: %v", ErrSkipLine, m[2], err)
	}

	bytes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Record{}, fmt.Errorf("%w: byte count %q: %v", ErrSkipLine, parts[1], err)
	}
	if bytes < 0 {
		return Record{}, fmt.Errorf("%w: negative byte count %d", ErrSkipLine, bytes)
	}

	return Record{
		Function:   strings.TrimSpace(m[4]),
		File:       m[1],
		Line:       lineNo,
		StackBytes: bytes,
		Qualifier:  strings.TrimSpace(parts[2]),
	}, nil
}

// ParseReader parses a whole .su stream. Blank lines are ignored;
// malformed lines are counted in skipped and parsing continues. The
// error is non-nil only when reading itself fails.
func ParseReader(r io.Reader) (records []Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read stack-usage data: %w", err)
	}
	return records, skipped, nil
}

// ParseFile parses one .su file from disk.
func ParseFile(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, skipped, err := ParseReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, skipped, nil
}
