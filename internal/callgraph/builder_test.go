package callgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildRecoversCalls(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "client.c", `
#include "client.h"

mb_err_t mb_client_poll(mb_client_t *cli)
{
    mb_transport_recv(cli->iface);
    mb_fsm_step(cli);
    return MB_OK;
}

static void mb_fsm_step(mb_client_t *cli)
{
    if (cli->pending) {
        mb_timeout_check(cli);
    }
}
`)

	g := New()
	stats, err := NewBuilder(dir).Build(g)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1", stats.Files)
	}
	if stats.Definitions != 2 {
		t.Errorf("Definitions = %d, want 2", stats.Definitions)
	}

	want := []string{"mb_transport_recv", "mb_fsm_step"}
	if diff := cmp.Diff(want, g.Callees("mb_client_poll")); diff != "" {
		t.Errorf("mb_client_poll callees mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mb_timeout_check"}, g.Callees("mb_fsm_step")); diff != "" {
		t.Errorf("mb_fsm_step callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBoundsScanToBody(t *testing.T) {
	// Calls made by a later function in the same file must not be
	// attributed to an earlier one.
	dir := t.TempDir()
	writeSource(t, dir, "two.c", `
void first_fn(void)
{
    helper_one();
}

void second_fn(void)
{
    helper_two();
}
`)

	g := New()
	if _, err := NewBuilder(dir).Build(g); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if diff := cmp.Diff([]string{"helper_one"}, g.Callees("first_fn")); diff != "" {
		t.Errorf("first_fn callees mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"helper_two"}, g.Callees("second_fn")); diff != "" {
		t.Errorf("second_fn callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFiltersControlKeywords(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dispatch.c", `
int dispatch(int x)
{
    if (x) {
        handle_one(x);
    }
    else if (x > 2) {
        handle_two(x);
    }
    for (int i = 0; i < x; i++) {
        handle_each(i);
    }
    return 0;
}
`)

	g := New()
	stats, err := NewBuilder(dir).Build(g)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	// "else if (...) {" matches the definition shape; the keyword
	// guard must reject it.
	if stats.Definitions != 1 {
		t.Errorf("Definitions = %d, want 1", stats.Definitions)
	}
	want := []string{"handle_one", "handle_two", "handle_each"}
	if diff := cmp.Diff(want, g.Callees("dispatch")); diff != "" {
		t.Errorf("dispatch callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSelfRecursionEdge(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "walk.c", `
int walk_tree(node_t *n)
{
    if (n->left) {
        walk_tree(n->left);
    }
    return visit(n);
}
`)

	g := New()
	if _, err := NewBuilder(dir).Build(g); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	want := []string{"walk_tree", "visit"}
	if diff := cmp.Diff(want, g.Callees("walk_tree")); diff != "" {
		t.Errorf("walk_tree callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSkipsExcludedDirsAndOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "keep.c", "void kept(void)\n{\n    inner_call();\n}\n")
	writeSource(t, dir, "notes.txt", "void ignored(void)\n{\n    bogus_call();\n}\n")
	writeSource(t, dir, filepath.Join("build", "gen.c"), "void generated(void)\n{\n    gen_call();\n}\n")

	g := New()
	b := NewBuilder(dir)
	b.ExcludeDirs("build")
	stats, err := b.Build(g)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1", stats.Files)
	}
	if got := g.Callees("generated"); got != nil {
		t.Errorf("excluded dir was scanned: %v", got)
	}
	if got := g.Callees("ignored"); got != nil {
		t.Errorf("non-.c file was scanned: %v", got)
	}
}

func TestBuildExtraExcludedIdents(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "log.c", `
void log_event(int code)
{
    LOG_DEBUG(code);
    emit(code);
}
`)

	g := New()
	b := NewBuilder(dir)
	b.ExcludeIdents("LOG_DEBUG")
	if _, err := b.Build(g); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if diff := cmp.Diff([]string{"emit"}, g.Callees("log_event")); diff != "" {
		t.Errorf("log_event callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUnbalancedBraces(t *testing.T) {
	// A truncated file must not panic; the body window extends to EOF.
	dir := t.TempDir()
	writeSource(t, dir, "cut.c", "void truncated(void)\n{\n    still_seen();\n")

	g := New()
	if _, err := NewBuilder(dir).Build(g); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if diff := cmp.Diff([]string{"still_seen"}, g.Callees("truncated")); diff != "" {
		t.Errorf("truncated callees mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMissingRoot(t *testing.T) {
	g := New()
	if _, err := NewBuilder(filepath.Join(t.TempDir(), "nope")).Build(g); err == nil {
		t.Fatal("expected error for missing source root")
	}
}

func TestBuildTolerantDecoding(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte("void binary_neighbor(void)\n{\n    "), 0xff, 0xfe)
	content = append(content, []byte("\n    real_call();\n}\n")...)
	writeSource(t, dir, "bin.c", string(content))

	g := New()
	if _, err := NewBuilder(dir).Build(g); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if diff := cmp.Diff([]string{"real_call"}, g.Callees("binary_neighbor")); diff != "" {
		t.Errorf("binary_neighbor callees mismatch (-want +got):\n%s", diff)
	}
}
