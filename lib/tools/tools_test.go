// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	workspace, err := NewWorkspace(root, WorkspaceOptions{})
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	return NewRegistry(workspace), root
}

// call invokes a tool and fails the test on infrastructure errors,
// returning the output and the tool-level error flag.
func call(t *testing.T, registry *Registry, name, arguments string) (string, bool) {
	t.Helper()
	output, isError, err := registry.Call(context.Background(), name, json.RawMessage(arguments))
	if err != nil {
		t.Fatalf("Call(%s): %v", name, err)
	}
	return output, isError
}

func TestRegistryCatalog(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)
	definitions := registry.Definitions()

	byName := make(map[string]bool)
	for _, definition := range definitions {
		byName[definition.Name] = true
		if definition.Description == "" {
			t.Errorf("tool %s has no description", definition.Name)
		}
		if !json.Valid(definition.Parameters) {
			t.Errorf("tool %s has invalid parameter schema", definition.Name)
		}
	}

	expected := []string{
		"read_file", "read_lines", "count_lines", "write_file", "edit_file",
		"apply_patch", "list_files", "tree", "find_files", "get_file_info",
		"code_structure", "get_repo_map", "grep", "run_shell",
		"git_status", "git_diff", "git_log", "web_fetch",
	}
	for _, name := range expected {
		if !byName[name] {
			t.Errorf("catalog is missing %s", name)
		}
	}
}

func TestRegistryCall_UnknownTool(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)
	_, _, err := registry.Call(context.Background(), "no_such_tool", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestMutatingClassification(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)

	for _, name := range []string{"write_file", "edit_file", "apply_patch", "run_shell"} {
		if !registry.Mutating(name) {
			t.Errorf("%s should be mutating", name)
		}
	}
	for _, name := range []string{"read_file", "grep", "git_status", "list_files", "code_structure", "get_file_info"} {
		if registry.Mutating(name) {
			t.Errorf("%s should not be mutating", name)
		}
	}
	// Unknown tools fail closed.
	if !registry.Mutating("mystery") {
		t.Error("unknown tools should classify as mutating")
	}
}

func TestPathEscapeRejected(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)

	for _, path := range []string{"../outside.txt", "a/../../etc/passwd", "/etc/passwd"} {
		arguments := fmt.Sprintf(`{"path": %q}`, path)
		output, isError := call(t, registry, "read_file", arguments)
		if !isError {
			t.Errorf("read_file(%q) succeeded: %q", path, output)
		}
		if !strings.Contains(output, "outside the workspace") {
			t.Errorf("read_file(%q) error %q does not mention confinement", path, output)
		}
	}
}

func TestReadWriteEditRoundTrip(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)

	output, isError := call(t, registry, "write_file",
		`{"path": "src/main.go", "content": "package main\n\nfunc main() {}\n"}`)
	if isError {
		t.Fatalf("write_file failed: %s", output)
	}

	data, err := os.ReadFile(filepath.Join(root, "src", "main.go"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "package main\n\nfunc main() {}\n" {
		t.Errorf("written content = %q", data)
	}

	output, isError = call(t, registry, "read_file", `{"path": "src/main.go"}`)
	if isError {
		t.Fatalf("read_file failed: %s", output)
	}
	if !strings.Contains(output, "1\tpackage main") {
		t.Errorf("read_file output not line-numbered: %q", output)
	}

	output, isError = call(t, registry, "edit_file",
		`{"path": "src/main.go", "old_string": "func main() {}", "new_string": "func main() { println(1) }"}`)
	if isError {
		t.Fatalf("edit_file failed: %s", output)
	}
	data, _ = os.ReadFile(filepath.Join(root, "src", "main.go"))
	if !strings.Contains(string(data), "println(1)") {
		t.Errorf("edit not applied: %q", data)
	}
}

func TestEditFile_RequiresUniqueMatch(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	if err := os.WriteFile(filepath.Join(root, "dup.txt"), []byte("x\nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "edit_file",
		`{"path": "dup.txt", "old_string": "x", "new_string": "y"}`)
	if !isError {
		t.Fatalf("ambiguous edit succeeded: %s", output)
	}
	if !strings.Contains(output, "2 times") {
		t.Errorf("error %q does not report the match count", output)
	}

	// The file is untouched after a failed edit.
	data, _ := os.ReadFile(filepath.Join(root, "dup.txt"))
	if string(data) != "x\nx\n" {
		t.Errorf("failed edit modified the file: %q", data)
	}
}

func TestEditFile_LineTrimmedFallback(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	content := "func main() {\n\tif ready {\n\t\tlaunch()\n\t}\n}\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// old_string reproduces the block with spaces where the file has
	// tabs; the trimmed match still locates it.
	output, isError := call(t, registry, "edit_file",
		`{"path": "main.go", "old_string": "    if ready {\n        launch()\n    }", "new_string": "\tif ready {\n\t\tlaunch()\n\t\tlog()\n\t}"}`)
	if isError {
		t.Fatalf("line-trimmed edit failed: %s", output)
	}

	data, _ := os.ReadFile(filepath.Join(root, "main.go"))
	if !strings.Contains(string(data), "log()") {
		t.Errorf("edit not applied: %q", data)
	}
}

func TestApplyPatch(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)

	output, isError := call(t, registry, "apply_patch",
		`{"path": "notes.txt", "new_content": "first line\nsecond line\n"}`)
	if isError {
		t.Fatalf("apply_patch create failed: %s", output)
	}
	if !strings.Contains(output, "Created notes.txt") {
		t.Errorf("create output = %q", output)
	}
	if !strings.Contains(output, "+first line") {
		t.Errorf("create diff missing added lines: %q", output)
	}
	data, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil || string(data) != "first line\nsecond line\n" {
		t.Fatalf("file content = %q, err %v", data, err)
	}

	output, isError = call(t, registry, "apply_patch",
		`{"path": "notes.txt", "new_content": "first line\nrewritten line\n"}`)
	if isError {
		t.Fatalf("apply_patch update failed: %s", output)
	}
	if !strings.Contains(output, "Updated notes.txt") {
		t.Errorf("update output = %q", output)
	}
	if !strings.Contains(output, "-second line") || !strings.Contains(output, "+rewritten line") {
		t.Errorf("update diff missing changed lines: %q", output)
	}
	// The unchanged first line is not part of the hunk.
	if strings.Contains(output, "-first line") {
		t.Errorf("diff includes an unchanged line: %q", output)
	}

	output, isError = call(t, registry, "apply_patch",
		`{"path": "notes.txt", "new_content": "first line\nrewritten line\n"}`)
	if isError {
		t.Fatalf("apply_patch no-op failed: %s", output)
	}
	if !strings.Contains(output, "No changes") {
		t.Errorf("identical content output = %q", output)
	}
}

func TestGetFileInfo(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte("\x00\x01\x02"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "get_file_info", `{"path": "*.txt"}`)
	if isError {
		t.Fatalf("get_file_info glob failed: %s", output)
	}
	if !strings.Contains(output, "a.txt") || !strings.Contains(output, "5B") {
		t.Errorf("glob output missing file row: %q", output)
	}
	if strings.Contains(output, "blob.bin") {
		t.Errorf("glob output includes a non-matching file: %q", output)
	}

	output, isError = call(t, registry, "get_file_info", `{"path": "blob.bin"}`)
	if isError {
		t.Fatalf("get_file_info file failed: %s", output)
	}
	if !strings.Contains(output, "binary") {
		t.Errorf("NUL-containing file not classified binary: %q", output)
	}

	output, isError = call(t, registry, "get_file_info", `{"path": "."}`)
	if isError {
		t.Fatalf("get_file_info directory failed: %s", output)
	}
	if !strings.Contains(output, "a.txt") || !strings.Contains(output, "blob.bin") {
		t.Errorf("directory output missing files: %q", output)
	}
}

func TestCodeStructure(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	source := "package demo\n\ntype Widget struct {\n\tname string\n}\n\nfunc NewWidget(name string) *Widget {\n\treturn &Widget{name: name}\n}\n\nfunc (widget *Widget) Name() string {\n\treturn widget.name\n}\n"
	if err := os.WriteFile(filepath.Join(root, "widget.go"), []byte(source), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "code_structure", `{"path": "widget.go"}`)
	if isError {
		t.Fatalf("code_structure failed: %s", output)
	}
	if !strings.Contains(output, "File: widget.go") {
		t.Errorf("output missing file header: %q", output)
	}
	for _, want := range []string{"type Widget struct", "func NewWidget", "func (widget *Widget) Name()"} {
		if !strings.Contains(output, want) {
			t.Errorf("outline missing %q: %q", want, output)
		}
	}
	// Declaration lines carry their line numbers.
	if !strings.Contains(output, "Line    3:") {
		t.Errorf("outline missing line numbers: %q", output)
	}
	// Body lines are not part of the outline.
	if strings.Contains(output, "return &Widget") {
		t.Errorf("outline includes body text: %q", output)
	}

	// Unrecognized file types fall back to size information.
	if err := os.WriteFile(filepath.Join(root, "data.csv"), []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	output, isError = call(t, registry, "code_structure", `{"path": "data.csv"}`)
	if isError {
		t.Fatalf("code_structure on csv failed: %s", output)
	}
	if !strings.Contains(output, "No outline") {
		t.Errorf("csv fallback output = %q", output)
	}
}

func TestRepoMap(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	if err := os.MkdirAll(filepath.Join(root, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"main.go":      "package main\n\nfunc main() {}\n",
		"lib/parse.go": "package lib\n\nfunc Parse(input string) error {\n\treturn nil\n}\n",
		"README.md":    "# demo\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	output, isError := call(t, registry, "get_repo_map", `{}`)
	if isError {
		t.Fatalf("get_repo_map failed: %s", output)
	}
	for _, want := range []string{"main.go:", "func main()", "func Parse(input string) error"} {
		if !strings.Contains(output, want) {
			t.Errorf("map missing %q: %q", want, output)
		}
	}
	if strings.Contains(output, "README.md") {
		t.Errorf("map includes a non-code file: %q", output)
	}
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	var lines []string
	for i := 1; i <= 50; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	if err := os.WriteFile(filepath.Join(root, "big.txt"),
		[]byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "read_lines",
		`{"path": "big.txt", "start_line": 10, "end_line": 12}`)
	if isError {
		t.Fatalf("read_lines failed: %s", output)
	}
	for _, want := range []string{"line 10", "line 11", "line 12"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %q", want, output)
		}
	}
	if strings.Contains(output, "line 13") {
		t.Errorf("output past end_line: %q", output)
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	if err := os.WriteFile(filepath.Join(root, "three.txt"), []byte("a\nb\nc"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "count_lines", `{"path": "three.txt"}`)
	if isError {
		t.Fatalf("count_lines failed: %s", output)
	}
	if !strings.Contains(output, "3 lines") {
		t.Errorf("output = %q, want 3 lines", output)
	}
}

func TestListAndFind(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	for _, path := range []string{"a.go", "b.txt", "nested/c.go", ".git/HEAD"} {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("content\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	output, _ := call(t, registry, "list_files", `{}`)
	if !strings.Contains(output, "a.go") || !strings.Contains(output, "nested/") {
		t.Errorf("list_files output = %q", output)
	}

	output, _ = call(t, registry, "find_files", `{"pattern": "*.go"}`)
	if !strings.Contains(output, "a.go") || !strings.Contains(output, filepath.Join("nested", "c.go")) {
		t.Errorf("find_files output = %q", output)
	}
	if strings.Contains(output, "b.txt") {
		t.Errorf("find_files matched the wrong extension: %q", output)
	}

	output, _ = call(t, registry, "tree", `{}`)
	if strings.Contains(output, ".git") {
		t.Errorf("tree descended into .git: %q", output)
	}
	if !strings.Contains(output, "nested/") {
		t.Errorf("tree output = %q", output)
	}
}

func TestGrep(t *testing.T) {
	t.Parallel()

	registry, root := testRegistry(t)
	if err := os.WriteFile(filepath.Join(root, "code.go"),
		[]byte("package main\n\nfunc Handler() {}\nfunc helper() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "grep", `{"pattern": "func \\w+"}`)
	if isError {
		t.Fatalf("grep failed: %s", output)
	}
	if !strings.Contains(output, "code.go:3: func Handler() {}") {
		t.Errorf("grep output = %q", output)
	}

	// Case-insensitive by default.
	output, _ = call(t, registry, "grep", `{"pattern": "HANDLER"}`)
	if !strings.Contains(output, "Handler") {
		t.Errorf("case-insensitive grep output = %q", output)
	}

	output, isError = call(t, registry, "grep", `{"pattern": "[invalid"}`)
	if !isError {
		t.Errorf("invalid pattern succeeded: %q", output)
	}
}

func TestRunShell(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)

	output, isError := call(t, registry, "run_shell", `{"command": "echo hello"}`)
	if isError {
		t.Fatalf("run_shell failed: %s", output)
	}
	if !strings.Contains(output, "hello") {
		t.Errorf("output = %q", output)
	}

	// Non-zero exit surfaces as a tool result, not an error string
	// replacement: the model needs the output and the status.
	output, isError = call(t, registry, "run_shell", `{"command": "echo oops; exit 3"}`)
	if isError {
		t.Fatalf("non-zero exit reported as infrastructure error: %s", output)
	}
	if !strings.Contains(output, "oops") || !strings.Contains(output, "exit status 3") {
		t.Errorf("output = %q", output)
	}
}

func TestRunShell_BlockedCommands(t *testing.T) {
	t.Parallel()

	registry, _ := testRegistry(t)

	for _, command := range []string{"sudo rm -rf /", "true && sudo id", "su root"} {
		arguments := fmt.Sprintf(`{"command": %q}`, command)
		output, isError := call(t, registry, "run_shell", arguments)
		if !isError {
			t.Errorf("blocked command %q ran: %s", command, output)
		}
		if !strings.Contains(output, "blocked") {
			t.Errorf("error %q does not mention blocking", output)
		}
	}

	// "sudoku" is not "sudo": only whole command words are blocked.
	if blocked := blockedCommand("sudoku --solve"); blocked != "" {
		t.Errorf("blockedCommand flagged %q", blocked)
	}
}

func TestRunShell_Timeout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	workspace, err := NewWorkspace(root, WorkspaceOptions{ShellTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(workspace)

	output, isError := call(t, registry, "run_shell", `{"command": "sleep 5"}`)
	if !isError {
		t.Fatalf("timed-out command succeeded: %s", output)
	}
	if !strings.Contains(output, "timed out") {
		t.Errorf("error %q does not mention the timeout", output)
	}
}

func TestOutputCapping(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	workspace, err := NewWorkspace(root, WorkspaceOptions{MaxOutputBytes: 1_000})
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(workspace)

	if err := os.WriteFile(filepath.Join(root, "wide.txt"),
		[]byte(strings.Repeat("abcdefghij\n", 500)), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "read_file", `{"path": "wide.txt"}`)
	if isError {
		t.Fatalf("read_file failed: %s", output)
	}
	if !strings.Contains(output, "[output truncated") {
		t.Error("oversized output was not capped")
	}
	if len(output) > 1_200 {
		t.Errorf("capped output is %d bytes", len(output))
	}
}

func TestOutputCapping_RuneBoundary(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// 3-byte runes: a 1000-byte cap lands mid-rune and must back off.
	workspace, err := NewWorkspace(root, WorkspaceOptions{MaxOutputBytes: 1_000})
	if err != nil {
		t.Fatal(err)
	}

	capped := workspace.capOutput(strings.Repeat("☃", 2_000))
	if !utf8.ValidString(capped) {
		t.Error("capped output contains invalid UTF-8")
	}
	if !strings.Contains(capped, "[output truncated") {
		t.Error("oversized output was not capped")
	}
}

func TestGitStatus(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	registry, root := testRegistry(t)
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		command := exec.Command("git", append([]string{"-C", root}, args...)...)
		if out, err := command.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, isError := call(t, registry, "git_status", `{}`)
	if isError {
		t.Fatalf("git_status failed: %s", output)
	}
	if !strings.Contains(output, "new.txt") {
		t.Errorf("git_status output = %q", output)
	}
}

func TestWebFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><script>ignored()</script></head>`+
			`<body><h1>Title</h1><p>Body &amp; text</p></body></html>`)
	}))
	t.Cleanup(server.Close)

	registry, _ := testRegistry(t)
	arguments := fmt.Sprintf(`{"url": %q}`, server.URL)

	output, isError := call(t, registry, "web_fetch", arguments)
	if isError {
		t.Fatalf("web_fetch failed: %s", output)
	}
	if !strings.Contains(output, "Title") || !strings.Contains(output, "Body & text") {
		t.Errorf("output = %q", output)
	}
	if strings.Contains(output, "ignored()") {
		t.Errorf("script content leaked: %q", output)
	}

	output, isError = call(t, registry, "web_fetch", `{"url": "ftp://example.com/x"}`)
	if !isError {
		t.Errorf("ftp URL succeeded: %q", output)
	}
}
