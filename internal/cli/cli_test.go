package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpgm-intl/internal/filewalker"
	"rpgm-intl/internal/parser"
)

const exampleScript = "#comment\r\n[Map001]\r\nALICE: Hello\r\nALICE: Hello\r\nWorld\r\n"

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "data", "intl.db"))
	t.Setenv("PROJECT_KEY", "test")
	t.Setenv("HEADER_LABEL", "demo")
	t.Setenv("STATUS_RESET_SECONDS", "0")
	t.Setenv("LOG_LEVEL", "error")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.txt"), []byte(exampleScript), 0644))
	return dir
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	return cmd.Execute()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestParseWritesDraft(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, run(t, "parse", "script.txt", "-o", "out/draft.json"))

	doc, err := parser.LoadDraft([]byte(readFile(t, filepath.Join(dir, "out", "draft.json"))))
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, "[Map001]", doc[0].Name)
}

func TestParseRejectsMalformedScript(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("ALICE: hi\r\n"), 0644))

	err := run(t, "parse", "bad.txt")
	assert.ErrorIs(t, err, parser.ErrMalformedStructure)
}

func TestLoadCompileExportDelete(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, run(t, "load", "script.txt"))
	require.NoError(t, run(t, "compile", "-o", "intl.txt"))

	assert.Equal(t, strings.Join([]string{
		"# Compiled strings - demo",
		"# This file has been generated automatically.",
		"[Map001]",
		"ALICE Hello",
		"ALICE Hello",
		"World",
		"World",
	}, "\r\n"), readFile(t, filepath.Join(dir, "intl.txt")))

	require.NoError(t, run(t, "export-draft", "-o", "exported.json"))
	_, err := parser.LoadDraft([]byte(readFile(t, filepath.Join(dir, "exported.json"))))
	require.NoError(t, err)

	require.NoError(t, run(t, "stats"))

	require.NoError(t, run(t, "delete"))
	assert.Error(t, run(t, "compile"), "compiling without a stored project must fail")
}

func TestCompileDraftFileWithLabel(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, run(t, "parse", "script.txt", "-o", "draft.json"))
	doc, err := parser.LoadDraft([]byte(readFile(t, filepath.Join(dir, "draft.json"))))
	require.NoError(t, err)
	doc[0].Characters[0].DisplayName.SetTranslation("Alicia")
	doc[0].Characters[0].Lines[0].SetTranslation("Hola")
	data, err := parser.EncodeDraft(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.json"), data, 0644))

	require.NoError(t, run(t, "compile", "draft.json", "-o", "es.txt", "--label", "spanish"))

	lines := strings.Split(readFile(t, filepath.Join(dir, "es.txt")), "\r\n")
	assert.Equal(t, "# Compiled strings - spanish", lines[0])
	assert.Equal(t, []string{"[Map001]", "ALICE Hello", "Alicia Hola", "World", "World"}, lines[2:])
}

func TestLintReportsDroppedEscapeCodes(t *testing.T) {
	dir := setupWorkspace(t)
	script := "[Map001]\r\nALICE: \\c[2]Hot \\PN!\r\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "esc.txt"), []byte(script), 0644))
	require.NoError(t, run(t, "parse", "esc.txt", "-o", "esc.json"))

	require.NoError(t, run(t, "lint", "esc.json"), "untranslated lines are not linted")

	doc, err := parser.LoadDraft([]byte(readFile(t, filepath.Join(dir, "esc.json"))))
	require.NoError(t, err)
	doc[0].Characters[0].Lines[0].SetTranslation(`\c[2]Caliente!`)
	data, err := parser.EncodeDraft(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "esc.json"), data, 0644))

	assert.Error(t, run(t, "lint", "esc.json"))
}

func TestCompileDir(t *testing.T) {
	dir := setupWorkspace(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "chapter2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "chapter1.txt"), []byte(exampleScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "chapter2", "intl.txt"), []byte("[Map002]\r\nBOB: Yo\r\n"), 0644))

	require.NoError(t, run(t, "compile-dir", "in", "out"))

	first := readFile(t, filepath.Join(dir, "out", "chapter1.txt"))
	assert.True(t, strings.HasPrefix(first, "# Compiled strings - chapter1\r\n"))

	second := strings.Split(readFile(t, filepath.Join(dir, "out", "chapter2", "intl.txt")), "\r\n")
	assert.Equal(t, []string{"[Map002]", "BOB Yo", "BOB Yo"}, second[2:])
}

func TestCompileDirReportsFailures(t *testing.T) {
	dir := setupWorkspace(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.json"), []byte("{"), 0644))

	assert.Error(t, run(t, "compile-dir", "in", "out"))
}

func TestSaveResultRefusesScriptOverwrite(t *testing.T) {
	setupWorkspace(t)
	sh := newShell(loadConfig())
	err := sh.saveResult(testContext(t), parser.Document{}, "script.txt", "")
	assert.Error(t, err)
}

func TestCompileDirRejectsConflictingOutputs(t *testing.T) {
	dir := setupWorkspace(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "foo.txt"), []byte(exampleScript), 0644))
	require.NoError(t, run(t, "parse", "script.txt", "-o", filepath.Join("in", "foo.json")))

	err := run(t, "compile-dir", "in", "out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo.txt")
	assert.NoFileExists(t, filepath.Join(dir, "out", "foo.txt"))
}

func TestCompileDirSkipsNestedOutput(t *testing.T) {
	dir := setupWorkspace(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "chapter1.txt"), []byte(exampleScript), 0644))

	require.NoError(t, run(t, "compile-dir", "in", filepath.Join("in", "out")))
	require.NoError(t, run(t, "compile-dir", "in", filepath.Join("in", "out")))

	assert.FileExists(t, filepath.Join(in, "out", "chapter1.txt"))
	assert.NoFileExists(t, filepath.Join(in, "out", "out", "chapter1.txt"))
}

func TestCompileDirRejectsSameDirectory(t *testing.T) {
	setupWorkspace(t)
	require.NoError(t, os.MkdirAll("in", 0755))
	require.NoError(t, os.WriteFile(filepath.Join("in", "chapter1.txt"), []byte(exampleScript), 0644))

	assert.Error(t, run(t, "compile-dir", "in", "in"))
	assert.Equal(t, exampleScript, readFile(t, filepath.Join("in", "chapter1.txt")))
}

func TestPlanCompileJobs(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	out := filepath.Join(in, "out")
	entries := []filewalker.FileEntry{
		{Path: filepath.Join(in, "a.txt")},
		{Path: filepath.Join(in, "sub", "b.json")},
		{Path: filepath.Join(out, "a.txt")},
	}

	jobs, err := planCompileJobs(entries, in, out, "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, filepath.Join(out, "a.txt"), jobs[0].output)
	assert.Equal(t, "a", jobs[0].label)
	assert.Equal(t, filepath.Join(out, "sub", "b.txt"), jobs[1].output)
	assert.Equal(t, "b", jobs[1].label)

	_, err = planCompileJobs(append(entries, filewalker.FileEntry{Path: filepath.Join(in, "a.json")}), in, out, "")
	assert.ErrorContains(t, err, "conflicting outputs")
}
