package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/chazu/lox/vm"
)

func init() {
	color.NoColor = true
}

func writeSource(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunFile(t *testing.T) {
	tests := []struct {
		src    string
		code   int
		stdout string
		stderr string
	}{
		{"(1.2 + 3.4) * 5.6\n", exitOK, "25.76\n", ""},
		{"1 +\n", exitDataErr, "", "[line 2] Error at end: Expect expression.\n"},
		{"-false", exitSoftware, "", "Operand must be a number.\n[line 1] in script\n"},
	}

	for _, tc := range tests {
		path := writeSource(t, "expr.lox", tc.src)

		var stdout, stderr bytes.Buffer
		if code := run([]string{path}, &stdout, &stderr); code != tc.code {
			t.Errorf("run(%q) = %d, want %d (stderr %q)", tc.src, code, tc.code, stderr.String())
		}
		if stdout.String() != tc.stdout {
			t.Errorf("run(%q) stdout = %q, want %q", tc.src, stdout.String(), tc.stdout)
		}
		if stderr.String() != tc.stderr {
			t.Errorf("run(%q) stderr = %q, want %q", tc.src, stderr.String(), tc.stderr)
		}
	}
}

func TestRunMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing.lox")
	if code := run([]string{path}, &stdout, &stderr); code != exitIOErr {
		t.Errorf("run = %d, want %d", code, exitIOErr)
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"a.lox", "b.lox"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("run with two paths = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "Usage: lox") {
		t.Errorf("stderr = %q, want usage", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"-nope"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("run with unknown flag = %d, want %d", code, exitUsage)
	}
}

func TestCompileImageThenRun(t *testing.T) {
	src := writeSource(t, "expr.lox", "-(1 + 2) * 4")
	image := filepath.Join(filepath.Dir(src), "expr.loxc")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-c", image, src}, &stdout, &stderr); code != exitOK {
		t.Fatalf("compile = %d (stderr %q)", code, stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("compile printed %q", stdout.String())
	}

	if code := run([]string{image}, &stdout, &stderr); code != exitOK {
		t.Fatalf("run image = %d (stderr %q)", code, stderr.String())
	}
	if stdout.String() != "-12\n" {
		t.Errorf("stdout = %q, want -12", stdout.String())
	}
}

func TestRunCorruptImage(t *testing.T) {
	path := writeSource(t, "bad.loxc", "not cbor")
	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, &stdout, &stderr); code != exitDataErr {
		t.Errorf("run = %d, want %d", code, exitDataErr)
	}
}

func TestRunDisassemble(t *testing.T) {
	path := writeSource(t, "one.lox", "1")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-d", path}, &stdout, &stderr); code != exitOK {
		t.Fatalf("run = %d (stderr %q)", code, stderr.String())
	}
	want := "== one.lox ==\n0000    1 OP_CONSTANT         0 '1'\n0002    | OP_RETURN\n1\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunTrace(t *testing.T) {
	path := writeSource(t, "neg.lox", "-2")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-trace", path}, &stdout, &stderr); code != exitOK {
		t.Fatalf("run = %d (stderr %q)", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "OP_NEGATE") || !strings.Contains(out, "[ 2 ]") {
		t.Errorf("trace output missing instructions or stack: %q", out)
	}
	if !strings.HasSuffix(out, "-2\n") {
		t.Errorf("stdout = %q, want it to end with the result", out)
	}
}

func TestRunWithManifestCache(t *testing.T) {
	dir := t.TempDir()
	toml := "[vm]\nstack-size = 8\n[cache]\npath = \"cache/chunks.db\"\n"
	if err := os.WriteFile(filepath.Join(dir, "lox.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "expr.lox")
	if err := os.WriteFile(src, []byte("2 * 21"), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run([]string{src}, &stdout, &stderr); code != exitOK {
			t.Fatalf("run %d = %d (stderr %q)", i, code, stderr.String())
		}
		if stdout.String() != "42\n" {
			t.Errorf("run %d stdout = %q", i, stdout.String())
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "cache", "chunks.db")); err != nil {
		t.Errorf("cache database not created: %v", err)
	}
}

func TestRunBadManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lox.toml"), []byte("[vm]\nstack-size = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "expr.lox")
	if err := os.WriteFile(src, []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{src}, &stdout, &stderr); code != exitConfigError {
		t.Errorf("run = %d, want %d", code, exitConfigError)
	}
}

// lines feeds the REPL from a fixed script.
func lines(input ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(input) {
			return "", io.EOF
		}
		i++
		return input[i-1], nil
	}
}

func TestREPL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	machine := vm.New()

	err := repl(lines("1 + 2", "", "-nil", "(1", "3 * 3"), machine, &stdout, &stderr)
	if err != nil {
		t.Fatalf("repl: %v", err)
	}

	if stdout.String() != "3\n9\n" {
		t.Errorf("stdout = %q, want \"3\\n9\\n\"", stdout.String())
	}
	errs := stderr.String()
	if !strings.Contains(errs, "Operand must be a number.") {
		t.Errorf("stderr missing runtime error: %q", errs)
	}
	if !strings.Contains(errs, "Expect ')' after expression.") {
		t.Errorf("stderr missing compile error: %q", errs)
	}
}

func TestREPLInterrupt(t *testing.T) {
	read := func() (string, error) { return "", readline.ErrInterrupt }
	if err := repl(read, vm.New(), io.Discard, io.Discard); err != nil {
		t.Errorf("repl = %v, want nil on interrupt", err)
	}
}

func TestREPLReadError(t *testing.T) {
	boom := errors.New("boom")
	read := func() (string, error) { return "", boom }
	if err := repl(read, vm.New(), io.Discard, io.Discard); !errors.Is(err, boom) {
		t.Errorf("repl = %v, want %v", err, boom)
	}
}
