package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chazu/lox/vm"
)

const replPrompt = "> "

// runREPL reads expressions from the terminal until EOF, evaluating each
// one on machine. History is kept in ~/.lox_history when the home directory
// is known.
func runREPL(machine *vm.VM, stdout, stderr io.Writer) error {
	cfg := &readline.Config{
		Prompt: replPrompt,
		Stdout: stdout,
		Stderr: stderr,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, ".lox_history")
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	return repl(rl.Readline, machine, stdout, stderr)
}

// repl evaluates one line at a time. Errors are printed and the loop goes
// on; the VM's stack is reset after each runtime error so the session stays
// usable.
func repl(readLine func() (string, error), machine *vm.VM, stdout, stderr io.Writer) error {
	for {
		line, err := readLine()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		result, err := machine.Evaluate(line)
		if err != nil {
			errColor.Fprintln(stderr, err)
			continue
		}
		fmt.Fprintln(stdout, result)
	}
}
