package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/internal/format"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive REPL",
	Long: `Start an interactive REPL (Read-Eval-Print Loop).

Each entry is run as its own script in a fresh sandbox against the same
input value, so globals do not carry over between entries. Return values
are printed as JSON.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)
  - Replace the input with :input <json>

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	RunE: runRepl,
}

func init() {
	addInputFlags(replCmd)
	replCmd.Flags().String("history", "", "History file path (default: ~/.plume_history)")
	rootCmd.AddCommand(replCmd)
}

// replSession evaluates REPL entries. It is separate from the readline
// loop so it can be driven from tests.
type replSession struct {
	exec  *executor.Executor
	input []byte
	rc    runSettings
	out   io.Writer
	err   io.Writer
}

type runSettings struct {
	binding string
	quota   uint64
	opts    []executor.Option
}

// eval handles one entry and reports whether the session should end.
func (s *replSession) eval(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "exit" || line == "quit":
		return true
	case strings.HasPrefix(line, ":input"):
		data, err := format.ToWire([]byte(strings.TrimSpace(strings.TrimPrefix(line, ":input"))), format.JSON)
		if err != nil {
			fmt.Fprintf(s.err, "Error: %v\n", err)
			return false
		}
		s.input = data
		return false
	}

	result := s.exec.Run(context.Background(), line, s.rc.binding, s.input, s.rc.quota, s.rc.opts...)
	if result.Printed != "" {
		fmt.Fprint(s.out, result.Printed)
		if !strings.HasSuffix(result.Printed, "\n") {
			fmt.Fprintln(s.out)
		}
	}
	if result.Error != nil {
		fmt.Fprintf(s.err, "Error: %v\n", result.Error)
		return false
	}

	out, err := format.FromWire(result.Output, format.JSON, true)
	if err != nil {
		fmt.Fprintf(s.err, "Error: %v\n", err)
		return false
	}
	fmt.Fprintf(s.out, "%s\n", out)
	return false
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".plume_history")
	}

	input, err := readInput(cmd)
	if err != nil {
		return err
	}

	exec, guest, err := newExecutor(currentConfig(), nil)
	if err != nil {
		return err
	}
	defer exec.Close()

	rc := runConfig(cmd)
	session := &replSession{
		exec:  exec,
		input: input,
		rc:    runSettings{binding: rc.Binding, quota: rc.Quota, opts: runOptions(rc)},
		out:   cmd.OutOrStdout(),
		err:   cmd.ErrOrStderr(),
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "plume %s REPL, input bound to %q (type 'exit' to quit, Ctrl+D to exit)\n",
		guest.Name(), rc.Binding)

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		if session.eval(line) {
			break
		}
	}
	return nil
}
