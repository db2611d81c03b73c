package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/internal/format"
	"github.com/mminer/plume/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a script once",
	Long: `Execute a Lua script in the sandbox and print its return value.

Code can be provided via:
  - File argument: plume run script.lua
  - Inline flag: plume run -c 'return tbl.n + 1'
  - Stdin: echo 'return 1' | plume run

Input is read from --input (a file, or - for stdin) or --input-json, and
bound to the global named by --binding. Without input the script sees an
empty table. The return value is written to stdout in --output-format;
anything the script prints goes to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	addInputFlags(cmd)
	cmd.Flags().StringP("output-format", "o", "json", "Output format: json, yaml, cbor, msgpack, hex")
	cmd.Flags().Bool("compact", false, "Compact JSON output")
	cmd.Flags().Bool("stats", false, "Print steps and duration to stderr")
}

// addInputFlags registers the flags shared by run and repl.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "Input file, or - for stdin")
	cmd.Flags().String("input-json", "", "Inline JSON input")
	cmd.Flags().StringP("input-format", "f", "json", "Input format: json, yaml, cbor, msgpack, hex")
	cmd.Flags().StringP("binding", "b", "", "Global the input is bound to (default from config: tbl)")
	cmd.Flags().Uint64P("quota", "q", 0, "Step quota (default from config: 1000)")
	cmd.Flags().Int("max-depth", 0, "Nesting limit for input and output (default from config: 100)")
	cmd.Flags().Duration("timeout", 0, "Wall-clock limit, 0 for none")
}

// runConfig merges flags over the loaded configuration.
func runConfig(cmd *cobra.Command) sandbox.Config {
	rc := currentConfig().Sandbox.RunConfig()
	if v, _ := cmd.Flags().GetString("binding"); v != "" {
		rc.Binding = v
	}
	if cmd.Flags().Changed("quota") {
		rc.Quota, _ = cmd.Flags().GetUint64("quota")
	}
	if v, _ := cmd.Flags().GetInt("max-depth"); v > 0 {
		rc.MaxDepth = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		rc.Timeout = v
	}
	return rc
}

func runOptions(rc sandbox.Config) []executor.Option {
	opts := []executor.Option{executor.WithMaxDepth(rc.MaxDepth)}
	if rc.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(rc.Timeout))
	}
	return opts
}

// readInput returns the wire encoding of the input selected by flags, or
// sandbox.EmptyMap when none is given.
func readInput(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("input")
	inline, _ := cmd.Flags().GetString("input-json")
	name, _ := cmd.Flags().GetString("input-format")

	var (
		data []byte
		err  error
		f    = format.JSON
	)
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("--input and --input-json are mutually exclusive")
	case inline != "":
		data = []byte(inline)
	case path == "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	case path != "":
		data, err = os.ReadFile(path)
	default:
		return sandbox.EmptyMap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if inline == "" {
		if f, err = format.Parse(name); err != nil {
			return nil, err
		}
	}
	wire, err := format.ToWire(data, f)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return wire, nil
}

// readScript returns the script from -c, the file argument or stdin.
// ok is false when there is nothing to run.
func readScript(cmd *cobra.Command, args []string) (source string, ok bool, err error) {
	code, _ := cmd.Flags().GetString("code")
	input, _ := cmd.Flags().GetString("input")

	switch {
	case code != "":
		return code, true, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	case input == "-":
		return "", false, fmt.Errorf("stdin is used for input; pass the script with -c or a file")
	}

	// Check if stdin has data (not a terminal)
	if f, isFile := cmd.InOrStdin().(*os.File); isFile {
		stat, err := f.Stat()
		if err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", false, nil
		}
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", false, nil
	}
	return string(data), true, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	source, ok, err := readScript(cmd, args)
	if err != nil {
		return err
	}
	if !ok {
		return cmd.Help()
	}

	outName, _ := cmd.Flags().GetString("output-format")
	outFormat, err := format.Parse(outName)
	if err != nil {
		return err
	}
	compact, _ := cmd.Flags().GetBool("compact")
	stats, _ := cmd.Flags().GetBool("stats")

	input, err := readInput(cmd)
	if err != nil {
		return err
	}

	exec, _, err := newExecutor(currentConfig(), nil)
	if err != nil {
		return err
	}
	defer exec.Close()

	rc := runConfig(cmd)
	result := exec.Run(context.Background(), source, rc.Binding, input, rc.Quota, runOptions(rc)...)

	stderr := cmd.ErrOrStderr()
	fmt.Fprint(stderr, result.Printed)
	if stats {
		fmt.Fprintf(stderr, "steps=%d returned=%d duration=%s state=%s\n",
			result.Steps, result.Returned, result.Duration, result.State)
	}
	if result.Error != nil {
		return result.Error
	}

	out, err := format.FromWire(result.Output, outFormat, compact)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	w := cmd.OutOrStdout()
	if _, err := w.Write(out); err != nil {
		return err
	}
	if outFormat == format.JSON || outFormat == format.Hex {
		fmt.Fprintln(w)
	}
	return nil
}
