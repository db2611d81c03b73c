package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/mminer/plume/internal/format"
	"github.com/mminer/plume/wire"
)

var codecCmd = &cobra.Command{
	Use:   "codec",
	Short: "Convert and inspect wire-format values",
	Long: `Tools for working with the msgpack values scripts exchange.

Subcommands read from a file argument, or stdin when none is given.
With --hex, wire input is hex text rather than raw bytes; whitespace in
it is ignored.`,
}

var codecEncodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Convert JSON, YAML or CBOR to wire bytes",
	Example: `  echo '{"n": 41}' | plume codec encode --hex
  plume codec encode -f yaml input.yaml > input.msgpack`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCodecEncode,
}

var codecDecodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Convert wire bytes to JSON, YAML or CBOR",
	Example: `  plume run -c 'return {1, 2}' -o msgpack | plume codec decode
  echo '92 01 02' | plume codec decode --hex -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCodecDecode,
}

var codecDiagCmd = &cobra.Command{
	Use:   "diag [file]",
	Short: "Print the structure of wire values",
	Long: `Print each wire value in the input on its own line, prefixed with its
byte offset. Unlike JSON output, the notation keeps map key types and
key order, and reports the offset of the first malformed byte.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCodecDiag,
}

func init() {
	codecEncodeCmd.Flags().StringP("input-format", "f", "json", "Input format: json, yaml, cbor")
	codecEncodeCmd.Flags().Bool("hex", false, "Write hex text instead of raw bytes")

	codecDecodeCmd.Flags().StringP("output-format", "o", "json", "Output format: json, yaml, cbor, hex")
	codecDecodeCmd.Flags().Bool("hex", false, "Treat input as hex-encoded wire bytes")
	codecDecodeCmd.Flags().Bool("compact", false, "Compact JSON output")

	codecDiagCmd.Flags().Bool("hex", false, "Treat input as hex-encoded wire bytes")
	codecDiagCmd.Flags().Int("max-depth", wire.DefaultMaxDepth, "Nesting limit")

	codecCmd.AddCommand(codecEncodeCmd, codecDecodeCmd, codecDiagCmd)
	rootCmd.AddCommand(codecCmd)
}

func readCodecInput(cmd *cobra.Command, args []string, hexMode bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if hexMode {
		return decodeHexInput(data)
	}
	return data, nil
}

func decodeHexInput(data []byte) ([]byte, error) {
	cleaned := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty input after stripping whitespace from hex")
	}

	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	count, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded[:count], nil
}

func runCodecEncode(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("input-format")
	hexOut, _ := cmd.Flags().GetBool("hex")

	f, err := format.Parse(name)
	if err != nil {
		return err
	}
	data, err := readCodecInput(cmd, args, false)
	if err != nil {
		return err
	}
	out, err := format.ToWire(data, f)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if hexOut {
		_, err = fmt.Fprintln(w, hex.EncodeToString(out))
		return err
	}
	_, err = w.Write(out)
	return err
}

func runCodecDecode(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("output-format")
	hexIn, _ := cmd.Flags().GetBool("hex")
	compact, _ := cmd.Flags().GetBool("compact")

	f, err := format.Parse(name)
	if err != nil {
		return err
	}
	data, err := readCodecInput(cmd, args, hexIn)
	if err != nil {
		return err
	}
	out, err := format.FromWire(data, f, compact)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if _, err := w.Write(out); err != nil {
		return err
	}
	if f == format.JSON || f == format.Hex {
		fmt.Fprintln(w)
	}
	return nil
}

func runCodecDiag(cmd *cobra.Command, args []string) error {
	hexIn, _ := cmd.Flags().GetBool("hex")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")

	data, err := readCodecInput(cmd, args, hexIn)
	if err != nil {
		return err
	}
	return diagWire(data, cmd.OutOrStdout(), maxDepth)
}

// diagWire writes one line per value in data, which may hold several
// values back to back.
func diagWire(data []byte, w io.Writer, maxDepth int) error {
	if len(data) == 0 {
		return fmt.Errorf("empty input: expected wire data")
	}

	remaining := data
	for len(remaining) > 0 {
		offset := len(data) - len(remaining)
		v, rest, err := wire.DecodePrefix(remaining, wire.WithMaxDepth(maxDepth))
		if err != nil {
			return fmt.Errorf("value at byte %d: %w", offset, err)
		}
		if _, err := fmt.Fprintf(w, "%d: %s %s\n", offset, v.Kind(), v); err != nil {
			return err
		}
		remaining = rest
	}
	return nil
}
