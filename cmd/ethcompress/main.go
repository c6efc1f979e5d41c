// Command ethcompress reads an eth_call JSON-RPC payload from stdin,
// rewrites it through package compress, and writes the result (or the
// unchanged input, if the payload was ineligible or the rewrite was not
// beneficial) to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tadpole-labs/eth-compress/compress"
	"github.com/tadpole-labs/eth-compress/compress/jit"
	"github.com/urfave/cli/v2"
)

var (
	algorithmFlag = &cli.StringFlag{
		Name:  "algorithm",
		Usage: "force one of {jit, flz, cd} instead of letting the payload size choose",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "print a disassembly of the synthesised JIT bytecode to stderr",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity level (0=silent, 5=trace)",
		Value: 3,
	}
)

func main() {
	app := &cli.App{
		Name:      "ethcompress",
		Usage:     "rewrite an eth_call JSON-RPC payload to shrink its wire size",
		Flags:     []cli.Flag{algorithmFlag, debugFlag, verbosityFlag},
		Action:    run,
		ArgsUsage: "[payload.json]",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ethcompress:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	setupLogging(c.Int(verbosityFlag.Name))

	hint := compress.Algorithm(c.String(algorithmFlag.Name))
	if err := validateHint(hint); err != nil {
		return err
	}

	raw, err := readInput(c)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	out, err := compress.CompressCall(raw, hint)
	if err != nil {
		return fmt.Errorf("compressing call: %w", err)
	}

	if c.Bool(debugFlag.Name) {
		if code := extractCode(out); code != nil {
			fmt.Fprintln(os.Stderr, jit.Disassemble(code))
		}
	}

	_, err = os.Stdout.Write(out)
	return err
}

func validateHint(hint compress.Algorithm) error {
	switch hint {
	case "", compress.AlgorithmJIT, compress.AlgorithmFLZ, compress.AlgorithmCD:
		return nil
	default:
		return fmt.Errorf("unknown -algorithm %q, want one of jit, flz, cd", hint)
	}
}

func readInput(c *cli.Context) ([]byte, error) {
	if c.NArg() > 0 {
		return os.ReadFile(c.Args().First())
	}
	return io.ReadAll(os.Stdin)
}

// extractCode pulls the decompressor's synthesised bytecode back out
// of a rewritten payload's state override, for -debug disassembly. It
// returns nil for an unchanged (passthrough) payload.
func extractCode(out []byte) []byte {
	var decoded struct {
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil || len(decoded.Params) < 3 {
		return nil
	}
	var overrides map[common.Address]struct {
		Code hexutil.Bytes `json:"code"`
	}
	if err := json.Unmarshal(decoded.Params[2], &overrides); err != nil {
		return nil
	}
	entry, ok := overrides[compress.DecompressorAddress]
	if !ok {
		return nil
	}
	return entry.Code
}

func setupLogging(verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), false)
	log.SetDefault(log.NewLogger(handler))
}
