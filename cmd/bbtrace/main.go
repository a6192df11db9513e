package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bbtrace/internal/trace"
	"bbtrace/internal/version"
)

// Exit codes.
const (
	exitUsage = 1
	exitFatal = 2
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bbtrace",
		Short:         "Basic-block execution tracer",
		Long:          `bbtrace records one line per executed basic block, optionally annotated with the owning module and the block's disassembly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version.Version

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newVersionCmd())

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./"+configDefaultName+" when present)")
	pf.StringP("output", "o", trace.DefaultOutputPath, `trace log path ("-" for stderr)`)
	pf.String("verbosity", "annotated", "record detail (terse|annotated|full)")
	pf.String("format", "auto", "trace log format (auto|text|ndjson)")
	pf.Int("ring-size", 256, "recent records kept for crash reports (0 disables)")
	pf.String("log-level", "info", "operational log level (debug|info|warn|error|none)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Bool("metrics", false, "print metric counters at exit")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
	return root
}

// main runs the root command. Errors exit with status 1; fatal tracer
// conditions exit with status 2.
func main() {
	os.Exit(execute(rootCmd, os.Stderr))
}

func execute(root *cobra.Command, stderr io.Writer) (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fe, ok := trace.AsFatal(r)
		if !ok {
			panic(r)
		}
		reportFatal(stderr, fe)
		code = exitFatal
	}()

	if err := root.Execute(); err != nil {
		var fe *trace.FatalError
		if errors.As(err, &fe) {
			reportFatal(stderr, fe)
			return exitFatal
		}
		fmt.Fprintf(stderr, "bbtrace: %v\n", err)
		return exitUsage
	}
	return 0
}

func reportFatal(w io.Writer, fe *trace.FatalError) {
	fmt.Fprintf(w, "bbtrace: fatal: %v\n", fe)
	if activeClient != nil {
		if err := activeClient.CrashDump(w); err != nil {
			fmt.Fprintf(w, "bbtrace: crash dump: %v\n", err)
		}
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
