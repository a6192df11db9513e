package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bbtrace/internal/blockcache"
	"bbtrace/internal/host"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [flags] <dump.mp>",
		Short: "Print the blocks of a block cache dump",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().Bool("summary", false, "print only the dump header")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	summary, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return fmt.Errorf("failed to get summary flag: %w", err)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := blockcache.ReadDump(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return printDump(cmd.OutOrStdout(), d, summary)
}

func printDump(out io.Writer, d *blockcache.Dump, summary bool) error {
	if _, err := fmt.Fprintf(out, "dump: %d blocks, %d buckets, created %s\n",
		len(d.Blocks), d.Buckets, d.Created.UTC().Format("2006-01-02T15:04:05Z")); err != nil {
		return err
	}
	if summary {
		return nil
	}
	for _, b := range d.Blocks {
		if _, err := fmt.Fprintf(out, "\n%s:\n", host.Addr(b.Addr)); err != nil {
			return err
		}
		for line := range strings.Lines(b.Text) {
			if _, err := fmt.Fprintf(out, "    %s", line); err != nil {
				return err
			}
		}
	}
	return nil
}
