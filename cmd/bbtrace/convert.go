package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bbtrace/internal/session"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [flags] <session.toml>",
		Short: "Convert a TOML session to msgpack",
		Args:  cobra.ExactArgs(1),
		RunE:  runConvert,
	}
	cmd.Flags().StringP("out", "O", "", "output path (default: input with .mp extension)")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	in := args[0]
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".mp"
	}
	if out == in {
		return fmt.Errorf("refusing to overwrite input %s", in)
	}

	s, err := session.Load(in)
	if err != nil {
		return err
	}
	// Write to a temp file and rename so a failed encode leaves no partial output.
	tmp, err := os.CreateTemp(filepath.Dir(out), ".bbtrace-session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := session.Encode(tmp, s); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, out); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	}
	return nil
}
