package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelvault/internal/media"
	"reelvault/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Preview which files an import would pick up",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			result, err := scanner.Expand(args)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(result.Files))
			var totalBytes int64
			for _, file := range result.Files {
				size := ""
				if info, err := os.Stat(file); err == nil {
					size = humanize.Bytes(uint64(info.Size()))
					totalBytes += info.Size()
				}
				rows = append(rows, []string{file, string(media.KindForPath(file)), size})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Path", "Kind", "Size"},
				rows,
				2,
			))
			fmt.Fprintf(out, "%d files, %s\n", result.TotalCount, humanize.Bytes(uint64(totalBytes)))
			return nil
		},
	}
}
