package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List import sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(sessions))
			for _, session := range sessions {
				rows = append(rows, []string{
					session.ID,
					string(session.Status),
					fmt.Sprintf("%d/%d", session.ProcessedFiles, session.TotalFiles),
					fmt.Sprintf("%d", session.DuplicateFiles),
					fmt.Sprintf("%d", session.ErrorFiles),
					humanize.Time(session.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Session", "Status", "Files", "Dups", "Errors", "Started"},
				rows,
				2, 3, 4,
			))
			return nil
		},
	}
}
