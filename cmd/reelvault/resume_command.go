package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelvault/internal/importer"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [session-id]",
		Short: "Resume an interrupted import session",
		Long:  "Resume an interrupted import session from its last completed step. Without an argument, lists sessions eligible for resumption.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				sessions, err := st.ResumableSessions(cmd.Context())
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no resumable sessions")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					rows = append(rows, []string{
						session.ID,
						string(session.Status),
						fmt.Sprintf("%d/%d", session.ProcessedFiles, session.TotalFiles),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Session", "Status", "Files"},
					rows,
					2,
				))
				return nil
			}

			matcher, err := ctx.newMatcher(cmd.Context(), st)
			if err != nil {
				return err
			}
			orch := importer.New(cfg, st, matcher, ctx.logger())
			session, summary, err := orch.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSummary(cmd, session, summary)
			return nil
		},
	}
}
