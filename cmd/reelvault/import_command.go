package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"reelvault/internal/importer"
	"reelvault/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		projectName string
		copyManaged bool
		footageType string
	)

	cmd := &cobra.Command{
		Use:   "import [paths...]",
		Short: "Import footage files or directories into the library",
		Args:  cobra.MinimumNArgs(1),
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

			var projectID *int64
			if projectName != "" {
				project, err := findOrCreateProject(cmd, st, projectName)
				if err != nil {
					return err
				}
				projectID = &project.ID
			}

			matcher, err := ctx.newMatcher(cmd.Context(), st)
			if err != nil {
				return err
			}

			interactive := isatty.IsTerminal(os.Stdout.Fd())
			opts := []importer.Option{}
			if interactive {
				opts = append(opts, importer.WithProgress(func(p importer.Progress) {
					fmt.Fprintf(cmd.OutOrStdout(), "\r[%d/%d] %s", p.Processed, p.Total, p.CurrentFile)
				}))
			}

			orch := importer.New(cfg, st, matcher, ctx.logger(), opts...)

			// First interrupt pauses after the file in flight; a second one
			// cancels the session.
			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			interrupts := make(chan os.Signal, 2)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)
			go func() {
				select {
				case <-interrupts:
					fmt.Fprintln(cmd.ErrOrStderr(), "\npausing after the current file (interrupt again to cancel)")
					orch.RequestPause()
				case <-runCtx.Done():
					return
				}
				select {
				case <-interrupts:
					cancel()
				case <-runCtx.Done():
				}
			}()

			session, summary, err := orch.Start(runCtx, importer.Options{
				Paths:           args,
				ProjectID:       projectID,
				CopyToManaged:   copyManaged,
				FootageOverride: footageType,
			})
			if interactive {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err != nil {
				if session != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "session %s can be resumed with: reelvault resume %s\n", session.ID, session.ID)
				}
				return err
			}

			printSummary(cmd, session, summary)
			if session.Status == store.SessionPaused {
				fmt.Fprintf(cmd.OutOrStdout(), "resume with: reelvault resume %s\n", session.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectName, "project", "p", "", "Associate imported files with a project")
	cmd.Flags().BoolVar(&copyManaged, "copy", false, "Copy originals into managed storage")
	cmd.Flags().StringVar(&footageType, "footage", "", "Footage type override (preparation, main_event, rehearsal, other)")

	return cmd
}

func findOrCreateProject(cmd *cobra.Command, st *store.Store, name string) (*store.Project, error) {
	project, err := st.GetProjectByName(cmd.Context(), name)
	if err == nil {
		return project, nil
	}
	project, err = st.CreateProject(cmd.Context(), &store.Project{Name: name})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created project %q (id %d)\n", name, project.ID)
	return project, nil
}

func printSummary(cmd *cobra.Command, session *store.ImportSession, summary *importer.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s: %s\n", session.ID, session.Status)
	fmt.Fprintln(out, renderTable(
		[]string{"Total", "Imported", "Duplicates", "Skipped", "Errors", "Bytes"},
		[][]string{{
			fmt.Sprintf("%d", summary.Total),
			fmt.Sprintf("%d", summary.Imported),
			fmt.Sprintf("%d", summary.Duplicates),
			fmt.Sprintf("%d", summary.Skipped),
			fmt.Sprintf("%d", summary.Errors),
			humanize.Bytes(uint64(session.ProcessedBytes)),
		}},
		0, 1, 2, 3, 4, 5,
	))
	for _, file := range summary.Files {
		if file.Error != "" {
			fmt.Fprintf(out, "error: %s: %s\n", file.Path, file.Error)
		}
	}
}
