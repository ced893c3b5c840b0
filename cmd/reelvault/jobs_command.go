package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelvault/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage the background job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newJobsStatusCommand(ctx))
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	return cmd
}

func newJobsStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Pending", "Processing", "Complete", "Error", "Dead", "Total"},
				[][]string{{
					strconv.FormatInt(stats.Pending, 10),
					strconv.FormatInt(stats.Processing, 10),
					strconv.FormatInt(stats.Complete, 10),
					strconv.FormatInt(stats.Error, 10),
					strconv.FormatInt(stats.Dead, 10),
					strconv.FormatInt(stats.Total(), 10),
				}},
				0, 1, 2, 3, 4, 5,
			))
			return nil
		},
	}
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var statuses []store.JobStatus
			if statusFlag != "" {
				status, err := store.ParseJobStatus(statusFlag)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			jobList, err := st.ListJobs(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(jobList))
			for _, job := range jobList {
				dependsOn := ""
				if job.DependsOn != nil {
					dependsOn = strconv.FormatInt(*job.DependsOn, 10)
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.JobType,
					string(job.Status),
					strconv.Itoa(job.Priority),
					fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
					dependsOn,
					job.ErrorMessage,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "Status", "Pri", "Retries", "Needs", "Error"},
				rows,
				0, 3, 4, 5,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, complete, error, dead)")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Revive a dead or errored job with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RetryJob(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d requeued\n", id)
			return nil
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.CancelJob(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d cancelled\n", id)
			return nil
		},
	}
}
