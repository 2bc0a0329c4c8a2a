package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
	"pdfrealm/internal/usecase/jobconsole"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect notes processing jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		sessionID, _ := cmd.Flags().GetString("session")
		statuses, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := ports.JobFilter{SessionID: sessionID, Limit: limit}
		for _, raw := range statuses {
			filter.Statuses = append(filter.Statuses, domain.JobStatus(strings.ToUpper(strings.TrimSpace(raw))))
		}

		jobs, err := deps.Notes.ListJobs(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list jobs")
		}

		if asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(jobs); err != nil {
				return errs.Wrap(err, "encode jobs")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "JOB\tSESSION\tSTATUS\tPROGRESS\tUPDATED\tERROR")
		for _, job := range jobs {
			errText := ""
			if job.Error != nil {
				errText = *job.Error
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.SessionID, job.Status, job.Progress,
				job.UpdatedAt.Local().Format(time.DateTime), errText)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write jobs output")
		}
		return nil
	}),
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the jobs terminal console",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		sessionID, _ := cmd.Flags().GetString("session")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := jobconsole.NewJobsModel(ctx, deps.Notes, jobconsole.Options{
			SessionID:       sessionID,
			StatusFilter:    status,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run jobs console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsWatchCmd)

	jobsListCmd.Flags().String("session", "", "Only jobs for this session id")
	jobsListCmd.Flags().StringSlice("status", nil, "Status filter (QUEUED|RUNNING|READY|FAILED), repeatable")
	jobsListCmd.Flags().Int("limit", 50, "Maximum rows")
	jobsListCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	jobsWatchCmd.Flags().String("session", "", "Only jobs for this session id")
	jobsWatchCmd.Flags().String("status", "all", "Initial filter (all|active|QUEUED|RUNNING|READY|FAILED)")
	jobsWatchCmd.Flags().Int("limit", 50, "Maximum rows")
	jobsWatchCmd.Flags().Duration("refresh-interval", 2*time.Second, "Auto refresh interval")
}
