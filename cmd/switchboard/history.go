package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/transcript"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or print one run's transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		path := cfg.TranscriptPath()
		if path == "" {
			return errors.New("transcripts are disabled (transcript_db: off)")
		}
		db, err := transcript.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		rec := transcript.NewRecorder(db, nil, logger)

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			runs, err := rec.Runs(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			return printRuns(out, runs)
		}

		run, err := rec.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries, err := rec.ByRun(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		printEntries(out, run, entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}

func printRuns(w io.Writer, runs []transcript.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTEPS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Status, r.Steps, r.StartedAt)
	}
	return tw.Flush()
}

func printEntries(w io.Writer, run transcript.Run, entries []transcript.Entry) {
	dimColor.Fprintf(w, "run %s %s (%d steps)\n", run.ID, run.Status, run.Steps) //nolint:errcheck
	if run.Error != "" {
		errorColor.Fprintf(w, "error: %s\n", run.Error) //nolint:errcheck
	}
	for _, e := range entries {
		fmt.Fprintln(w, formatMessage(provider.Message{
			Role:       e.Role,
			Name:       e.Name,
			Content:    e.Content,
			ToolCalls:  e.ToolCalls,
			ToolCallID: e.ToolCallID,
			IsError:    e.IsError,
		}))
	}
}
