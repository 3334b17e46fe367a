package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/switchboard/task"
)

var (
	tasksIDs  bool
	tasksDue  string
	tasksDesc string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and edit the task list without a model",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		tasks, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), task.Summarize(tasks, tasksIDs))
		return nil
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title...>",
	Short: "Create a pending task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		in := task.Input{Title: strings.Join(args, " ")}
		if tasksDesc != "" {
			in.Description = &tasksDesc
		}
		if tasksDue != "" {
			in.DueDate = &tasksDue
		}
		t, err := store.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t.ID)
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		done := task.StatusDone
		t, err := store.Update(cmd.Context(), args[0], task.Patch{Status: &done})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), task.Format(t))
		return nil
	},
}

var tasksRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		t, err := store.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", t.ID)
		return nil
	},
}

var tasksWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reprint the task list whenever the task file changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		store := task.NewFileStore(cfg.TasksPath(), task.WithLogger(logger))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		show := func() {
			tasks, err := store.List(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				return
			}
			fmt.Fprintln(out, task.Summarize(tasks, tasksIDs))
		}
		show()
		return task.Watch(ctx, store.Path(), logger, show)
	},
}

func init() {
	tasksCmd.PersistentFlags().BoolVar(&tasksIDs, "ids", false, "include task ids")
	tasksAddCmd.Flags().StringVar(&tasksDue, "due", "", "due date, free text")
	tasksAddCmd.Flags().StringVar(&tasksDesc, "description", "", "task description")

	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksDoneCmd, tasksRmCmd, tasksWatchCmd)
}

func openStore(cmd *cobra.Command) (*task.FileStore, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	return task.NewFileStore(cfg.TasksPath(), task.WithLogger(logger)), nil
}
