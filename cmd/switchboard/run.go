package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/switchboard/graph"
	"github.com/GoCodeAlone/switchboard/internal/bootstrap"
	"github.com/GoCodeAlone/switchboard/provider"
)

var (
	runGoal string
	runJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run <message...>",
	Short: "Route one message through the agents and print the transcript",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		app, err := bootstrap.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		input := []provider.Message{{Role: provider.RoleUser, Content: strings.Join(args, " ")}}
		res, err := app.Graph.Invoke(cmd.Context(), input, runGoal)
		if res != nil {
			out := cmd.OutOrStdout()
			if runJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			} else {
				printTranscript(out, res, len(input))
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runGoal, "goal", "", "overall goal appended to every agent prompt")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run result as JSON")
}

var (
	agentColor = color.New(color.FgCyan, color.Bold)
	toolColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

var titleCase = cases.Title(language.English)

// printTranscript writes the messages the run added after the input.
func printTranscript(w io.Writer, res *graph.Result, skip int) {
	dimColor.Fprintf(w, "run %s (%d steps)\n", res.RunID, res.Steps) //nolint:errcheck
	msgs := res.State.Messages
	if skip > len(msgs) {
		skip = len(msgs)
	}
	for _, m := range msgs[skip:] {
		fmt.Fprintln(w, formatMessage(m))
	}
}

// formatMessage renders one message as a labelled block.
func formatMessage(m provider.Message) string {
	label := roleLabel(m)
	var b strings.Builder
	switch {
	case m.Role == provider.RoleTool && m.IsError:
		b.WriteString(errorColor.Sprint(label))
	case m.Role == provider.RoleTool:
		b.WriteString(toolColor.Sprint(label))
	default:
		b.WriteString(agentColor.Sprint(label))
	}
	b.WriteString("\n")
	if text := strings.TrimSpace(m.Text()); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	for _, c := range m.ToolCalls {
		b.WriteString(dimColor.Sprintf("-> %s %s", c.Name, argsJSON(c.Arguments)))
		b.WriteString("\n")
	}
	return b.String()
}

func roleLabel(m provider.Message) string {
	role := titleCase.String(string(m.Role))
	if m.Name == "" {
		return role
	}
	return fmt.Sprintf("%s (%s)", role, m.Name)
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{?}"
	}
	return string(data)
}
