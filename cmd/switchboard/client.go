package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/switchboard/server/api"
)

const defaultServer = "http://localhost:9090"

var serverURL string

// Client talks to a running switchboard server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL:    strings.TrimRight(serverURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// do sends body as JSON (when non-nil) and decodes the reply into v. Error
// statuses are returned as errors unless v is an InvokeResponse, which
// carries the failure itself.
func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	_, tolerant := v.(*api.InvokeResponse)
	if resp.StatusCode >= 400 && !(tolerant && resp.StatusCode >= 500) {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

var askGoal string

var askCmd = &cobra.Command{
	Use:   "ask <message...>",
	Short: "Send a message to a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp api.InvokeResponse
		err := newClient().do(cmd.Context(), http.MethodPost, "/api/invoke",
			api.InvokeRequest{Message: strings.Join(args, " "), Goal: askGoal}, &resp)
		if err != nil {
			return err
		}
		if resp.Result != nil {
			printTranscript(cmd.OutOrStdout(), resp.Result, 1)
		}
		if resp.Error != "" {
			return fmt.Errorf("run failed: %s", resp.Error)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running server's status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var status map[string]any
		if err := newClient().do(cmd.Context(), http.MethodGet, "/api/status", nil, &status); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, k := range []string{"status", "version", "search", "transcripts", "tasks", "uptime_seconds"} {
			if v, ok := status[k]; ok {
				fmt.Fprintf(out, "%-15s %v\n", k+":", v)
			}
		}
		return nil
	},
}

func init() {
	def := defaultServer
	if env := os.Getenv("SWITCHBOARD_SERVER"); env != "" {
		def = env
	}
	for _, c := range []*cobra.Command{askCmd, statusCmd} {
		c.Flags().StringVar(&serverURL, "server", def, "switchboard server URL (or $SWITCHBOARD_SERVER)")
	}
	askCmd.Flags().StringVar(&askGoal, "goal", "", "overall goal appended to every agent prompt")
}
