package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/embedd/internal/pipeline"
)

func newHealthCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running embedd server",
		Long: `Query GET /health on a running server and print the result.

Examples:
  # Check the local server
  embedd health

  # Check a different server
  embedd health --server http://embedd.internal:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := checkHealth(serverURL, timeout)
			if h != nil {
				if werr := writeJSON(cmd.OutOrStdout(), h); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "embedd server URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout; the probe runs the model")
	return cmd
}

// checkHealth fetches the health report. A report with ok=false is returned
// together with an error.
func checkHealth(serverURL string, timeout time.Duration) (*pipeline.Health, error) {
	url := strings.TrimRight(serverURL, "/") + "/health"

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var h pipeline.Health
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK || !h.OK {
		reason := h.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return &h, fmt.Errorf("server unhealthy (status %d): %s", resp.StatusCode, reason)
	}
	return &h, nil
}
