package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// healthReport mirrors the wire shape of the ops server's /health
// endpoint. Durations arrive as float milliseconds.
type healthReport struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []healthCheck `json:"checks"`
	Duration  float64       `json:"total_duration_ms"`
}

type healthCheck struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration_ms"`
}

// newHealthCommand probes a running touille deployment over HTTP. It
// exits nonzero unless the service reports healthy, which makes it
// usable as a container health check without shipping curl.
func newHealthCommand(configFlag *string) *cobra.Command {
	var (
		url     string
		timeout time.Duration
		retries int
		delay   time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running touille server",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := url
			if target == "" {
				target = defaultHealthURL(configFlag)
			}

			client := &http.Client{Timeout: timeout}

			var lastErr error
			for attempt := 0; attempt <= retries; attempt++ {
				if attempt > 0 {
					time.Sleep(delay)
				}
				report, err := fetchHealth(client, target)
				if err != nil {
					lastErr = err
					continue
				}
				return printHealth(cmd, report, asJSON)
			}
			return fmt.Errorf("health check unreachable after %d attempts: %w", retries+1, lastErr)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Health endpoint URL (default derived from configuration)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries before giving up")
	cmd.Flags().DurationVar(&delay, "retry-delay", time.Second, "Delay between retries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw health report as JSON")

	return cmd
}

// defaultHealthURL derives the probe target from configuration when
// available, falling back to the stock ops port.
func defaultHealthURL(configFlag *string) string {
	if env := os.Getenv("TOUILLE_HEALTH_URL"); env != "" {
		return env
	}
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return "http://localhost:9090/health"
	}
	path := cfg.Monitoring.HealthCheckPath
	if path == "" {
		path = "/health"
	}
	return fmt.Sprintf("http://localhost:%d%s", cfg.Monitoring.MetricsPort, path)
}

func fetchHealth(client *http.Client, url string) (*healthReport, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &report, nil
}

func printHealth(cmd *cobra.Command, report *healthReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  version %s  (%.0fms)\n", report.Status, report.Version, report.Duration)
		for _, check := range report.Checks {
			line := fmt.Sprintf("  %-12s %s", check.Name, check.Status)
			if check.Message != "" {
				line += "  " + check.Message
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}

	if report.Status != "healthy" {
		return fmt.Errorf("service reported %s", report.Status)
	}
	return nil
}
