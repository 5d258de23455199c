package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepp5/catrack/internal/soundclient"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var (
		baseURL  string
		mediaIDs []string
		workers  int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Score clips concurrently against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			key, err := ctx.key()
			if err != nil {
				return err
			}
			ids := append(append([]string(nil), mediaIDs...), args...)
			if len(ids) == 0 {
				return fmt.Errorf("no media IDs given; use --media or positional arguments")
			}
			if baseURL == "" {
				baseURL = serverURL(cfg.Addr)
			}

			client := soundclient.New(baseURL, soundclient.WithTimeout(timeout))
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("server %s unreachable: %w", baseURL, err)
			}
			stats := client.Probe(cmd.Context(), key, ids, workers)

			if ctx.flags.json {
				return writeJSON(cmd, probeJSON(stats))
			}
			rows := make([][]string, 0, len(stats.Results))
			for _, r := range stats.Results {
				if r.Err != nil {
					rows = append(rows, []string{r.MediaID, "-", "-", "error: " + r.Err.Error()})
					continue
				}
				rows = append(rows, []string{
					r.MediaID,
					formatScore(r.Result.AnomalyScore),
					formatScore(r.Result.Threshold),
					r.Result.PredictedLabel,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Media", "Score", "Threshold", "Label"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d submitted, %d good, %d bad, %d failed in %s\n",
				stats.Submitted, stats.Good, stats.Bad, stats.Failed, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Server base URL (defaults to the configured addr on localhost)")
	cmd.Flags().StringArrayVar(&mediaIDs, "media", nil, "Media ID to score (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent requests")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Per-request timeout")
	return cmd
}

// serverURL turns a listen address such as ":9080" into a dialable URL.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

type probeResultJSON struct {
	MediaID        string  `json:"media_id"`
	AnomalyScore   float64 `json:"anomaly_score,omitempty"`
	Threshold      float64 `json:"threshold,omitempty"`
	PredictedLabel string  `json:"predicted_label,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type probeSummaryJSON struct {
	Submitted  int               `json:"submitted"`
	Good       int               `json:"good"`
	Bad        int               `json:"bad"`
	Failed     int               `json:"failed"`
	DurationMS int64             `json:"duration_ms"`
	Results    []probeResultJSON `json:"results"`
}

func probeJSON(stats soundclient.ProbeStats) probeSummaryJSON {
	out := probeSummaryJSON{
		Submitted:  stats.Submitted,
		Good:       stats.Good,
		Bad:        stats.Bad,
		Failed:     stats.Failed,
		DurationMS: stats.Duration.Milliseconds(),
		Results:    make([]probeResultJSON, 0, len(stats.Results)),
	}
	for _, r := range stats.Results {
		item := probeResultJSON{MediaID: r.MediaID}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else {
			item.AnomalyScore = r.Result.AnomalyScore
			item.Threshold = r.Result.Threshold
			item.PredictedLabel = r.Result.PredictedLabel
		}
		out.Results = append(out.Results, item)
	}
	return out
}
