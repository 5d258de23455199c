package soundclient

import (
	"context"
	"sync"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/types"
)

// ProbeResult is the answer for one media ID.
type ProbeResult struct {
	MediaID string
	Result  types.CheckResult
	Err     error
}

// ProbeStats summarises a probe run.
type ProbeStats struct {
	Submitted int
	Good      int
	Bad       int
	Failed    int
	Duration  time.Duration
	// Results are in the order the media IDs were given.
	Results []ProbeResult
}

// Probe checks every media ID against the baseline for key using workers
// concurrent requests.
func (c *Client) Probe(ctx context.Context, key model.Key, mediaIDs []string, workers int) ProbeStats {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	results := make([]ProbeResult, len(mediaIDs))

	idx := make(chan int, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				res, err := c.Check(ctx, mediaIDs[i], key)
				results[i] = ProbeResult{MediaID: mediaIDs[i], Result: res, Err: err}
			}
		}()
	}

	go func() {
		defer close(idx)
		for i := range mediaIDs {
			select {
			case <-ctx.Done():
				return
			case idx <- i:
			}
		}
	}()
	wg.Wait()

	stats := ProbeStats{Duration: time.Since(start), Results: results}
	for i, r := range results {
		if r.MediaID == "" {
			// never dispatched because ctx ended
			results[i] = ProbeResult{MediaID: mediaIDs[i], Err: ctx.Err()}
			stats.Failed++
			continue
		}
		stats.Submitted++
		switch {
		case r.Err != nil:
			stats.Failed++
		case r.Result.PredictedLabel == string(model.LabelBad):
			stats.Bad++
		default:
			stats.Good++
		}
	}
	return stats
}
