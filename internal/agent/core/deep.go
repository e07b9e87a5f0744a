package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brieferhq/briefer/provider"
)

// ErrDeepTimeout marks a background deep research job that did not reach a
// terminal status within the wait ceiling.
type ErrDeepTimeout struct {
	JobID   string
	Elapsed time.Duration
}

func (e ErrDeepTimeout) Error() string {
	return fmt.Sprintf("deep research job %s still running after %s", e.JobID, e.Elapsed)
}

// DeepClient drives background deep research jobs over the responses API and
// implements DeepResearcher.
type DeepClient struct {
	backend      provider.BackgroundProvider
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *log.Logger
	now          func() time.Time
	sleep        func(time.Duration)
}

func NewDeepClient(backend provider.BackgroundProvider, model string, maxWait time.Duration, logger *log.Logger) *DeepClient {
	if maxWait <= 0 {
		maxWait = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[DEEP] ", log.LstdFlags)
	}
	return &DeepClient{
		backend:      backend,
		model:        model,
		pollInterval: 2 * time.Second,
		maxWait:      maxWait,
		logger:       logger,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Start submits a background job and returns its id.
func (d *DeepClient) Start(ctx context.Context, query string) (string, error) {
	id, err := d.backend.StartResponse(ctx, d.model, query)
	if err != nil {
		return "", fmt.Errorf("failed to start deep research: %w", err)
	}
	d.logger.Printf("started deep research job %s", id)
	return id, nil
}

// Fetch reads the current snapshot of a background job.
func (d *DeepClient) Fetch(ctx context.Context, id string) (DeepJob, error) {
	snap, err := d.backend.FetchResponse(ctx, id)
	if err != nil {
		return DeepJob{}, fmt.Errorf("failed to fetch deep research job %s: %w", id, err)
	}
	return snapshotToJob(snap), nil
}

func snapshotToJob(snap provider.ResponseSnapshot) DeepJob {
	job := DeepJob{ID: snap.ID, Status: snap.Status, Notes: snap.Notes}
	for _, c := range snap.Citations {
		job.Results = append(job.Results, SearchResult{
			Title:      c.Title,
			URL:        c.URL,
			Snippet:    c.Snippet,
			SourceType: c.SourceType,
		})
	}
	if snap.OutputText != "" {
		job.Notes = append(job.Notes, snap.OutputText)
	}
	return job
}

func terminalJobStatus(status string) (done, failed bool) {
	switch status {
	case "completed", "succeeded":
		return true, false
	case "failed", "error", "cancelled":
		return true, true
	default:
		return false, false
	}
}

// RunSync starts a job and polls it to completion, returning the collected
// results and notes. A job that outlives the wait ceiling returns
// ErrDeepTimeout so the caller can fall back to the synchronous pipeline.
func (d *DeepClient) RunSync(ctx context.Context, query string, maxResults int) ([]SearchResult, []string, error) {
	id, err := d.Start(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	deadline := d.now().Add(d.maxWait)
	seen := make(map[string]struct{})
	var notes []string

	for {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		job, err := d.Fetch(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, note := range job.Notes {
			if _, ok := seen[note]; ok {
				continue
			}
			seen[note] = struct{}{}
			notes = append(notes, note)
		}

		done, failed := terminalJobStatus(job.Status)
		if done {
			if failed {
				return nil, notes, fmt.Errorf("deep research job %s ended with status %q", id, job.Status)
			}
			results := job.Results
			if maxResults > 0 && len(results) > maxResults {
				results = results[:maxResults]
			}
			d.logger.Printf("deep research job %s completed with %d results", id, len(results))
			return results, notes, nil
		}
		if d.now().After(deadline) {
			return nil, notes, ErrDeepTimeout{JobID: id, Elapsed: d.maxWait}
		}
		d.sleep(d.pollInterval)
	}
}
