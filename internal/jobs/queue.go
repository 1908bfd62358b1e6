package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/worldgraph/ace/internal/ingestion"
	"github.com/worldgraph/ace/pkg/types"
)

// Submission is one accepted ingestion request.
type Submission struct {
	JobID    string
	SourceID string
	Text     string
	Metadata map[string]any
}

// Queue accepts ingestion submissions, acknowledges them immediately, and
// dispatches to a bounded pool of worker goroutines that run the EDC
// pipeline. A full queue-and-pool pair rejects new submissions with a
// retry-after duration instead of blocking the caller.
type Queue struct {
	tracker  *Tracker
	pipeline *ingestion.Pipeline
	submissions chan Submission
	retryAfter  time.Duration
}

// NewQueue starts workers goroutines consuming a channel buffered to
// capacity. Call Close to stop accepting new work and let in-flight jobs
// drain.
func NewQueue(pipeline *ingestion.Pipeline, tracker *Tracker, workers, capacity int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = workers
	}

	q := &Queue{
		tracker:     tracker,
		pipeline:    pipeline,
		submissions: make(chan Submission, capacity),
		retryAfter:  2 * time.Second,
	}

	for i := 0; i < workers; i++ {
		go q.worker()
	}

	return q
}

// Submit validates and enqueues text for ingestion, returning the assigned
// job id. A missing text is a synchronous KindValidation error; a full
// queue returns a non-zero retry-after duration together with an error, so
// the caller can back off and resubmit.
func (q *Queue) Submit(ctx context.Context, sourceID, text string, metadata map[string]any) (jobID string, retryAfter time.Duration, err error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, types.NewError(types.KindValidation, "submission text must not be empty", nil)
	}

	jobID = uuid.NewString()
	q.tracker.create(jobID)

	sub := Submission{JobID: jobID, SourceID: sourceID, Text: text, Metadata: metadata}

	select {
	case q.submissions <- sub:
		return jobID, 0, nil
	default:
		// Both the pool and the buffer are saturated; roll back the record
		// we just created rather than leaving an orphaned "pending" job that
		// will never be picked up.
		q.tracker.delete(jobID)
		return "", q.retryAfter, fmt.Errorf("jobs: queue saturated, retry after %s", q.retryAfter)
	}
}

// Close stops accepting new submissions. Workers finish draining whatever
// is already buffered, then exit.
func (q *Queue) Close() {
	close(q.submissions)
}

func (q *Queue) worker() {
	for sub := range q.submissions {
		q.process(sub)
	}
}

func (q *Queue) process(sub Submission) {
	rec, ok := q.tracker.get(sub.JobID)
	if !ok {
		return
	}
	rec.setRunning()

	result, err := q.pipeline.Run(context.Background(), sub.SourceID, sub.Text, sub.Metadata)
	if err != nil {
		rec.complete(StatusFailed, 0, 0, nil, 0, []string{err.Error()})
		return
	}

	stageMS := make(map[string]int64, len(result.Timings))
	var totalMS int64
	for _, t := range result.Timings {
		ms := t.Duration.Milliseconds()
		stageMS[t.Stage] = ms
		totalMS += ms
	}

	errs := append([]string{}, result.Errors...)
	errs = append(errs, result.Warnings...)

	rec.complete(Status(result.Status), result.EntitiesCreated, result.RelationshipsCreated, stageMS, totalMS, errs)
}
