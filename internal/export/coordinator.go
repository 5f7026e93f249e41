package export

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tabchat/domain/chat"
	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/ports"
)

// FormatState tracks one requested format through its lifecycle
type FormatState string

const (
	FormatQueued    FormatState = "queued"
	FormatRunning   FormatState = "running"
	FormatCompleted FormatState = "completed"
	FormatFailed    FormatState = "failed"
)

// JobState is the consolidated state of an export job. A job is terminal
// only when every requested format is terminal; it is failed when any format
// failed, but partial results for succeeded formats are still surfaced.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// FormatResult is the per-format outcome
type FormatResult struct {
	State   FormatState `json:"state"`
	Locator string      `json:"locator,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type job struct {
	id          core.JobID
	formats     []chat.Format
	snapshot    *table.Dataset
	results     map[chat.Format]*FormatResult
	state       JobState
	createdAt   time.Time
	completedAt time.Time
}

// JobStatus is an immutable snapshot of a job for callers
type JobStatus struct {
	ID          string                        `json:"job_id"`
	State       JobState                      `json:"state"`
	Formats     map[chat.Format]FormatResult  `json:"formats"`
	CreatedAt   time.Time                     `json:"created_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
}

// Coordinator owns export jobs: it fans each requested format out to its
// renderer collaborator, tracks per-format completion, and retains finished
// jobs until the cleanup horizon. Submissions return immediately; the
// channel is notified via the onDone callback instead of blocking.
type Coordinator struct {
	mu        sync.RWMutex
	jobs      map[core.JobID]*job
	renderers map[chat.Format]ports.Renderer
	retention time.Duration
}

// NewCoordinator builds a coordinator over the given renderer collaborators
func NewCoordinator(renderers []ports.Renderer, retention time.Duration) *Coordinator {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	byFormat := make(map[chat.Format]ports.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &Coordinator{
		jobs:      make(map[core.JobID]*job),
		renderers: byFormat,
		retention: retention,
	}
}

// Submit registers a job and starts rendering in the background. The job is
// keyed by its id and independent of any channel lifetime: closing the
// session's connection does not cancel it.
func (c *Coordinator) Submit(snapshot *table.Dataset, formats []chat.Format, title string, options map[string]string, onDone func(JobStatus)) (core.JobID, error) {
	if len(formats) == 0 {
		return "", fmt.Errorf("%w: no formats requested", core.ErrUnsupportedFormat)
	}
	for _, f := range formats {
		if _, ok := c.renderers[f]; !ok {
			return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, f)
		}
	}

	j := &job{
		id:        core.NewJobID(),
		formats:   formats,
		snapshot:  snapshot,
		results:   make(map[chat.Format]*FormatResult, len(formats)),
		state:     JobQueued,
		createdAt: time.Now(),
	}
	for _, f := range formats {
		j.results[f] = &FormatResult{State: FormatQueued}
	}

	c.mu.Lock()
	c.jobs[j.id] = j
	c.mu.Unlock()

	log.Printf("[ExportCoordinator] Submitted job %s for formats %v (%d rows)", j.id, formats, snapshot.RowCount())
	go c.run(j, title, options, onDone)

	return j.id, nil
}

// run executes every format render concurrently. One format's failure never
// aborts the others, so render closures record failures instead of
// returning errors into the group.
func (c *Coordinator) run(j *job, title string, options map[string]string, onDone func(JobStatus)) {
	c.setJobState(j, JobRunning)

	// Deliberately not tied to the submitting request: jobs outlive both
	// the channel and the session that spawned them.
	ctx := context.Background()

	var g errgroup.Group
	for _, format := range j.formats {
		format := format
		g.Go(func() error {
			c.setFormatState(j, format, FormatRunning, "", "")

			renderer := c.renderers[format]
			locator, err := renderer.Render(ctx, ports.RenderRequest{
				Dataset: j.snapshot,
				Title:   title,
				Options: options,
			})
			if err != nil {
				log.Printf("[ExportCoordinator] Job %s format %s failed: %v", j.id, format, err)
				c.setFormatState(j, format, FormatFailed, "", err.Error())
				return nil
			}

			log.Printf("[ExportCoordinator] Job %s format %s completed: %s", j.id, format, locator)
			c.setFormatState(j, format, FormatCompleted, locator, "")
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	state := JobCompleted
	for _, r := range j.results {
		if r.State == FormatFailed {
			state = JobFailed
			break
		}
	}
	j.state = state
	j.completedAt = time.Now()
	status := c.statusLocked(j)
	c.mu.Unlock()

	log.Printf("[ExportCoordinator] Job %s finished with state %s", j.id, state)
	if onDone != nil {
		onDone(status)
	}
}

// Status returns a snapshot of the job's consolidated state
func (c *Coordinator) Status(id core.JobID) (JobStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[id]
	if !ok {
		return JobStatus{}, core.ErrJobNotFound
	}
	return c.statusLocked(j), nil
}

// Artifact returns the locator for one completed format of a job
func (c *Coordinator) Artifact(id core.JobID, format chat.Format) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[id]
	if !ok {
		return "", core.ErrJobNotFound
	}
	r, ok := j.results[format]
	if !ok {
		return "", fmt.Errorf("%w: %s not part of job %s", core.ErrUnsupportedFormat, format, id)
	}
	switch r.State {
	case FormatCompleted:
		return r.Locator, nil
	case FormatFailed:
		return "", fmt.Errorf("%w: %s", core.ErrArtifactFailed, r.Error)
	default:
		return "", core.ErrArtifactNotReady
	}
}

// Purge discards jobs (and thereby their artifact records) whose age exceeds
// the retention horizon, regardless of download status. Returns how many
// jobs were removed.
func (c *Coordinator) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, j := range c.jobs {
		ref := j.createdAt
		if !j.completedAt.IsZero() {
			ref = j.completedAt
		}
		if now.Sub(ref) > c.retention {
			delete(c.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[ExportCoordinator] Purged %d expired jobs", removed)
	}
	return removed
}

// StartJanitor purges expired jobs on a fixed interval until ctx is done
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.Purge(now)
			}
		}
	}()
}

func (c *Coordinator) setJobState(j *job, state JobState) {
	c.mu.Lock()
	j.state = state
	c.mu.Unlock()
}

func (c *Coordinator) setFormatState(j *job, format chat.Format, state FormatState, locator, errMsg string) {
	c.mu.Lock()
	j.results[format] = &FormatResult{State: state, Locator: locator, Error: errMsg}
	c.mu.Unlock()
}

// statusLocked must be called with c.mu held
func (c *Coordinator) statusLocked(j *job) JobStatus {
	formats := make(map[chat.Format]FormatResult, len(j.results))
	for f, r := range j.results {
		formats[f] = *r
	}
	status := JobStatus{
		ID:        j.id.String(),
		State:     j.state,
		Formats:   formats,
		CreatedAt: j.createdAt,
	}
	if !j.completedAt.IsZero() {
		t := j.completedAt
		status.CompletedAt = &t
	}
	return status
}
