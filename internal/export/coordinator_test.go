package export

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabchat/domain/chat"
	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/ports"
)

type stubRenderer struct {
	format  chat.Format
	locator string
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (r *stubRenderer) Format() chat.Format { return r.format }

func (r *stubRenderer) Render(ctx context.Context, req ports.RenderRequest) (string, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return "", r.err
	}
	return r.locator, nil
}

func testSnapshot(t *testing.T) *table.Dataset {
	t.Helper()
	ds, err := table.FromRecords([]string{"a"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)
	return ds
}

func waitForJob(t *testing.T, done <-chan JobStatus) JobStatus {
	t.Helper()
	select {
	case status := <-done:
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish in time")
		return JobStatus{}
	}
}

func TestSubmitRejectsUnknownFormat(t *testing.T) {
	c := NewCoordinator([]ports.Renderer{&stubRenderer{format: chat.FormatSpreadsheet}}, time.Hour)

	_, err := c.Submit(testSnapshot(t), []chat.Format{chat.FormatSlides}, "t", nil, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = c.Submit(testSnapshot(t), nil, "t", nil, nil)
	assert.Error(t, err)
}

func TestJobCompletesAllFormats(t *testing.T) {
	c := NewCoordinator([]ports.Renderer{
		&stubRenderer{format: chat.FormatSpreadsheet, locator: "/tmp/out.xlsx"},
		&stubRenderer{format: chat.FormatSlides, locator: "https://render/slides/1"},
	}, time.Hour)

	done := make(chan JobStatus, 1)
	id, err := c.Submit(testSnapshot(t), []chat.Format{chat.FormatSpreadsheet, chat.FormatSlides}, "t", nil,
		func(s JobStatus) { done <- s })
	require.NoError(t, err)

	status := waitForJob(t, done)
	assert.Equal(t, JobCompleted, status.State)
	assert.Equal(t, FormatCompleted, status.Formats[chat.FormatSpreadsheet].State)
	assert.Equal(t, FormatCompleted, status.Formats[chat.FormatSlides].State)
	assert.NotNil(t, status.CompletedAt)

	locator, err := c.Artifact(id, chat.FormatSpreadsheet)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.xlsx", locator)
}

func TestOneFormatFailingDoesNotAbortOthers(t *testing.T) {
	c := NewCoordinator([]ports.Renderer{
		&stubRenderer{format: chat.FormatSpreadsheet, locator: "/tmp/out.xlsx"},
		&stubRenderer{format: chat.FormatSlides, err: errors.New("render service down")},
	}, time.Hour)

	done := make(chan JobStatus, 1)
	id, err := c.Submit(testSnapshot(t), []chat.Format{chat.FormatSpreadsheet, chat.FormatSlides}, "t", nil,
		func(s JobStatus) { done <- s })
	require.NoError(t, err)

	status := waitForJob(t, done)
	assert.Equal(t, JobFailed, status.State)
	assert.Equal(t, FormatFailed, status.Formats[chat.FormatSlides].State)
	// The succeeded format's artifact is still available
	assert.Equal(t, FormatCompleted, status.Formats[chat.FormatSpreadsheet].State)

	locator, err := c.Artifact(id, chat.FormatSpreadsheet)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.xlsx", locator)

	_, err = c.Artifact(id, chat.FormatSlides)
	assert.ErrorIs(t, err, core.ErrArtifactFailed)
}

func TestArtifactNotReadyWhileRunning(t *testing.T) {
	c := NewCoordinator([]ports.Renderer{
		&stubRenderer{format: chat.FormatSpreadsheet, locator: "x", delay: 200 * time.Millisecond},
	}, time.Hour)

	done := make(chan JobStatus, 1)
	id, err := c.Submit(testSnapshot(t), []chat.Format{chat.FormatSpreadsheet}, "t", nil,
		func(s JobStatus) { done <- s })
	require.NoError(t, err)

	_, err = c.Artifact(id, chat.FormatSpreadsheet)
	assert.ErrorIs(t, err, core.ErrArtifactNotReady)

	waitForJob(t, done)
}

func TestStatusUnknownJob(t *testing.T) {
	c := NewCoordinator(nil, time.Hour)
	_, err := c.Status(core.NewJobID())
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestPurgeRemovesExpiredJobs(t *testing.T) {
	c := NewCoordinator([]ports.Renderer{
		&stubRenderer{format: chat.FormatSpreadsheet, locator: "x"},
	}, time.Hour)

	done := make(chan JobStatus, 1)
	id, err := c.Submit(testSnapshot(t), []chat.Format{chat.FormatSpreadsheet}, "t", nil,
		func(s JobStatus) { done <- s })
	require.NoError(t, err)
	waitForJob(t, done)

	// Within retention: job stays
	assert.Equal(t, 0, c.Purge(time.Now()))
	_, err = c.Status(id)
	require.NoError(t, err)

	// Past retention: job and artifact record are gone
	assert.Equal(t, 1, c.Purge(time.Now().Add(2*time.Hour)))
	_, err = c.Status(id)
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}
