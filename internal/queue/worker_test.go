package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource hands out jobs from a channel and records outcomes
type fakeSource struct {
	jobs chan *Job

	mu        sync.Mutex
	completed []string
	failed    map[string]error
	done      chan struct{}
}

func newFakeSource(expected int) *fakeSource {
	return &fakeSource{
		jobs:   make(chan *Job, 10),
		failed: make(map[string]error),
		done:   make(chan struct{}, expected),
	}
}

func (f *fakeSource) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	select {
	case job := <-f.jobs:
		return job, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) Complete(ctx context.Context, job *Job) error {
	f.mu.Lock()
	f.completed = append(f.completed, job.ID)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeSource) Fail(ctx context.Context, job *Job, jobErr error) error {
	f.mu.Lock()
	f.failed[job.ID] = jobErr
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeSource) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i+1)
		}
	}
}

func TestWorkerProcessesJobs(t *testing.T) {
	source := newFakeSource(3)
	handler := func(ctx context.Context, job *Job) error {
		switch job.ID {
		case "bad":
			return errors.New("storage unavailable")
		case "panic":
			panic("boom")
		}
		return nil
	}

	w := NewWorker(source, QueueFileCleanup, handler, 2)
	w.pollWait = 10 * time.Millisecond
	w.Start(context.Background())

	source.jobs <- &Job{ID: "good", Queue: QueueFileCleanup}
	source.jobs <- &Job{ID: "bad", Queue: QueueFileCleanup}
	source.jobs <- &Job{ID: "panic", Queue: QueueFileCleanup}
	source.wait(t, 3)
	w.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, []string{"good"}, source.completed)
	require.Len(t, source.failed, 2)
	assert.EqualError(t, source.failed["bad"], "storage unavailable")
	assert.Contains(t, source.failed["panic"].Error(), "panicked")
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	source := newFakeSource(0)
	w := NewWorker(source, QueueFileCleanup, func(ctx context.Context, job *Job) error { return nil }, 0)
	w.pollWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, w.numWorkers)
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retry int
		base  time.Duration
	}{
		{retry: 0, base: 5 * time.Second},
		{retry: 1, base: 10 * time.Second},
		{retry: 3, base: 40 * time.Second},
		{retry: 20, base: time.Hour},
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			d := calculateBackoff(tt.retry)
			low := time.Duration(float64(tt.base) * 0.8)
			high := time.Duration(float64(tt.base) * 1.2)
			assert.GreaterOrEqual(t, d, low, "retry %d", tt.retry)
			assert.LessOrEqual(t, d, high, "retry %d", tt.retry)
		}
	}
}

func TestJobDecode(t *testing.T) {
	job := &Job{Payload: []byte(`{"file_ref":"01HX-id.png"}`)}
	var payload struct {
		FileRef string `json:"file_ref"`
	}
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "01HX-id.png", payload.FileRef)
}
