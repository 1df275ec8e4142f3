package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/queue"
	"github.com/estatehub/backend/internal/store"
	"github.com/google/uuid"
)

// FileCleanupPayload is the payload of a file cleanup job
type FileCleanupPayload struct {
	OrphanID uuid.UUID `json:"orphan_id"`
	Bucket   string    `json:"bucket"`
	FileRef  string    `json:"file_ref"`
}

// Enqueuer is the producer side of the job queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...queue.EnqueueOption) (string, error)
	EnqueueIn(ctx context.Context, queueName string, payload interface{}, delay time.Duration, opts ...queue.EnqueueOption) (string, error)
}

// FileCleanupOptions tune how cleanup jobs are queued
type FileCleanupOptions struct {
	// MaxRetries caps queue retries per job; zero keeps the queue default
	MaxRetries int
	// Delay postpones the first attempt after a deletion just failed
	Delay time.Duration
}

// FileCleanupJob deletes evidence files whose documents are already gone
type FileCleanupJob struct {
	queue   Enqueuer
	orphans store.OrphanStore
	files   filestore.FileStore
	opts    FileCleanupOptions
}

// NewFileCleanupJob creates a new file cleanup job handler. With a nil
// queue, cleanups run inline when scheduled.
func NewFileCleanupJob(q Enqueuer, orphans store.OrphanStore, files filestore.FileStore, opts FileCleanupOptions) *FileCleanupJob {
	return &FileCleanupJob{
		queue:   q,
		orphans: orphans,
		files:   files,
		opts:    opts,
	}
}

// cleanupJobID keys cleanup jobs by orphan so one orphan is queued at most once
func cleanupJobID(orphan *models.OrphanedFile) string {
	return "cleanup:" + orphan.ID.String()
}

// ScheduleFileCleanup enqueues deletion of an orphaned file. Orphans that
// have never been retried wait for the configured delay first.
func (j *FileCleanupJob) ScheduleFileCleanup(ctx context.Context, orphan *models.OrphanedFile) error {
	payload := FileCleanupPayload{
		OrphanID: orphan.ID,
		Bucket:   orphan.Bucket,
		FileRef:  orphan.FileRef,
	}

	if j.queue == nil {
		return j.cleanup(ctx, payload)
	}

	opts := []queue.EnqueueOption{queue.WithJobID(cleanupJobID(orphan))}
	if j.opts.MaxRetries > 0 {
		opts = append(opts, queue.WithMaxRetries(j.opts.MaxRetries))
	}

	var jobID string
	var err error
	if orphan.Attempts == 0 && j.opts.Delay > 0 {
		jobID, err = j.queue.EnqueueIn(ctx, queue.QueueFileCleanup, payload, j.opts.Delay, opts...)
	} else {
		jobID, err = j.queue.Enqueue(ctx, queue.QueueFileCleanup, payload, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue file cleanup: %w", err)
	}
	log.Printf("Enqueued file cleanup job %s for %s/%s", jobID, orphan.Bucket, orphan.FileRef)
	return nil
}

// Handle processes a file cleanup job from the queue
func (j *FileCleanupJob) Handle(ctx context.Context, job *queue.Job) error {
	var payload FileCleanupPayload
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal file cleanup payload: %w", err)
	}
	return j.cleanup(ctx, payload)
}

func (j *FileCleanupJob) cleanup(ctx context.Context, payload FileCleanupPayload) error {
	if err := j.files.Delete(ctx, payload.Bucket, payload.FileRef); err != nil {
		metrics.FileCleanups.WithLabelValues("failed").Inc()
		if markErr := j.orphans.MarkAttempt(ctx, payload.OrphanID, err.Error()); markErr != nil && !errors.Is(markErr, store.ErrNotFound) {
			log.Printf("Failed to record cleanup attempt for %s: %v", payload.FileRef, markErr)
		}
		return fmt.Errorf("failed to delete file %s/%s: %w", payload.Bucket, payload.FileRef, err)
	}

	if err := j.orphans.Remove(ctx, payload.OrphanID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to remove orphan record: %w", err)
	}

	metrics.FileCleanups.WithLabelValues("deleted").Inc()
	log.Printf("Deleted orphaned file %s/%s", payload.Bucket, payload.FileRef)
	return nil
}
