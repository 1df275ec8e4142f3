package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Source is the side of a queue a worker consumes from
type Source interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error)
	Complete(ctx context.Context, job *Job) error
	Fail(ctx context.Context, job *Job, jobErr error) error
}

// Worker processes jobs from a queue
type Worker struct {
	source     Source
	queue      string
	handler    JobHandler
	numWorkers int
	pollWait   time.Duration
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// NewWorker creates a new worker
func NewWorker(source Source, queue string, handler JobHandler, numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Worker{
		source:     source,
		queue:      queue,
		handler:    handler,
		numWorkers: numWorkers,
		pollWait:   time.Second,
	}
}

// Start starts the worker goroutines. They run until Stop or until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	log.Printf("Starting %d workers for queue %s", w.numWorkers, w.queue)

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(ctx, i)
	}
}

// Stop stops the worker and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	log.Printf("Stopping workers for queue %s", w.queue)
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, workerID int) {
	defer w.wg.Done()

	log.Printf("Worker %d for queue %s started", workerID, w.queue)

	for {
		if ctx.Err() != nil {
			log.Printf("Worker %d for queue %s stopped", workerID, w.queue)
			return
		}

		job, err := w.source.Dequeue(ctx, w.queue, w.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("Error dequeueing job: %v", err)
			sleep(ctx, w.pollWait)
			continue
		}
		if job == nil {
			continue
		}

		w.run(ctx, workerID, job)
	}
}

// run executes one job. Jobs finish on a context detached from shutdown so a
// half-done job still records its outcome.
func (w *Worker) run(ctx context.Context, workerID int, job *Job) {
	log.Printf("Worker %d processing job %s from queue %s", workerID, job.ID, w.queue)
	jobCtx := context.WithoutCancel(ctx)

	if err := w.safeHandle(jobCtx, job); err != nil {
		log.Printf("Error processing job %s: %v", job.ID, err)
		if err := w.source.Fail(jobCtx, job, err); err != nil {
			log.Printf("Error marking job %s as failed: %v", job.ID, err)
		}
		return
	}

	if err := w.source.Complete(jobCtx, job); err != nil {
		log.Printf("Error marking job %s as completed: %v", job.ID, err)
	}
}

func (w *Worker) safeHandle(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
