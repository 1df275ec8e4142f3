package jobs

import (
	"github.com/estatehub/backend/internal/queue"
)

// RegisterAllJobHandlers builds one worker per queue with its job handler.
// Workers are returned unstarted.
func RegisterAllJobHandlers(source queue.Source, fileCleanup *FileCleanupJob, concurrency int) []*queue.Worker {
	return []*queue.Worker{
		queue.NewWorker(source, queue.QueueFileCleanup, fileCleanup.Handle, concurrency),
	}
}
