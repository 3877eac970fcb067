package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/studypath/api/queue"
)

// Processor handles one received job
type Processor interface {
	Process(ctx context.Context, job queue.SyllabusJob) error
}

// Worker polls the job queue and feeds jobs to the processor one at a time.
// Per-job concurrency is deliberately 1: provider rate limits dominate
// throughput, and serial processing keeps the per-syllabus state transitions
// easy to reason about.
type Worker struct {
	queue     queue.Queue
	processor Processor
	progress  *ProgressTracker

	// pollBackoff is how long the loop sleeps after a receive error
	pollBackoff time.Duration
}

// NewWorker creates a worker over the queue and processor
func NewWorker(q queue.Queue, processor Processor, progress *ProgressTracker) *Worker {
	return &Worker{
		queue:       q,
		processor:   processor,
		progress:    progress,
		pollBackoff: 5 * time.Second,
	}
}

// Run polls until the context is cancelled
func (w *Worker) Run(ctx context.Context) {
	log.Println("Worker: started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker: shutting down")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("Worker: receive failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.pollBackoff):
			}
			continue
		}

		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

// handle processes one message. The message is deleted only on success or
// when the syllabus turns out to be already processed; on failure it is left
// on the queue to reappear after the visibility timeout.
func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	job := msg.Job
	log.Printf("Worker: received job %s for syllabus %d", job.JobID, job.SyllabusID)

	if w.progress != nil {
		acquired, err := w.progress.AcquireSyllabusLock(ctx, job.SyllabusID, job.JobID)
		if err != nil {
			log.Printf("Worker: lock check for syllabus %d failed, proceeding on stage flags alone: %v", job.SyllabusID, err)
		} else if !acquired {
			// Another worker holds the syllabus. Leave the message for
			// redelivery; by then the holder has finished or died.
			log.Printf("Worker: syllabus %d locked by another run, deferring job %s", job.SyllabusID, job.JobID)
			return
		} else {
			defer w.progress.ReleaseSyllabusLock(ctx, job.SyllabusID)
		}
	}

	err := w.processor.Process(ctx, job)
	switch {
	case err == nil:
		log.Printf("Worker: job %s completed", job.JobID)
	case errors.Is(err, ErrAlreadyProcessed):
		log.Printf("Worker: job %s was a duplicate delivery, acknowledging", job.JobID)
	default:
		log.Printf("Worker: job %s failed, leaving for redelivery: %v", job.JobID, err)
		return
	}

	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		// The flags make the eventual redelivery a no-op
		log.Printf("Worker: failed to delete message for job %s: %v", job.JobID, err)
	}
}
