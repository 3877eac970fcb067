package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studypath/api/queue"
)

type fakeQueue struct {
	messages []queue.Message
	deleted  []string
	enqueued []queue.SyllabusJob
}

func (f *fakeQueue) Enqueue(_ context.Context, job queue.SyllabusJob) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeQueue) Receive(_ context.Context) ([]queue.Message, error) {
	msgs := f.messages
	f.messages = nil
	return msgs, nil
}

func (f *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakeProcessor struct {
	err  error
	jobs []queue.SyllabusJob
}

func (f *fakeProcessor) Process(_ context.Context, job queue.SyllabusJob) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func testMessage(id string) queue.Message {
	return queue.Message{
		Job:           queue.SyllabusJob{JobID: id, SyllabusID: 1, UserID: 1},
		ReceiptHandle: "receipt-" + id,
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	q := &fakeQueue{}
	proc := &fakeProcessor{}
	w := NewWorker(q, proc, nil)

	w.handle(context.Background(), testMessage("a"))

	if len(proc.jobs) != 1 || proc.jobs[0].JobID != "a" {
		t.Fatalf("processor saw jobs %v", proc.jobs)
	}
	if len(q.deleted) != 1 || q.deleted[0] != "receipt-a" {
		t.Errorf("deleted receipts: %v", q.deleted)
	}
}

func TestWorkerDeletesDuplicateDelivery(t *testing.T) {
	q := &fakeQueue{}
	proc := &fakeProcessor{err: ErrAlreadyProcessed}
	w := NewWorker(q, proc, nil)

	w.handle(context.Background(), testMessage("dup"))

	// Already-processed is success from the queue's point of view
	if len(q.deleted) != 1 {
		t.Errorf("duplicate delivery not acknowledged: deleted %v", q.deleted)
	}
}

func TestWorkerLeavesFailedJobForRedelivery(t *testing.T) {
	q := &fakeQueue{}
	proc := &fakeProcessor{err: errors.New("transient failure")}
	w := NewWorker(q, proc, nil)

	w.handle(context.Background(), testMessage("fail"))

	if len(q.deleted) != 0 {
		t.Errorf("failed job was deleted: %v", q.deleted)
	}
}

type signalProcessor struct {
	seen chan queue.SyllabusJob
}

func (s *signalProcessor) Process(_ context.Context, job queue.SyllabusJob) error {
	s.seen <- job
	return nil
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	q := &fakeQueue{messages: []queue.Message{testMessage("only")}}
	proc := &signalProcessor{seen: make(chan queue.SyllabusJob, 1)}
	w := NewWorker(q, proc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	select {
	case job := <-proc.seen:
		if job.JobID != "only" {
			t.Errorf("processed job %q", job.JobID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker never processed the queued message")
	}

	cancel()
	<-done
}
