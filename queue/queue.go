// Package queue defines the at-least-once job queue feeding the processing
// worker. Messages carry a receipt handle and stay invisible for the queue's
// visibility timeout; a job that is not deleted within that window becomes
// visible again and may be redelivered. The pipeline's persisted stage flags
// make redelivery safe.
package queue

import "context"

// SyllabusJob is the unit of work enqueued by the upload handler
type SyllabusJob struct {
	JobID      string `json:"job_id"`
	SyllabusID uint   `json:"syllabus_id"`
	UserID     uint   `json:"user_id"`
	FilePath   string `json:"file_path,omitempty"` // object-store key; empty when raw text was uploaded
}

// Message is a received job with its receipt handle
type Message struct {
	Job           SyllabusJob
	ReceiptHandle string
}

// Queue is the at-least-once delivery contract used by the worker
type Queue interface {
	Enqueue(ctx context.Context, job SyllabusJob) error
	Receive(ctx context.Context) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
