package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// SQSQueue is the SQS-backed implementation of Queue
type SQSQueue struct {
	client            *sqs.SQS
	queueURL          string
	visibilityTimeout int64
	waitTime          int64
}

// SQSConfig holds configuration for the SQS queue
type SQSConfig struct {
	QueueURL          string
	Region            string
	VisibilityTimeout int // seconds a received message stays invisible
	WaitTime          int // long-poll seconds per receive
}

// NewSQSQueue creates a new SQS-backed job queue
func NewSQSQueue(config SQSConfig) (*SQSQueue, error) {
	if config.QueueURL == "" {
		return nil, fmt.Errorf("SQS queue URL is required")
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 900
	}
	if config.WaitTime <= 0 {
		config.WaitTime = 20
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS session: %w", err)
	}

	return &SQSQueue{
		client:            sqs.New(sess),
		queueURL:          config.QueueURL,
		visibilityTimeout: int64(config.VisibilityTimeout),
		waitTime:          int64(config.WaitTime),
	}, nil
}

// Enqueue sends a syllabus processing job to the queue
func (q *SQSQueue) Enqueue(ctx context.Context, job SyllabusJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job for syllabus %d: %w", job.SyllabusID, err)
	}

	log.Printf("Queue: enqueued job %s for syllabus %d", job.JobID, job.SyllabusID)
	return nil
}

// Receive long-polls the queue for a batch of jobs
func (q *SQSQueue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		VisibilityTimeout:   aws.Int64(q.visibilityTimeout),
		WaitTimeSeconds:     aws.Int64(q.waitTime),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		var job SyllabusJob
		if err := json.Unmarshal([]byte(aws.StringValue(m.Body)), &job); err != nil {
			// A malformed body can never succeed; drop it instead of letting
			// it cycle through the visibility timeout forever.
			log.Printf("Queue: dropping malformed message %s: %v", aws.StringValue(m.MessageId), err)
			if delErr := q.Delete(ctx, aws.StringValue(m.ReceiptHandle)); delErr != nil {
				log.Printf("Queue: failed to delete malformed message: %v", delErr)
			}
			continue
		}
		messages = append(messages, Message{
			Job:           job,
			ReceiptHandle: aws.StringValue(m.ReceiptHandle),
		})
	}

	return messages, nil
}

// Delete acknowledges a message so it is not redelivered
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
