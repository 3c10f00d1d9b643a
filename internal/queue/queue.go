package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/directmail-scheduler/internal/logger"
)

// PrintTopic is the topic and default AMQP queue carrying print jobs.
const PrintTopic = "print_jobs"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// PrintJob asks a printer to print one artifact. Delivery is fire-and-forget.
type PrintJob struct {
	ID          string    `json:"id"`
	CampaignID  int       `json:"campaign_id"`
	StageID     int       `json:"stage_id"`
	PrinterName string    `json:"printer_name"`
	FilePath    string    `json:"file_path"`
	Letters     int       `json:"letters"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPrintJob stamps a job with a fresh id.
func NewPrintJob(campaignID, stageID int, printer, path string, letters int) PrintJob {
	return PrintJob{
		ID:          uuid.NewString(),
		CampaignID:  campaignID,
		StageID:     stageID,
		PrinterName: printer,
		FilePath:    path,
		Letters:     letters,
		CreatedAt:   time.Now(),
	}
}

// Dispatcher hands print jobs to the printing side.
type Dispatcher interface {
	Dispatch(ctx context.Context, job PrintJob) error
}

// InMemoryQueue is an in-process queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	log      *logger.Logger
	wg       sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *logger.Logger) *InMemoryQueue {
	if log == nil {
		log = logger.Discard()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		log:        log,
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: q.MaxRetries,
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.processJob(handler, job)
		}()
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		q.log.Warn("job failed", slog.Int("attempt", job.RetryCount), slog.Int("max_retries", job.MaxRetries), slog.String("error", err.Error()))

		if job.RetryCount > job.MaxRetries {
			q.log.Error("job permanently failed", slog.Int("attempts", job.RetryCount))
			return // No requeue
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has been handled or given up on.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// QueueDispatcher publishes print jobs onto a Queue.
type QueueDispatcher struct {
	Queue Queue
	Topic string
}

func (d *QueueDispatcher) Dispatch(_ context.Context, job PrintJob) error {
	topic := d.Topic
	if topic == "" {
		topic = PrintTopic
	}
	return d.Queue.Publish(topic, job)
}

// StartPrintSubscriber feeds print jobs from q into spooler.
func StartPrintSubscriber(q Queue, spooler Spooler, log *logger.Logger) error {
	return q.Subscribe(PrintTopic, func(payload any) error {
		job, ok := payload.(PrintJob)
		if !ok {
			log.Warn("invalid print payload type, expected PrintJob")
			return nil // no retry
		}

		if err := spooler.Print(context.Background(), job); err != nil {
			log.Warn("print failed", slog.String("job_id", job.ID), slog.String("printer", job.PrinterName), slog.String("error", err.Error()))
			return err // triggers retry in queue
		}

		log.Info("print job spooled", slog.String("job_id", job.ID), slog.String("printer", job.PrinterName), slog.String("file", job.FilePath))
		return nil
	})
}

var _ Dispatcher = (*QueueDispatcher)(nil)
