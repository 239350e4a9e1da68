// Package worker consumes queued processing tasks and drives them to a terminal status
package worker

import (
	"context"
	"encoding/json"
	"log"

	"github.com/imagemill/imagemill/internal/invoker"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

// JobCompleter runs the processing contract for one already-dispatched job
// and records done/failed itself.
type JobCompleter interface {
	Complete(ctx context.Context, jobID string) error
}

type Worker struct {
	service  JobCompleter
	queue    <-chan kafkago.Message
	consumer *wbfkafka.Consumer
}

func NewWorkerInstance(svc JobCompleter, q <-chan kafkago.Message, cons *wbfkafka.Consumer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons}
}

// StartWorker drains the queue channel until the context dies. Delivery is
// at-least-once: the offset is committed whether processing succeeded or not,
// so a poison message costs one failed job record instead of a retry loop.
func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}

			if err := w.handleMessage(ctx, msg); err != nil {
				log.Printf("Task %s failed: %v", msg.Key, err)
			}

			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var task invoker.TaskMessage
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		// unparseable payload: log and let the commit bury it
		log.Printf("Failed to parse task payload for key %q, dropping: %v", msg.Key, err)
		return nil
	}

	if task.JobID == "" {
		log.Printf("Task payload without jobId for key %q, dropping", msg.Key)
		return nil
	}

	return w.service.Complete(ctx, task.JobID)
}
