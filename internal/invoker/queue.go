package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imagemill/imagemill/internal/model"
	"github.com/wb-go/wbf/retry"
)

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// Queue enqueues the task and returns: fire-and-forget. The consumer performs
// the processing contract and writes the terminal status itself, so delivery
// here only means "accepted", not "done".
type Queue struct {
	publisher TaskPublisher
}

func NewQueue(pub TaskPublisher) *Queue {
	return &Queue{publisher: pub}
}

func (q *Queue) Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
	return q.Enqueue(ctx, &TaskMessage{InputKey: inputKey, OutputKey: outputKey, Ops: steps})
}

// Enqueue publishes a fully-populated task message. Used by the orchestrator
// directly so job id and owner travel with the payload.
func (q *Queue) Enqueue(ctx context.Context, msg *TaskMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	if err := q.publisher.SendWithRetry(ctx, retryStrategy, []byte(msg.JobID), payload); err != nil {
		return fmt.Errorf("failed to publish task %q to queue: %w", msg.JobID, err)
	}
	return nil
}
