// Package invoker runs a job's transform pipeline between two blob-store locations.
// Three implementations cover the dispatch modes: in-process, remote worker
// over HTTP, and fire-and-forget via the task queue.
package invoker

import (
	"context"
	"io"

	"github.com/imagemill/imagemill/internal/model"
)

// Invoker reads the input artifact, applies steps in order and writes the
// PNG result to the output location. The Queue implementation only enqueues:
// the consumer performs the same contract and writes the terminal status.
type Invoker interface {
	Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error
}

// BlobStorage - контракт для работы с хранилищем
type BlobStorage interface {
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// TaskMessage is the queue payload for the async dispatch path.
type TaskMessage struct {
	JobID     string      `json:"jobId"`
	OwnerID   string      `json:"userId"`
	InputKey  string      `json:"inputKey"`
	OutputKey string      `json:"outputKey"`
	Ops       model.Steps `json:"ops"`
}
