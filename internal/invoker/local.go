package invoker

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/imagemill/imagemill/internal/imageproc"
	"github.com/imagemill/imagemill/internal/model"
)

// Local runs the pipeline in-process: the whole input is read into memory,
// transformed, and written back as PNG.
type Local struct {
	storage BlobStorage
}

func NewLocal(strg BlobStorage) *Local {
	return &Local{storage: strg}
}

func (l *Local) Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
	input, _, err := l.storage.Get(ctx, inputKey)
	if err != nil {
		return fmt.Errorf("failed to fetch input %q from storage: %w", inputKey, err)
	}
	defer closeFileFlow(input)

	result, size, err := imageproc.Apply(input, steps)
	if err != nil {
		return fmt.Errorf("pipeline failed for input %q: %w", inputKey, err)
	}

	if err := l.storage.Put(ctx, outputKey, size, model.PNG, result); err != nil {
		return fmt.Errorf("failed to put result %q to storage: %w", outputKey, err)
	}

	return nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Invoker failed to close fileflow:", err)
	}
}
