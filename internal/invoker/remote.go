package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imagemill/imagemill/internal/model"
)

// Remote delegates processing to a separate worker tier over a direct
// request/response call, authenticated by a shared-secret header.
type Remote struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewRemote(baseURL, secret string) *Remote {
	return &Remote{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *Remote) Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
	payload, err := json.Marshal(TaskMessage{
		InputKey:  inputKey,
		OutputKey: outputKey,
		Ops:       steps,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/worker/process", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Secret", r.secret)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("worker returned %d: %s", resp.StatusCode, body)
	}

	return nil
}
