package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/imagemill/imagemill/internal/invoker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func taskMsg(t *testing.T, task invoker.TaskMessage) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(task)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(task.JobID), Value: payload}
}

func TestWorker_handleMessage(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	tests := []struct {
		name        string
		msg         kafkago.Message
		completeErr error
		wantCalled  bool
		wantErr     bool
	}{
		{
			name:       "valid task",
			msg:        taskMsg(t, invoker.TaskMessage{JobID: id, OwnerID: "user-1", InputKey: "in", OutputKey: "out"}),
			wantCalled: true,
		},
		{
			name:        "processing failure propagates",
			msg:         taskMsg(t, invoker.TaskMessage{JobID: id}),
			completeErr: errors.New("storage down"),
			wantCalled:  true,
			wantErr:     true,
		},
		{
			name: "garbage payload dropped",
			msg:  kafkago.Message{Key: []byte("k"), Value: []byte("not-json")},
		},
		{
			name: "missing jobId dropped",
			msg:  taskMsg(t, invoker.TaskMessage{OwnerID: "user-1"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockCompleter{
				completeFn: func(ctx context.Context, jobID string) error {
					called = true
					require.Equal(t, id, jobID)
					return tt.completeErr
				},
			}

			w := &Worker{service: svc}

			err := w.handleMessage(ctx, tt.msg)

			require.Equal(t, tt.wantCalled, called)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWorker_StartWorker_StopsOnClosedQueue(t *testing.T) {
	queue := make(chan kafkago.Message)
	close(queue)

	w := &Worker{
		service: &mockCompleter{completeFn: func(ctx context.Context, jobID string) error { return nil }},
		queue:   queue,
	}

	done := make(chan struct{})
	go func() {
		w.StartWorker(context.Background())
		close(done)
	}()

	<-done
}

func TestWorker_StartWorker_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &Worker{
		service: &mockCompleter{completeFn: func(ctx context.Context, jobID string) error { return nil }},
		queue:   make(chan kafkago.Message),
	}

	done := make(chan struct{})
	go func() {
		w.StartWorker(ctx)
		close(done)
	}()

	<-done
}
