package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

type mockInvoker struct {
	processFn func(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error
}

func (m *mockInvoker) Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
	return m.processFn(ctx, inputKey, steps, outputKey)
}

func workerRequest(secret string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/worker/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Secret", secret)
	return req
}

func TestWorkerHandler_Process(t *testing.T) {
	okBody, err := json.Marshal(map[string]any{
		"inputKey":  "users/u/jobs/j/input",
		"outputKey": "users/u/jobs/j/output.png",
		"ops":       []map[string]any{{"op": "resize", "width": 100, "height": 100}},
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		secret     string
		body       []byte
		processErr error
		wantStatus int
	}{
		{
			name:       "processed",
			secret:     "shared-secret",
			body:       okBody,
			wantStatus: 200,
		},
		{
			name:       "wrong secret",
			secret:     "not-it",
			body:       okBody,
			wantStatus: 401,
		},
		{
			name:       "garbage body",
			secret:     "shared-secret",
			body:       []byte("not-json"),
			wantStatus: 400,
		},
		{
			name:       "missing keys",
			secret:     "shared-secret",
			body:       []byte(`{"ops":[]}`),
			wantStatus: 400,
		},
		{
			name:       "pipeline failure",
			secret:     "shared-secret",
			body:       okBody,
			processErr: errors.New("corrupt input"),
			wantStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &mockInvoker{
				processFn: func(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
					require.Equal(t, "users/u/jobs/j/input", inputKey)
					require.Equal(t, "users/u/jobs/j/output.png", outputKey)
					require.Len(t, steps, 1)
					return tt.processErr
				},
			}

			r := gin.New()
			h := NewWorkerHandler(inv, "shared-secret")
			r.POST("/v1/worker/process", func(c *gin.Context) {
				h.Process((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, workerRequest(tt.secret, tt.body))

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
