package transport

import (
	"crypto/subtle"

	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/wb-go/wbf/ginext"
)

// WorkerHandler serves the direct-call processing endpoint on the worker tier.
// Requests carry blob keys and ops only; the caller owns the job record and
// writes the terminal status itself once this call returns.
type WorkerHandler struct {
	invoker invoker.Invoker
	secret  string
}

func NewWorkerHandler(inv invoker.Invoker, secret string) *WorkerHandler {
	return &WorkerHandler{invoker: inv, secret: secret}
}

func (h WorkerHandler) Process(ctx *ginext.Context) {
	given := ctx.Request.Header.Get("X-Worker-Secret")
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		ctx.JSON(401, errorBody("unauthenticated", "bad worker secret"))
		return
	}

	var task invoker.TaskMessage
	if err := ctx.ShouldBindJSON(&task); err != nil {
		ctx.JSON(400, errorBody("bad_request", "failed to parse task payload"))
		return
	}
	if task.InputKey == "" || task.OutputKey == "" {
		ctx.JSON(400, errorBody("bad_request", "inputKey and outputKey are required"))
		return
	}

	if err := h.invoker.Process(ctx.Request.Context(), task.InputKey, task.Ops, task.OutputKey); err != nil {
		ctx.JSON(422, errorBody("processing_failed", err.Error()))
		return
	}

	ctx.JSON(200, map[string]string{"status": "done"})
}
