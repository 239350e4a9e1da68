// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type JobHandler struct {
	service  JobService
	verifier auth.Verifier
}

type JobService interface {
	Create(ctx context.Context, principal *auth.Principal, req *model.CreateRequest, inline io.Reader, inlineSize int64) (*model.CreateResult, error)
	Trigger(ctx context.Context, principal *auth.Principal, id string) (*model.ProcessResult, error)
	Get(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error)
	List(ctx context.Context, principal *auth.Principal, req *model.ListRequest) (*model.ListResponse, bool, error)
	ListAll(ctx context.Context, principal *auth.Principal) (*model.ListResponse, error)
	Download(ctx context.Context, principal *auth.Principal, id string) (*model.OutputRef, error)
}

func NewJobHandler(svc JobService, verifier auth.Verifier) *JobHandler {
	return &JobHandler{
		service:  svc,
		verifier: verifier,
	}
}

func (h JobHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

type createBody struct {
	Ops         model.Steps  `json:"ops"`
	SourceID    model.Source `json:"sourceId"`
	ContentType string       `json:"contentType"`
}

type createResponse struct {
	ID     string           `json:"id"`
	Status model.Status     `json:"status"`
	Upload *model.UploadRef `json:"upload,omitempty"`
	Output *model.OutputRef `json:"output,omitempty"`
}

func (h JobHandler) Create(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	var body createBody
	var inline io.Reader
	var inlineSize int64

	if strings.HasPrefix(ctx.Request.Header.Get("Content-Type"), "multipart/form-data") {
		// inline upload: ops travel as a JSON form field next to the file
		if err := json.Unmarshal([]byte(ctx.PostForm("ops")), &body.Ops); err != nil {
			ctx.JSON(400, errorBody("bad_request", "invalid ops JSON payload"))
			return
		}
		body.SourceID = model.Source(ctx.PostForm("sourceId"))

		file, header, err := ctx.Request.FormFile("image")
		if err == nil {
			defer closeFileFlow(file)
			inline = file
			inlineSize = header.Size
			body.ContentType = header.Header.Get("Content-Type")
		}
	} else {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(400, errorBody("bad_request", "failed to parse request body"))
			return
		}
	}

	req := &model.CreateRequest{
		Ops:         body.Ops,
		SourceID:    body.SourceID,
		ContentType: body.ContentType,
	}

	res, err := h.service.Create(ctx.Request.Context(), principal, req, inline, inlineSize)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	ctx.JSON(201, createResponse{
		ID:     res.Job.ID.String(),
		Status: res.Job.Status,
		Upload: res.Upload,
		Output: res.Output,
	})
}

func (h JobHandler) Trigger(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	id := ctx.Param("id")

	res, err := h.service.Trigger(ctx.Request.Context(), principal, id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	if res.Async {
		ctx.JSON(202, map[string]string{"id": id, "status": string(model.StatusProcessing)})
		return
	}

	ctx.JSON(200, map[string]any{"id": id, "output": res.Output})
}

func (h JobHandler) List(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	var req model.ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, errorBody("bad_request", "failed to parse query-params"))
		return
	}

	res, hit, err := h.service.List(ctx.Request.Context(), principal, &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	if hit {
		ctx.Writer.Header().Set("X-Cache", "HIT")
	} else {
		ctx.Writer.Header().Set("X-Cache", "MISS")
	}
	ctx.JSON(200, res)
}

func (h JobHandler) Get(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	job, err := h.service.Get(ctx.Request.Context(), principal, ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	ctx.JSON(200, job)
}

func (h JobHandler) Download(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	ref, err := h.service.Download(ctx.Request.Context(), principal, ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	ctx.JSON(200, map[string]string{"downloadUrl": ref.URL})
}

func (h JobHandler) AdminList(ctx *ginext.Context) {
	principal, ok := h.requireAuth(ctx)
	if !ok {
		return
	}

	res, err := h.service.ListAll(ctx.Request.Context(), principal)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), errorBody(errorCode(err), err.Error()))
		return
	}

	ctx.JSON(200, res)
}

// requireAuth verifies the bearer credential and resolves the principal.
// Writes the 401 itself so handlers just bail out on !ok.
func (h JobHandler) requireAuth(ctx *ginext.Context) (*auth.Principal, bool) {
	hdr := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(hdr, "Bearer ") {
		ctx.JSON(401, errorBody("unauthenticated", "missing Bearer token"))
		return nil, false
	}

	principal, err := h.verifier.Verify(ctx.Request.Context(), strings.TrimPrefix(hdr, "Bearer "))
	if err != nil {
		ctx.JSON(401, errorBody("unauthenticated", "invalid or expired token"))
		return nil, false
	}

	return principal, true
}
