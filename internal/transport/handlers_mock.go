package transport

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/model"
)

type mockJobService struct {
	createFn   func(ctx context.Context, principal *auth.Principal, req *model.CreateRequest, inline io.Reader, inlineSize int64) (*model.CreateResult, error)
	triggerFn  func(ctx context.Context, principal *auth.Principal, id string) (*model.ProcessResult, error)
	getFn      func(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error)
	listFn     func(ctx context.Context, principal *auth.Principal, req *model.ListRequest) (*model.ListResponse, bool, error)
	listAllFn  func(ctx context.Context, principal *auth.Principal) (*model.ListResponse, error)
	downloadFn func(ctx context.Context, principal *auth.Principal, id string) (*model.OutputRef, error)
}

func (m *mockJobService) Create(ctx context.Context, principal *auth.Principal, req *model.CreateRequest, inline io.Reader, inlineSize int64) (*model.CreateResult, error) {
	return m.createFn(ctx, principal, req, inline, inlineSize)
}

func (m *mockJobService) Trigger(ctx context.Context, principal *auth.Principal, id string) (*model.ProcessResult, error) {
	return m.triggerFn(ctx, principal, id)
}

func (m *mockJobService) Get(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error) {
	return m.getFn(ctx, principal, id)
}

func (m *mockJobService) List(ctx context.Context, principal *auth.Principal, req *model.ListRequest) (*model.ListResponse, bool, error) {
	return m.listFn(ctx, principal, req)
}

func (m *mockJobService) ListAll(ctx context.Context, principal *auth.Principal) (*model.ListResponse, error) {
	return m.listAllFn(ctx, principal)
}

func (m *mockJobService) Download(ctx context.Context, principal *auth.Principal, id string) (*model.OutputRef, error) {
	return m.downloadFn(ctx, principal, id)
}

type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (*auth.Principal, error)
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	return m.verifyFn(ctx, token)
}

func init() {
	gin.SetMode(gin.TestMode)
}
