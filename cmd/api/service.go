package main

import (
	"context"
	"io"

	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/model"
)

type JobAPIService interface {
	Create(ctx context.Context, principal *auth.Principal, req *model.CreateRequest, inline io.Reader, inlineSize int64) (*model.CreateResult, error)
	Trigger(ctx context.Context, principal *auth.Principal, id string) (*model.ProcessResult, error)
	Get(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error)
	List(ctx context.Context, principal *auth.Principal, req *model.ListRequest) (*model.ListResponse, bool, error)
	ListAll(ctx context.Context, principal *auth.Principal) (*model.ListResponse, error)
	Download(ctx context.Context, principal *auth.Principal, id string) (*model.OutputRef, error)
}
