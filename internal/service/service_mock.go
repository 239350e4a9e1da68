package service

import (
	"context"
	"io"
	"time"

	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/imagemill/imagemill/internal/model"
)

type mockRepo struct {
	createFn     func(ctx context.Context, job *model.Job) error
	getFn        func(ctx context.Context, id string) (*model.Job, error)
	listFn       func(ctx context.Context, ownerID string, page, limit int) ([]model.Job, int, error)
	listAllFn    func(ctx context.Context, limit int) ([]model.Job, int, error)
	setStatusFn  func(ctx context.Context, id string, status model.Status) error
	transitionFn func(ctx context.Context, id string, to model.Status, from ...model.Status) (bool, error)
	finishFn     func(ctx context.Context, id string, to model.Status, finishedAt time.Time) error
}

func (m *mockRepo) Create(ctx context.Context, job *model.Job) error {
	return m.createFn(ctx, job)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) List(ctx context.Context, ownerID string, page, limit int) ([]model.Job, int, error) {
	return m.listFn(ctx, ownerID, page, limit)
}

func (m *mockRepo) ListAll(ctx context.Context, limit int) ([]model.Job, int, error) {
	return m.listAllFn(ctx, limit)
}

func (m *mockRepo) SetStatus(ctx context.Context, id string, status model.Status) error {
	return m.setStatusFn(ctx, id, status)
}

func (m *mockRepo) Transition(ctx context.Context, id string, to model.Status, from ...model.Status) (bool, error) {
	return m.transitionFn(ctx, id, to, from...)
}

func (m *mockRepo) Finish(ctx context.Context, id string, to model.Status, finishedAt time.Time) error {
	return m.finishFn(ctx, id, to, finishedAt)
}

type mockBroker struct {
	getFn        func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn        func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	presignPutFn func(ctx context.Context, key string) (string, error)
	presignGetFn func(ctx context.Context, key string) (string, error)
}

func (m *mockBroker) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockBroker) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockBroker) PresignPut(ctx context.Context, key string) (string, error) {
	return m.presignPutFn(ctx, key)
}

func (m *mockBroker) PresignGet(ctx context.Context, key string) (string, error) {
	return m.presignGetFn(ctx, key)
}

type mockInvoker struct {
	processFn func(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error
}

func (m *mockInvoker) Process(ctx context.Context, inputKey string, steps model.Steps, outputKey string) error {
	return m.processFn(ctx, inputKey, steps, outputKey)
}

type mockEnqueuer struct {
	enqueueFn func(ctx context.Context, msg *invoker.TaskMessage) error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, msg *invoker.TaskMessage) error {
	return m.enqueueFn(ctx, msg)
}

type mockCache struct {
	getFn        func(ctx context.Context, ownerID string) (*model.ListResponse, bool)
	putFn        func(ctx context.Context, ownerID string, data *model.ListResponse)
	invalidateFn func(ctx context.Context, ownerID string)
}

func (m *mockCache) Get(ctx context.Context, ownerID string) (*model.ListResponse, bool) {
	if m.getFn == nil {
		return nil, false
	}
	return m.getFn(ctx, ownerID)
}

func (m *mockCache) Put(ctx context.Context, ownerID string, data *model.ListResponse) {
	if m.putFn != nil {
		m.putFn(ctx, ownerID, data)
	}
}

func (m *mockCache) Invalidate(ctx context.Context, ownerID string) {
	if m.invalidateFn != nil {
		m.invalidateFn(ctx, ownerID)
	}
}
