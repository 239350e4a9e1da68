package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/stretchr/testify/require"
)

func owner() *auth.Principal {
	return &auth.Principal{Subject: "user-1"}
}

func admin() *auth.Principal {
	return &auth.Principal{Subject: "root", Groups: []string{adminGroup}}
}

func resizeOps() model.Steps {
	return model.Steps{{Op: model.OpResize, Width: 800, Height: 600}}
}

// CREATE - WAITING FOR UPLOAD
func TestJobService_Create_WaitingUpload(t *testing.T) {
	ctx := context.Background()

	invalidated := 0
	repo := &mockRepo{
		createFn: func(ctx context.Context, job *model.Job) error {
			require.NotEmpty(t, job.ID)
			require.Equal(t, "user-1", job.OwnerID)
			require.Equal(t, model.StatusWaitingUpload, job.Status)
			require.Equal(t, "users/user-1/jobs/"+job.ID.String()+"/input", job.InputKey)
			require.Equal(t, "users/user-1/jobs/"+job.ID.String()+"/output.png", job.OutputKey)
			return nil
		},
	}
	broker := &mockBroker{
		presignPutFn: func(ctx context.Context, key string) (string, error) {
			return "https://blobs/" + key + "?signed", nil
		},
	}
	lc := &mockCache{
		invalidateFn: func(ctx context.Context, ownerID string) {
			require.Equal(t, "user-1", ownerID)
			invalidated++
		},
	}

	svc := NewJobService(repo, lc, broker, &mockInvoker{}, nil)

	res, err := svc.Create(ctx, owner(), &model.CreateRequest{Ops: resizeOps()}, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Upload)
	require.Nil(t, res.Output)
	require.Equal(t, model.StatusWaitingUpload, res.Job.Status)
	require.Equal(t, 1, invalidated)
}

// CREATE - SEED SOURCE PROCESSES IMMEDIATELY
func TestJobService_Create_SeedRunsNow(t *testing.T) {
	ctx := context.Background()

	var finished model.Status
	repo := &mockRepo{
		createFn: func(ctx context.Context, job *model.Job) error {
			require.Equal(t, model.StatusProcessing, job.Status)
			require.Equal(t, seedInputKey, job.InputKey)
			return nil
		},
		finishFn: func(ctx context.Context, id string, to model.Status, finishedAt time.Time) error {
			finished = to
			return nil
		},
	}
	broker := &mockBroker{
		presignGetFn: func(ctx context.Context, key string) (string, error) {
			return "https://blobs/" + key + "?signed", nil
		},
	}
	inv := &mockInvoker{
		processFn: func(ctx context.Context, in string, steps model.Steps, out string) error {
			require.Equal(t, seedInputKey, in)
			return nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, broker, inv, nil)

	res, err := svc.Create(ctx, owner(), &model.CreateRequest{Ops: resizeOps(), SourceID: model.SourceSeed}, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Output)
	require.Equal(t, model.StatusDone, res.Job.Status)
	require.Equal(t, model.StatusDone, finished)
	require.NotNil(t, res.Job.FinishedAt)
	require.GreaterOrEqual(t, res.Job.FinishedAt.Unix(), res.Job.CreatedAt.Unix())
}

// CREATE - SEED SOURCE ENQUEUES IN ASYNC MODE
func TestJobService_Create_SeedEnqueuesAsync(t *testing.T) {
	ctx := context.Background()

	repo := &mockRepo{
		createFn: func(ctx context.Context, job *model.Job) error {
			require.Equal(t, model.StatusProcessing, job.Status)
			return nil
		},
	}
	var sent *invoker.TaskMessage
	queue := &mockEnqueuer{
		enqueueFn: func(ctx context.Context, msg *invoker.TaskMessage) error {
			sent = msg
			return nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, &mockBroker{}, &mockInvoker{}, queue)

	res, err := svc.Create(ctx, owner(), &model.CreateRequest{Ops: resizeOps(), SourceID: model.SourceSeed}, nil, 0)
	require.NoError(t, err)
	require.Nil(t, res.Output)
	require.Equal(t, model.StatusProcessing, res.Job.Status)
	require.NotNil(t, sent)
	require.Equal(t, res.Job.ID.String(), sent.JobID)
	require.Equal(t, seedInputKey, sent.InputKey)
}

// CREATE - VALIDATION
func TestJobService_Create_Validation(t *testing.T) {
	svc := NewJobService(nil, &mockCache{}, nil, nil, nil)

	tests := []struct {
		name    string
		req     *model.CreateRequest
		wantErr error
	}{
		{"empty ops", &model.CreateRequest{}, model.ErrEmptyOps},
		{"unknown op kind", &model.CreateRequest{Ops: model.Steps{{Op: "rotate"}}}, model.ErrIncorrectOp},
		{"zero resize", &model.CreateRequest{Ops: model.Steps{{Op: model.OpResize, Width: 0, Height: 10}}}, model.ErrIncorrectDimensions},
		{"blur without sigma", &model.CreateRequest{Ops: model.Steps{{Op: model.OpBlur}}}, model.ErrIncorrectSigma},
		{"bad source", &model.CreateRequest{Ops: resizeOps(), SourceID: "webcam"}, model.ErrIncorrectSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner(), tt.req, nil, 0)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TRIGGER - SYNC SUCCESS
func TestJobService_Trigger_SyncOK(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "user-1", Status: model.StatusWaitingUpload, InputKey: "in", OutputKey: "out"}, nil
		},
		transitionFn: func(ctx context.Context, jid string, to model.Status, from ...model.Status) (bool, error) {
			require.Equal(t, model.StatusProcessing, to)
			require.Equal(t, []model.Status{model.StatusWaitingUpload, model.StatusFailed}, from)
			return true, nil
		},
		finishFn: func(ctx context.Context, jid string, to model.Status, finishedAt time.Time) error {
			require.Equal(t, model.StatusDone, to)
			return nil
		},
	}
	broker := &mockBroker{
		presignGetFn: func(ctx context.Context, key string) (string, error) {
			return "https://blobs/out?signed", nil
		},
	}
	inv := &mockInvoker{
		processFn: func(ctx context.Context, in string, steps model.Steps, out string) error {
			return nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, broker, inv, nil)

	res, err := svc.Trigger(ctx, owner(), id.String())
	require.NoError(t, err)
	require.False(t, res.Async)
	require.NotNil(t, res.Output)
}

// TRIGGER - BAD STATE
func TestJobService_Trigger_BadState(t *testing.T) {
	id := uuid.New()

	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "user-1", Status: model.StatusDone}, nil
		},
		transitionFn: func(ctx context.Context, jid string, to model.Status, from ...model.Status) (bool, error) {
			return false, nil // guard rejected
		},
	}

	svc := NewJobService(repo, &mockCache{}, nil, nil, nil)

	_, err := svc.Trigger(context.Background(), owner(), id.String())
	require.ErrorIs(t, err, model.ErrBadState)
}

// TRIGGER - NOT OWNER
func TestJobService_Trigger_Forbidden(t *testing.T) {
	id := uuid.New()

	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "somebody-else", Status: model.StatusWaitingUpload}, nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, nil, nil, nil)

	_, err := svc.Trigger(context.Background(), owner(), id.String())
	require.ErrorIs(t, err, model.ErrForbidden)
}

// TRIGGER - ASYNC ENQUEUE
func TestJobService_Trigger_AsyncEnqueues(t *testing.T) {
	id := uuid.New()

	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "user-1", Status: model.StatusFailed, InputKey: "in", OutputKey: "out", Ops: resizeOps()}, nil
		},
		transitionFn: func(ctx context.Context, jid string, to model.Status, from ...model.Status) (bool, error) {
			return true, nil
		},
	}
	queue := &mockEnqueuer{
		enqueueFn: func(ctx context.Context, msg *invoker.TaskMessage) error {
			require.Equal(t, id.String(), msg.JobID)
			require.Equal(t, "user-1", msg.OwnerID)
			require.Len(t, msg.Ops, 1)
			return nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, nil, nil, queue)

	res, err := svc.Trigger(context.Background(), owner(), id.String())
	require.NoError(t, err)
	require.True(t, res.Async)
	require.Nil(t, res.Output)
}

// TRIGGER - SYNC PROCESSING FAILURE MARKS FAILED
func TestJobService_Trigger_ProcessingFails(t *testing.T) {
	id := uuid.New()

	var finished model.Status
	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "user-1", Status: model.StatusWaitingUpload}, nil
		},
		transitionFn: func(ctx context.Context, jid string, to model.Status, from ...model.Status) (bool, error) {
			return true, nil
		},
		finishFn: func(ctx context.Context, jid string, to model.Status, finishedAt time.Time) error {
			finished = to
			return nil
		},
	}
	inv := &mockInvoker{
		processFn: func(ctx context.Context, in string, steps model.Steps, out string) error {
			return errors.New("decode failed")
		},
	}

	svc := NewJobService(repo, &mockCache{}, nil, inv, nil)

	_, err := svc.Trigger(context.Background(), owner(), id.String())
	require.ErrorIs(t, err, model.ErrProcessingFailed)
	require.Equal(t, model.StatusFailed, finished)
}

// GET - BAD ID / NOT FOUND
func TestJobService_Get_Errors(t *testing.T) {
	svc := NewJobService(&mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return nil, model.ErrJobNotFound
		},
	}, &mockCache{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), owner(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)

	_, err = svc.Get(context.Background(), owner(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrJobNotFound)
}

// LIST - MISS THEN CACHED
func TestJobService_List_CacheRoundTrip(t *testing.T) {
	ctx := context.Background()

	stored := map[string]*model.ListResponse{}
	lc := &mockCache{
		getFn: func(ctx context.Context, ownerID string) (*model.ListResponse, bool) {
			data, ok := stored[ownerID]
			return data, ok
		},
		putFn: func(ctx context.Context, ownerID string, data *model.ListResponse) {
			stored[ownerID] = data
		},
	}

	dbCalls := 0
	repo := &mockRepo{
		listFn: func(ctx context.Context, ownerID string, page, limit int) ([]model.Job, int, error) {
			dbCalls++
			require.Equal(t, "user-1", ownerID)
			require.Equal(t, 1, page)
			require.Equal(t, 20, limit)
			return []model.Job{{ID: uuid.New(), OwnerID: ownerID}}, 7, nil
		},
	}

	svc := NewJobService(repo, lc, nil, nil, nil)

	res, hit, err := svc.List(ctx, owner(), &model.ListRequest{})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 7, res.Total)

	res2, hit, err := svc.List(ctx, owner(), &model.ListRequest{})
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, res, res2)
	require.Equal(t, 1, dbCalls)
}

// LISTALL - ADMIN GATE
func TestJobService_ListAll_Gate(t *testing.T) {
	repo := &mockRepo{
		listAllFn: func(ctx context.Context, limit int) ([]model.Job, int, error) {
			require.Equal(t, adminListCap, limit)
			return []model.Job{}, 0, nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, nil, nil, nil)

	_, err := svc.ListAll(context.Background(), owner())
	require.ErrorIs(t, err, model.ErrAdminOnly)

	_, err = svc.ListAll(context.Background(), admin())
	require.NoError(t, err)
}

// DOWNLOAD - DONE-ONLY
func TestJobService_Download(t *testing.T) {
	id := uuid.New()
	status := model.StatusProcessing

	repo := &mockRepo{
		getFn: func(ctx context.Context, jid string) (*model.Job, error) {
			return &model.Job{ID: id, OwnerID: "user-1", Status: status, OutputKey: "out"}, nil
		},
	}
	broker := &mockBroker{
		presignGetFn: func(ctx context.Context, key string) (string, error) {
			require.Equal(t, "out", key)
			return "https://blobs/out?signed", nil
		},
	}

	svc := NewJobService(repo, &mockCache{}, broker, nil, nil)

	_, err := svc.Download(context.Background(), owner(), id.String())
	require.ErrorIs(t, err, model.ErrResultNotReady)

	status = model.StatusDone
	ref, err := svc.Download(context.Background(), owner(), id.String())
	require.NoError(t, err)
	require.NotEmpty(t, ref.URL)
}

// COMPLETE - WORKER PATH
func TestJobService_Complete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("processes and finishes done", func(t *testing.T) {
		var finished model.Status
		repo := &mockRepo{
			getFn: func(ctx context.Context, jid string) (*model.Job, error) {
				return &model.Job{ID: id, OwnerID: "user-1", Status: model.StatusProcessing, InputKey: "in", OutputKey: "out"}, nil
			},
			finishFn: func(ctx context.Context, jid string, to model.Status, finishedAt time.Time) error {
				finished = to
				return nil
			},
		}
		inv := &mockInvoker{
			processFn: func(ctx context.Context, in string, steps model.Steps, out string) error {
				return nil
			},
		}

		svc := NewJobService(repo, &mockCache{}, nil, inv, nil)
		require.NoError(t, svc.Complete(ctx, id.String()))
		require.Equal(t, model.StatusDone, finished)
	})

	t.Run("duplicate delivery of finished job is a no-op", func(t *testing.T) {
		repo := &mockRepo{
			getFn: func(ctx context.Context, jid string) (*model.Job, error) {
				return &model.Job{ID: id, Status: model.StatusDone}, nil
			},
		}

		svc := NewJobService(repo, &mockCache{}, nil, &mockInvoker{}, nil)
		require.NoError(t, svc.Complete(ctx, id.String()))
	})

	t.Run("failure marks failed but job stays re-triggerable", func(t *testing.T) {
		var finished model.Status
		repo := &mockRepo{
			getFn: func(ctx context.Context, jid string) (*model.Job, error) {
				return &model.Job{ID: id, Status: model.StatusProcessing}, nil
			},
			finishFn: func(ctx context.Context, jid string, to model.Status, finishedAt time.Time) error {
				finished = to
				return nil
			},
		}
		inv := &mockInvoker{
			processFn: func(ctx context.Context, in string, steps model.Steps, out string) error {
				return errors.New("decode failed")
			},
		}

		svc := NewJobService(repo, &mockCache{}, nil, inv, nil)
		require.Error(t, svc.Complete(ctx, id.String()))
		require.Equal(t, model.StatusFailed, finished)
	})

	t.Run("waiting job is an error", func(t *testing.T) {
		repo := &mockRepo{
			getFn: func(ctx context.Context, jid string) (*model.Job, error) {
				return &model.Job{ID: id, Status: model.StatusWaitingUpload}, nil
			},
		}

		svc := NewJobService(repo, &mockCache{}, nil, &mockInvoker{}, nil)
		require.Error(t, svc.Complete(ctx, id.String()))
	})
}

// TOOLS - LIST NORMALIZATION
func TestNormalizeListRequest(t *testing.T) {
	req := &model.ListRequest{Page: -2, Limit: 500}
	normalizeListRequest(req)
	require.Equal(t, 1, req.Page)
	require.Equal(t, 20, req.Limit)

	req = &model.ListRequest{Page: 3, Limit: 100}
	normalizeListRequest(req)
	require.Equal(t, 3, req.Page)
	require.Equal(t, 100, req.Limit)
}
