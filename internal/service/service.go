// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/cache"
	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/imagemill/imagemill/internal/mwlogger"
	"github.com/imagemill/imagemill/internal/repository"
)

const (
	seedInputKey = "seed/seed.png"
	adminListCap = 50
	adminGroup   = "imgproc-admins"
)

// TransferBroker - контракт для работы с хранилищем и пресайн-ссылками
type TransferBroker interface {
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	PresignPut(ctx context.Context, key string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// Enqueuer is the async dispatch path; nil when the service runs sync.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *invoker.TaskMessage) error
}

type JobService struct {
	repo    repository.JobRepo
	cache   cache.ListCache
	broker  TransferBroker
	invoker invoker.Invoker
	queue   Enqueuer
}

// NewJobService wires the orchestrator. Pass a nil queue for the synchronous
// modes (local pipeline or remote worker call); pass a queue to make
// triggering fire-and-forget.
func NewJobService(repo repository.JobRepo, lc cache.ListCache, broker TransferBroker, inv invoker.Invoker, queue Enqueuer) *JobService {
	return &JobService{
		repo:    repo,
		cache:   lc,
		broker:  broker,
		invoker: inv,
		queue:   queue,
	}
}

// Create validates the requested ops, persists the job record and either
// kicks off processing right away (seed source / inline upload) or hands the
// client a presigned upload URL.
func (s *JobService) Create(ctx context.Context, principal *auth.Principal, req *model.CreateRequest, inline io.Reader, inlineSize int64) (*model.CreateResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:        uuid.New(),
		OwnerID:   principal.Subject,
		SourceID:  req.SourceID,
		Ops:       req.Ops,
		CreatedAt: time.Now().UTC(),
	}
	job.InputKey = inputKeyFor(job)
	job.OutputKey = outputKeyFor(job)

	hasInput := job.SourceID == model.SourceSeed || inline != nil
	if hasInput {
		job.Status = model.StatusProcessing
	} else {
		job.Status = model.StatusWaitingUpload
	}

	if inline != nil {
		if err := s.broker.Put(ctx, job.InputKey, inlineSize, req.ContentType, inline); err != nil {
			logger.Error().Err(err).Msg("Failed to save inline upload in storage")
			return nil, model.ErrCommon500
		}
	}

	if err := s.repo.Create(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to create job in DB")
		return nil, model.ErrCommon500
	}
	s.cache.Invalidate(ctx, job.OwnerID)

	if hasInput {
		if s.queue != nil {
			if err := s.enqueue(ctx, job); err != nil {
				return nil, err
			}
			return &model.CreateResult{Job: job}, nil
		}
		output, err := s.dispatch(ctx, job)
		if err != nil {
			return nil, err
		}
		return &model.CreateResult{Job: job, Output: output}, nil
	}

	uploadURL, err := s.broker.PresignPut(ctx, job.InputKey)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to presign upload URL")
		return nil, model.ErrCommon500
	}

	return &model.CreateResult{
		Job: job,
		Upload: &model.UploadRef{
			URL:         uploadURL,
			Key:         job.InputKey,
			ContentType: req.ContentType,
		},
	}, nil
}

// Trigger moves the job into `processing` and dispatches it. Only the owner
// may trigger, and only from waiting_upload or failed: the conditional store
// update makes concurrent triggers race for a single win.
func (s *JobService) Trigger(ctx context.Context, principal *auth.Principal, id string) (*model.ProcessResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	job, err := s.fetchOwned(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	transitioned, err := s.repo.Transition(ctx, id, model.StatusProcessing,
		model.StatusWaitingUpload, model.StatusFailed)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to transition job %q to `processing`", id))
		return nil, model.ErrCommon500
	}
	if !transitioned {
		return nil, model.ErrBadState
	}
	job.Status = model.StatusProcessing
	s.cache.Invalidate(ctx, job.OwnerID)

	if s.queue != nil {
		if err := s.enqueue(ctx, job); err != nil {
			return nil, err
		}
		return &model.ProcessResult{Async: true}, nil
	}

	output, err := s.dispatch(ctx, job)
	if err != nil {
		return nil, err
	}
	return &model.ProcessResult{Output: output}, nil
}

// Get returns a single job, owner-only.
func (s *JobService) Get(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error) {
	return s.fetchOwned(ctx, principal, id)
}

// List returns one page of the principal's jobs. The second return reports
// whether the page came from the cache; a hit may be up to TTL stale.
func (s *JobService) List(ctx context.Context, principal *auth.Principal, req *model.ListRequest) (*model.ListResponse, bool, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	normalizeListRequest(req)

	if data, ok := s.cache.Get(ctx, principal.Subject); ok {
		return data, true, nil
	}

	items, total, err := s.repo.List(ctx, principal.Subject, req.Page, req.Limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch job list from DB")
		return nil, false, model.ErrCommon500
	}

	data := &model.ListResponse{
		Items: items,
		Page:  req.Page,
		Limit: req.Limit,
		Total: total,
	}
	s.cache.Put(ctx, principal.Subject, data)

	return data, false, nil
}

// ListAll is the administrative unscoped listing, gated on group membership.
func (s *JobService) ListAll(ctx context.Context, principal *auth.Principal) (*model.ListResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if !principal.InGroup(adminGroup) {
		return nil, model.ErrAdminOnly
	}

	items, total, err := s.repo.ListAll(ctx, adminListCap)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch admin job list from DB")
		return nil, model.ErrCommon500
	}

	return &model.ListResponse{Items: items, Limit: adminListCap, Total: total}, nil
}

// Download hands out a presigned GET URL for the result, done-only.
func (s *JobService) Download(ctx context.Context, principal *auth.Principal, id string) (*model.OutputRef, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	job, err := s.fetchOwned(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if job.Status != model.StatusDone {
		return nil, model.ErrResultNotReady
	}

	url, err := s.broker.PresignGet(ctx, job.OutputKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to presign download URL for job %q", id))
		return nil, model.ErrCommon500
	}

	return &model.OutputRef{ImageID: job.ID.String(), URL: url}, nil
}

// Complete is the worker-side entrypoint: run the pipeline for an already
// `processing` job and write the terminal status. Safe under at-least-once
// delivery - a job already done is skipped, and the terminal write is
// idempotent.
func (s *JobService) Complete(ctx context.Context, jobID string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch job %q from DB: %w", jobID, err)
	}

	switch job.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	case model.StatusWaitingUpload:
		// enqueue happens strictly after the processing transition
		return fmt.Errorf("job %q is still waiting for upload", jobID)
	}

	if err := s.invoker.Process(ctx, job.InputKey, job.Ops, job.OutputKey); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Processing failed for job %q", jobID))
		s.finish(ctx, job, false)
		return fmt.Errorf("failed to process job %q: %w", jobID, err)
	}

	s.finish(ctx, job, true)
	return nil
}

// enqueue hands the job to the async path. A publish failure is terminal:
// the job just transitioned to `processing` and nothing else will pick it up.
func (s *JobService) enqueue(ctx context.Context, job *model.Job) error {
	logger := mwlogger.LoggerFromContext(ctx)

	msg := &invoker.TaskMessage{
		JobID:     job.ID.String(),
		OwnerID:   job.OwnerID,
		InputKey:  job.InputKey,
		OutputKey: job.OutputKey,
		Ops:       job.Ops,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to enqueue job %q", job.ID))
		s.finish(ctx, job, false)
		return model.ErrCommon500
	}
	return nil
}

// dispatch runs the invoker synchronously and records the terminal state.
func (s *JobService) dispatch(ctx context.Context, job *model.Job) (*model.OutputRef, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := s.invoker.Process(ctx, job.InputKey, job.Ops, job.OutputKey); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Processing failed for job %q", job.ID))
		s.finish(ctx, job, false)
		return nil, model.ErrProcessingFailed
	}
	s.finish(ctx, job, true)

	url, err := s.broker.PresignGet(ctx, job.OutputKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to presign download URL for job %q", job.ID))
		return nil, model.ErrCommon500
	}

	return &model.OutputRef{ImageID: job.ID.String(), URL: url}, nil
}

// finish writes done/failed with finishedAt and drops the owner's cached
// listing. Best-effort: a failed terminal write leaves the job `processing`
// for a later retry delivery.
func (s *JobService) finish(ctx context.Context, job *model.Job, ok bool) {
	logger := mwlogger.LoggerFromContext(ctx)

	status := model.StatusFailed
	if ok {
		status = model.StatusDone
	}

	now := time.Now().UTC()
	if err := s.repo.Finish(ctx, job.ID.String(), status, now); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to finish job %q as %q", job.ID, status))
		return
	}
	job.Status = status
	job.FinishedAt = &now

	s.cache.Invalidate(ctx, job.OwnerID)
}

func (s *JobService) fetchOwned(ctx context.Context, principal *auth.Principal, id string) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, model.ErrJobNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
		return nil, model.ErrCommon500
	}

	if job.OwnerID != principal.Subject {
		return nil, model.ErrForbidden
	}

	return job, nil
}
