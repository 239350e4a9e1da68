// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	Status string
	OpKind string
	Source string
)

const (
	StatusWaitingUpload Status = "waiting_upload"
	StatusProcessing    Status = "processing"
	StatusDone          Status = "done"
	StatusFailed        Status = "failed"
)

var StatusMap = map[Status]bool{
	StatusWaitingUpload: true,
	StatusProcessing:    true,
	StatusDone:          true,
	StatusFailed:        true,
}

const (
	OpResize  OpKind = "resize"
	OpBlur    OpKind = "blur"
	OpSharpen OpKind = "sharpen"
)

var OpKindMap = map[OpKind]bool{
	OpResize:  true,
	OpBlur:    true,
	OpSharpen: true,
}

const (
	SourceSeed   Source = "seed"
	SourceUpload Source = "upload"
)

//---------------------

// Step is one transform instruction. The kind set is closed: anything
// outside {resize, blur, sharpen} is rejected at validation time instead
// of being skipped later.
type Step struct {
	Op     OpKind   `json:"op"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Sigma  *float64 `json:"sigma,omitempty"`
}

func (s Step) Validate() error {
	switch s.Op {
	case OpResize:
		if s.Width <= 0 || s.Height <= 0 {
			return ErrIncorrectDimensions
		}
	case OpBlur:
		if s.Sigma == nil || *s.Sigma < 0 {
			return ErrIncorrectSigma
		}
	case OpSharpen:
		if s.Sigma != nil && *s.Sigma < 0 {
			return ErrIncorrectSigma
		}
	default:
		return ErrIncorrectOp
	}
	return nil
}

type Job struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    string     `json:"ownerId"`
	SourceID   Source     `json:"sourceId"`
	Ops        Steps      `json:"ops"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	InputKey   string     `json:"-"`
	OutputKey  string     `json:"-"`
}

//-------------------

type ListRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type ListResponse struct {
	Items []Job `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int   `json:"total"`
}

type CreateRequest struct {
	Ops         Steps
	SourceID    Source
	ContentType string
}

// UploadRef points the client at a presigned PUT URL for the job input.
type UploadRef struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
}

// OutputRef points the client at a presigned GET URL for the result.
type OutputRef struct {
	ImageID string `json:"imageId"`
	URL     string `json:"url"`
}

type CreateResult struct {
	Job    *Job
	Upload *UploadRef
	Output *OutputRef
}

type ProcessResult struct {
	Async  bool
	Output *OutputRef
}

// ------------------

var (
	ErrCommon500           error = errors.New("something went wrong. Try again later")     // 500
	ErrIncorrectQuery      error = errors.New("incorrect query parameters")                // 400
	ErrIncorrectID         error = errors.New("incorrect job UUID")                        // 400
	ErrJobNotFound         error = errors.New("specified job UUID doesn't exist")          // 404
	ErrEmptyOps            error = errors.New("provide a non-empty ops array")             // 400
	ErrIncorrectOp         error = errors.New("operation is not supported")                // 400
	ErrIncorrectDimensions error = errors.New("resize width/height must be positive")      // 400
	ErrIncorrectSigma      error = errors.New("sigma must be non-negative")                // 400
	ErrIncorrectSource     error = errors.New("unknown sourceId")                          // 400
	ErrUnauthenticated     error = errors.New("missing or invalid bearer token")           // 401
	ErrForbidden           error = errors.New("principal doesn't own this job")            // 403
	ErrAdminOnly           error = errors.New("requires administrator group")              // 403
	ErrBadState            error = errors.New("job state doesn't permit this operation")   // 400
	ErrResultNotReady      error = errors.New("requested result is not processed yet")     // 400
	ErrJobConflict         error = errors.New("job with this UUID already exists")         // 500
	ErrProcessingFailed    error = errors.New("processing failed, job marked as 'failed'") // 500
)

//--------------------

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
)

var InImageTypeMap = map[string]bool{
	PNG:  true,
	JPEG: true,
}

//--------------------

// Steps is stored as JSONB in postgres.
type Steps []Step

func (s *Steps) Scan(value any) error {
	if value == nil {
		*s = Steps{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for Steps")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Steps: %w", err)
	}
	return nil
}

func (s Steps) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Steps to JSONB: %w", err)
	}

	return res, nil
}
