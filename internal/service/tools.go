package service

import (
	"fmt"

	"github.com/imagemill/imagemill/internal/model"
)

func validateCreateRequest(req *model.CreateRequest) error {
	if req.SourceID == "" {
		req.SourceID = model.SourceUpload
	}
	if req.SourceID != model.SourceSeed && req.SourceID != model.SourceUpload {
		return model.ErrIncorrectSource
	}

	if len(req.Ops) == 0 {
		return model.ErrEmptyOps
	}
	for _, step := range req.Ops {
		if err := step.Validate(); err != nil {
			return err
		}
	}

	// default the upload content-type; anything exotic falls back to PNG
	if req.ContentType == "" || !model.InImageTypeMap[req.ContentType] {
		req.ContentType = model.PNG
	}

	return nil
}

func normalizeListRequest(req *model.ListRequest) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
}

// Input/output locations are deterministic: derived from owner and job id,
// or the fixed seed path.
func inputKeyFor(job *model.Job) string {
	if job.SourceID == model.SourceSeed {
		return seedInputKey
	}
	return fmt.Sprintf("users/%s/jobs/%s/input", job.OwnerID, job.ID)
}

func outputKeyFor(job *model.Job) string {
	return fmt.Sprintf("users/%s/jobs/%s/output.png", job.OwnerID, job.ID)
}
