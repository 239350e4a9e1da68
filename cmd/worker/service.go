package main

import "context"

type JobWorkerService interface {
	Complete(ctx context.Context, jobID string) error
}
