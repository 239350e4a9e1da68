// Package cache provides the per-owner listing cache behind a swappable interface
package cache

import (
	"context"

	"github.com/imagemill/imagemill/internal/model"
)

// ListCache holds one page of listing results per owner. The orchestrator
// must invalidate after every mutation touching that owner's job list.
type ListCache interface {
	Get(ctx context.Context, ownerID string) (*model.ListResponse, bool)
	Put(ctx context.Context, ownerID string, data *model.ListResponse)
	Invalidate(ctx context.Context, ownerID string)
}
