package worker

import "context"

type mockCompleter struct {
	completeFn func(ctx context.Context, jobID string) error
}

func (m *mockCompleter) Complete(ctx context.Context, jobID string) error {
	return m.completeFn(ctx, jobID)
}
