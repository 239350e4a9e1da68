// Package auth verifies bearer credentials against an external identity provider
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/imagemill/imagemill/internal/model"
)

// Principal is the verified identity a request acts as. Subject is the stable
// identifier jobs are owned by.
type Principal struct {
	Subject  string   `json:"sub"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}

func (p Principal) InGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}

// Verifier turns a raw bearer token into a Principal. Credential issuance is
// the identity provider's business, not ours.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Remote delegates verification to the provider's userinfo endpoint: the
// token is valid iff the provider accepts it and returns the claims.
type Remote struct {
	userinfoURL string
	client      *http.Client
}

func NewRemote(userinfoURL string) *Remote {
	return &Remote{
		userinfoURL: userinfoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Remote) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, model.ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, model.ErrUnauthenticated
	default:
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var principal Principal
	if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if principal.Subject == "" {
		return nil, model.ErrUnauthenticated
	}

	return &principal, nil
}
