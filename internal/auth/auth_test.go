package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imagemill/imagemill/internal/model"
	"github.com/stretchr/testify/require"
)

func TestRemote_Verify_OK(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"user-1","email":"u@example.com","groups":["imgproc-admins"]}`))
	}))
	defer idp.Close()

	v := NewRemote(idp.URL)

	p, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	require.Equal(t, "user-1", p.Subject)
	require.True(t, p.InGroup("imgproc-admins"))
	require.False(t, p.InGroup("other-group"))
}

func TestRemote_Verify_Rejected(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer idp.Close()

	v := NewRemote(idp.URL)

	_, err := v.Verify(context.Background(), "expired-token")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRemote_Verify_EmptyToken(t *testing.T) {
	v := NewRemote("http://idp.invalid/userinfo")

	_, err := v.Verify(context.Background(), "")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRemote_Verify_MissingSubject(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"email":"nobody@example.com"}`))
	}))
	defer idp.Close()

	v := NewRemote(idp.URL)

	_, err := v.Verify(context.Background(), "token")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRemote_Verify_ProviderError(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer idp.Close()

	v := NewRemote(idp.URL)

	_, err := v.Verify(context.Background(), "token")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrUnauthenticated)
}
