package backendclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureChatProject(t *testing.T) {
	var got ChatProjectRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot/chat-project", r.URL.Path)
		assert.Equal(t, "internal", r.Header.Get("X-Bot-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"project":{"id":3,"project_key":"abc","title":"Team","role":"OWNER"}}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/", InternalToken: "internal", Timeout: time.Second})

	p, err := c.EnsureChatProject(context.Background(), ChatProjectRequest{
		ChatID:   -100,
		ChatType: "supergroup",
		Title:    "Team",
		User:     &User{ID: 7, FirstName: "Ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", p.ProjectKey)
	assert.Equal(t, "OWNER", p.Role)

	assert.Equal(t, int64(-100), got.ChatID)
	assert.Equal(t, "supergroup", got.ChatType)
	require.NotNil(t, got.User)
	assert.Equal(t, int64(7), got.User.ID)
}

func TestEnsureChatProject_ErrorStatusIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"ok":false,"detail":"database is not configured"}`))
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL, Timeout: time.Second}).EnsureChatProject(context.Background(), ChatProjectRequest{ChatID: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend 503")
	assert.Contains(t, err.Error(), "database is not configured")
}

func TestEnsureChatProject_UnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL, Timeout: time.Second}).EnsureChatProject(context.Background(), ChatProjectRequest{ChatID: -1})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestEnsureChatProject_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{URL: url, Timeout: time.Second}).EnsureChatProject(context.Background(), ChatProjectRequest{ChatID: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend is unreachable")
}

func TestEnsureChatProject_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}).EnsureChatProject(context.Background(), ChatProjectRequest{ChatID: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend is unreachable")
}
