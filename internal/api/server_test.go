package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"supmap-directions/internal/config"
	"supmap-directions/internal/navigation"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	sessions map[string]*navigation.SessionState
	err      error
}

func (m *memoryCache) SetSession(_ context.Context, s *navigation.SessionState) error {
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memoryCache) GetSession(_ context.Context, id string) (*navigation.SessionState, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, navigation.ErrSessionNotFound
	}
	return s, nil
}

func (m *memoryCache) DeleteSession(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func newTestServer(cache *memoryCache) *httptest.Server {
	s := NewServer(&config.Config{}, nil, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return httptest.NewServer(s.routes())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&memoryCache{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "API server is started.", string(body))
}

func TestGetSession(t *testing.T) {
	cache := &memoryCache{sessions: map[string]*navigation.SessionState{
		"abc": {
			SessionID:   "abc",
			Status:      navigation.StatusRouteReady,
			CurrentPath: []navigation.Point{{Lat: 1, Lon: 2}},
		},
	}}
	srv := newTestServer(cache)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got navigation.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, navigation.StatusRouteReady, got.Status)
	assert.Equal(t, []navigation.Point{{Lat: 1, Lon: 2}}, got.CurrentPath)
}

func TestGetSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "cache down", err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&memoryCache{sessions: map[string]*navigation.SessionState{}, err: tt.err})
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/sessions/missing")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	cache := &memoryCache{sessions: map[string]*navigation.SessionState{"abc": {SessionID: "abc"}}}
	srv := newTestServer(cache)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/abc", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, cache.sessions)
}
