package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	herrors "sjsage522/asinharvester/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemoteStore(t *testing.T) Store {
	t.Helper()
	backing := newSQLiteStore(t)
	server := httptest.NewServer(NewServer(backing, "secret").Handler())
	t.Cleanup(server.Close)

	s := NewRemoteStore(server.URL+"/", "secret", time.Second)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRemoteStore(t *testing.T) {
	runConformance(t, newRemoteStore)
}

func TestRemoteStore_Non2xxIsStorageFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database offline"})
	}))
	defer server.Close()

	s := NewRemoteStore(server.URL, "", time.Second)
	_, err := s.GetOne(context.Background(), "alice", "console")
	require.Error(t, err)
	assert.True(t, herrors.IsType(err, herrors.ErrorTypeStorage))
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "database offline")
}

func TestRemoteStore_WrongKey(t *testing.T) {
	server := httptest.NewServer(NewServer(newSQLiteStore(t), "secret").Handler())
	defer server.Close()

	s := NewRemoteStore(server.URL, "guess", time.Second)
	_, err := s.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	// health stays open for probes
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRemoteStore_Unreachable(t *testing.T) {
	s := NewRemoteStore("http://127.0.0.1:1", "", 200*time.Millisecond)
	err := s.Ping(context.Background())
	assert.True(t, herrors.IsType(err, herrors.ErrorTypeStorage))
}

func TestServer_WireFormat(t *testing.T) {
	server := httptest.NewServer(NewServer(newSQLiteStore(t), "").Handler())
	defer server.Close()

	post := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		return resp
	}

	resp := post("/asins/save", map[string]any{"account": "alice", "category": "console", "asins": []string{asinA, asinB}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, map[string]any{"success": true, "newCount": float64(2), "totalCount": float64(2)}, saved)

	resp = post("/asins/save", map[string]any{"account": "alice"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	statsResp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	var stats map[string]map[string]int
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, map[string]int{"totalAsins": 2, "accountCount": 1, "categoryCount": 1}, stats["stats"])

	getResp, err := http.Get(server.URL + "/asins/get?account=alice")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, getResp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/asins/delete",
		bytes.NewReader([]byte(`{"account":"alice","category":"console"}`)))
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	var deleted map[string]bool
	require.NoError(t, json.NewDecoder(delResp.Body).Decode(&deleted))
	assert.Equal(t, map[string]bool{"success": true, "deleted": true}, deleted)

	wrongMethod, err := http.Get(server.URL + "/asins/save")
	require.NoError(t, err)
	defer wrongMethod.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.StatusCode)
}

// failingStore answers every stats request with err
type failingStore struct {
	Store
	err error
}

func (f failingStore) GetStats(context.Context) (Stats, error) { return Stats{}, f.err }

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", herrors.NewValidation("account", "account is required"), http.StatusBadRequest},
		{"configuration", herrors.NewConfiguration("bad backend", nil), http.StatusBadRequest},
		{"network", herrors.NewNetwork("redis", "dial", nil), http.StatusBadGateway},
		{"timeout", herrors.NewTimeout("redis", 3), http.StatusGatewayTimeout},
		{"storage", herrors.NewStorage("sqlite", "disk full", nil), http.StatusInternalServerError},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(NewServer(failingStore{err: tt.err}, "").Handler())
			defer server.Close()

			resp, err := http.Get(server.URL + "/stats")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}
