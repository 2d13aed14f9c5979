package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/auth"
	"github.com/yourname/clockwork/internal/kvstore"
)

func newTestGateway(baseURL string) (*Gateway, *auth.CredentialManager) {
	creds := auth.NewCredentialManager(kvstore.NewMemStore(), internal.NopLogger{})
	return New(baseURL, creds, internal.NopLogger{}), creds
}

// loggedIn stamps a non-expiring token pair so AuthenticatedCall skips
// the pre-refresh.
func loggedIn(creds *auth.CredentialManager) {
	creds.SetTokens("acc", "ref", "alice")
}

func TestAuthenticatedCallSendsBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	loggedIn(creds)

	raw := gw.AuthenticatedCall(context.Background(), http.MethodGet, "/sessions/", nil)
	require.NotNil(t, raw)
	assert.Equal(t, "Bearer acc", gotAuth)
}

func TestAuthenticatedCallWithoutTokens(t *testing.T) {
	gw, _ := newTestGateway("http://127.0.0.1:0")
	assert.Nil(t, gw.AuthenticatedCall(context.Background(), http.MethodGet, "/sessions/", nil))
}

func TestAuthenticatedCallUnreachableReturnsNil(t *testing.T) {
	gw, creds := newTestGateway("http://127.0.0.1:1")
	loggedIn(creds)
	assert.Nil(t, gw.AuthenticatedCall(context.Background(), http.MethodGet, "/sessions/", nil))
}

func TestAuthenticatedCallRefreshesOnceOn401(t *testing.T) {
	var calls, refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		w.Write([]byte(`{"sessions":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL + "/api")
	loggedIn(creds)

	raw := gw.AuthenticatedCall(context.Background(), http.MethodGet, "/sessions/", nil)
	require.NotNil(t, raw)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.Equal(t, "fresh", creds.AccessToken())
}

func TestAuthenticatedCallPersistent401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	loggedIn(creds)
	assert.Nil(t, gw.AuthenticatedCall(context.Background(), http.MethodGet, "/sessions/", nil))
}

func TestAuthenticatedCallEmptyBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	loggedIn(creds)

	raw := gw.AuthenticatedCall(context.Background(), http.MethodDelete, "/sessions/1", nil)
	assert.Equal(t, json.RawMessage(`{}`), raw)
}

func TestPublicCallDistinguishesRejectionFromUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials"})
	}))
	defer srv.Close()

	gw, _ := newTestGateway(srv.URL)
	raw, remoteErr := gw.PublicCall(context.Background(), http.MethodPost, "/auth/login", map[string]string{})
	assert.Nil(t, raw)
	require.NotNil(t, remoteErr)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
	assert.Equal(t, "Invalid credentials", remoteErr.Detail)

	gw, _ = newTestGateway("http://127.0.0.1:1")
	raw, remoteErr = gw.PublicCall(context.Background(), http.MethodPost, "/auth/login", map[string]string{})
	assert.Nil(t, raw)
	assert.Nil(t, remoteErr)
}

func TestCheckHealthStripsAPISuffix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	gw, _ := newTestGateway(srv.URL + "/api")
	assert.True(t, gw.CheckHealth(context.Background()))
	assert.Equal(t, "/health", gotPath)

	down, _ := newTestGateway("http://127.0.0.1:1/api")
	assert.False(t, down.CheckHealth(context.Background()))
}

func TestLoginStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "alice", body["username"])
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "acc",
			"refreshToken": "ref",
		})
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	res := gw.Login(context.Background(), "alice", "hunter2long")
	assert.True(t, res.Success)
	assert.Equal(t, "Login successful", res.Message)
	assert.True(t, creds.IsAuthenticated())
	assert.Equal(t, "alice", creds.Username())
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	res := gw.Login(context.Background(), "alice", "wrong-password")
	assert.False(t, res.Success)
	assert.Equal(t, "Login failed. Please check your credentials.", res.Message)
	assert.False(t, creds.IsAuthenticated())
}

func TestLoginUnreachable(t *testing.T) {
	gw, _ := newTestGateway("http://127.0.0.1:1")
	res := gw.Login(context.Background(), "alice", "hunter2long")
	assert.False(t, res.Success)
	assert.Equal(t, "Cannot reach the server. Please try again later.", res.Message)
}

func TestLogoutClearsCredentialsEvenWhenOffline(t *testing.T) {
	gw, creds := newTestGateway("http://127.0.0.1:1")
	loggedIn(creds)
	gw.Logout(context.Background())
	assert.False(t, creds.IsAuthenticated())
}

func TestRemoteSessionAndSettingsCalls(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	loggedIn(creds)
	ctx := context.Background()

	require.NotNil(t, gw.FetchSessions(ctx, 10, 20))
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/sessions/", gotPath)
	assert.Equal(t, "limit=10&offset=20", gotQuery)

	require.NotNil(t, gw.DeleteRemoteSession(ctx, "42"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/sessions/42", gotPath)

	require.NotNil(t, gw.FetchSettings(ctx))
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/settings/", gotPath)

	var pushed map[string]any
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&pushed)
		w.Write([]byte(`{}`))
	}))
	defer srv2.Close()
	gw2, creds2 := newTestGateway(srv2.URL)
	loggedIn(creds2)
	require.NotNil(t, gw2.UpdateSettings(ctx, map[string]any{"hourly_rate": 600}))
	assert.Equal(t, 600.0, pushed["hourly_rate"])
}

func TestUploadRetriesAfter401(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/images/upload", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "lap.png", header.Filename)
		w.Write([]byte(`{"id":"img-1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw, creds := newTestGateway(srv.URL)
	loggedIn(creds)

	raw := gw.Upload(context.Background(), "/images/upload", "file", "lap.png", []byte("png-bytes"))
	require.NotNil(t, raw)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}
