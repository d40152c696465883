package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

type recordingNavigator struct {
	mu      sync.Mutex
	reasons []string
}

func (n *recordingNavigator) RedirectToLogin(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reasons)
}

func newTestClient(t *testing.T, handler http.Handler, tokens session.Tokens) (*Client, *session.Manager, *recordingNavigator) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), tokens))
	sessions := session.NewManager(store, nil)
	nav := &recordingNavigator{}

	return New(srv.URL+"/api", sessions, WithNavigator(nav)), sessions, nav
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequest_Headers(t *testing.T) {
	var got http.Header
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}), session.Tokens{AccessToken: "a1", RefreshToken: "r1"})

	_, err := client.Request(context.Background(), "/jobs/", &RequestOptions{
		Headers: http.Header{"Content-Type": {"application/merge-patch+json"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer a1", got.Get("Authorization"))
	assert.Equal(t, "application/merge-patch+json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestRequest_NoTokenNoAuthorization(t *testing.T) {
	var auth atomic.Value
	auth.Store("unset")
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []int{})
	}), session.Tokens{})

	_, err := client.Request(context.Background(), "/public/", nil)
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())
}

func TestRequest_ReturnsBodyAsIs(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/7/", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":7,"extra":{"nested":true}}`))
	}), session.Tokens{AccessToken: "a", RefreshToken: "r"})

	raw, err := client.Request(context.Background(), "jobs/7/", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"extra":{"nested":true}}`, string(raw))
}

func TestRequest_EmptySuccessBody(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), session.Tokens{AccessToken: "a", RefreshToken: "r"})

	raw, err := client.Request(context.Background(), "/jobs/7/", &RequestOptions{Method: http.MethodPatch, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

// refreshBackend сервер, который принимает только токен "fresh"
type refreshBackend struct {
	refreshCalls atomic.Int32
	jobCalls     atomic.Int32
	refreshDelay time.Duration
	refreshFail  bool
	staleBarrier *sync.WaitGroup

	mu         sync.Mutex
	retryAuths []string
}

func (b *refreshBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/token/refresh/":
		b.refreshCalls.Add(1)
		time.Sleep(b.refreshDelay)
		if b.refreshFail {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["refresh"] != "r1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad refresh"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	case "/api/jobs/":
		b.jobCalls.Add(1)
		auth := r.Header.Get("Authorization")
		if auth != "Bearer fresh" {
			if b.staleBarrier != nil {
				b.staleBarrier.Done()
				b.staleBarrier.Wait()
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		b.mu.Lock()
		b.retryAuths = append(b.retryAuths, auth)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": []int{1}, "count": 1})
	default:
		http.NotFound(w, r)
	}
}

func TestRequest_SingleFlightRefresh(t *testing.T) {
	const n = 8
	barrier := &sync.WaitGroup{}
	barrier.Add(n)
	backend := &refreshBackend{refreshDelay: 50 * time.Millisecond, staleBarrier: barrier}
	client, sessions, _ := newTestClient(t, backend, session.Tokens{AccessToken: "stale", RefreshToken: "r1"})

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Request(context.Background(), "/jobs/", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, int32(2*n), backend.jobCalls.Load())
	assert.Len(t, backend.retryAuths, n)
	for _, auth := range backend.retryAuths {
		assert.Equal(t, "Bearer fresh", auth)
	}
	assert.Equal(t, "fresh", sessions.AccessToken(context.Background()))
}

func TestRequest_TransparentRefresh(t *testing.T) {
	backend := &refreshBackend{}
	client, _, nav := newTestClient(t, backend, session.Tokens{AccessToken: "expired", RefreshToken: "r1"})

	raw, err := client.Request(context.Background(), "/jobs/", nil)
	require.NoError(t, err)

	items, count, err := DecodeList[int](raw)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, items)
	assert.Equal(t, 1, count)
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Zero(t, nav.count())
}

func TestRequest_NoDoubleRetry(t *testing.T) {
	var jobCalls, refreshCalls atomic.Int32
	client, sessions, nav := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/token/refresh/":
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
		default:
			jobCalls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "still no"})
		}
	}), session.Tokens{AccessToken: "stale", RefreshToken: "r1"})

	_, err := client.Request(context.Background(), "/jobs/", nil)
	require.Error(t, err)

	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	assert.Equal(t, "still no", err.Error())
	assert.Equal(t, int32(2), jobCalls.Load())
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "fresh", sessions.AccessToken(context.Background()))
	assert.Zero(t, nav.count())
}

func TestRequest_RefreshFailureExpiresSession(t *testing.T) {
	backend := &refreshBackend{refreshFail: true}
	client, sessions, nav := newTestClient(t, backend, session.Tokens{AccessToken: "stale", RefreshToken: "r1"})

	_, err := client.Request(context.Background(), "/jobs/", nil)
	require.Error(t, err)

	assert.Equal(t, errors.ErrSessionExpired, errors.CodeOf(err))
	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
	assert.Nil(t, sessions.State(context.Background()).User)
	assert.Equal(t, []string{ReasonSessionExpired}, nav.reasons)
	assert.Equal(t, int32(1), backend.jobCalls.Load())
}

func TestRequest_401WithoutTokenDoesNotRefresh(t *testing.T) {
	backend := &refreshBackend{}
	client, _, nav := newTestClient(t, backend, session.Tokens{})

	_, err := client.Request(context.Background(), "/jobs/", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	assert.Zero(t, backend.refreshCalls.Load())
	assert.Zero(t, nav.count())
}

func TestRequest_RefreshEndpointDoesNotRecurse(t *testing.T) {
	backend := &refreshBackend{refreshFail: true}
	client, sessions, _ := newTestClient(t, backend, session.Tokens{AccessToken: "stale", RefreshToken: "r1"})

	_, err := client.Request(context.Background(), "/auth/token/refresh/", &RequestOptions{Method: http.MethodPost})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	assert.Equal(t, int32(1), backend.refreshCalls.Load())

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, "stale", tokens.AccessToken)
}

func TestRequest_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   errors.ErrorCode
		msg    string
	}{
		{http.StatusBadRequest, `{"details":{"email":["required"]}}`, errors.ErrValidation, "required"},
		{http.StatusForbidden, `{"error":"no access"}`, errors.ErrForbidden, "no access"},
		{http.StatusNotFound, ``, errors.ErrNotFound, "Запрос завершился с ошибкой (HTTP 404)"},
		{http.StatusInternalServerError, `<html>oops</html>`, errors.ErrInternal, "Запрос завершился с ошибкой (HTTP 500)"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), session.Tokens{AccessToken: "a", RefreshToken: "r"})

			_, err := client.Request(context.Background(), "/x/", nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, tt.msg, err.Error())

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.status, e.Status)
		})
	}
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(url, session.NewManager(session.NewMemoryStore(), nil))
	_, err := client.Request(context.Background(), "/jobs/", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNetwork, errors.CodeOf(err))
}

func TestRequest_InvalidJSONSuccess(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}), session.Tokens{})

	_, err := client.Request(context.Background(), "/x/", nil)
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(err))
}

func TestRequest_WaiterCanAbandonRefresh(t *testing.T) {
	release := make(chan struct{})
	var refreshCalls atomic.Int32
	client, sessions, nav := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/token/refresh/":
			refreshCalls.Add(1)
			<-release
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
		default:
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		}
	}), session.Tokens{AccessToken: "stale", RefreshToken: "r1"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Request(ctx, "/jobs/", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNetwork, errors.CodeOf(err))
	assert.Zero(t, nav.count())

	// Общее обновление продолжается и без отменившегося ожидающего
	close(release)
	require.Eventually(t, func() bool {
		return sessions.AccessToken(context.Background()) == "fresh"
	}, 2*time.Second, 5*time.Millisecond)

	_, err = client.Request(context.Background(), "/jobs/", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestRefreshToken_NoRefreshTokenFailsFast(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), session.Tokens{AccessToken: "a"})

	_, err := client.RefreshToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	assert.Zero(t, calls.Load())
}

func TestRefreshToken_FailureLeavesTokens(t *testing.T) {
	backend := &refreshBackend{refreshFail: true}
	client, sessions, nav := newTestClient(t, backend, session.Tokens{AccessToken: "a", RefreshToken: "r1"})

	_, err := client.RefreshToken(context.Background())
	require.Error(t, err)

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, session.Tokens{AccessToken: "a", RefreshToken: "r1"}, tokens)
	assert.Zero(t, nav.count())
}

func TestRefreshToken_Success(t *testing.T) {
	backend := &refreshBackend{}
	client, sessions, _ := newTestClient(t, backend, session.Tokens{AccessToken: "a", RefreshToken: "r1"})

	token, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, session.Tokens{AccessToken: "fresh", RefreshToken: "r1"}, tokens)
}

func TestWithRateLimit(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, nil)
	}), session.Tokens{})
	WithRateLimit(0.001, 1)(client)

	_, err := client.Request(context.Background(), "/x/", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Request(ctx, "/x/", nil)
	assert.Equal(t, errors.ErrRateLimited, errors.CodeOf(err))
}

func TestRefreshToken_RotatedRefreshTokenIsNotStored(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh", "refresh": "rotated"})
	}), session.Tokens{AccessToken: "a", RefreshToken: "r1"})

	token, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, session.Tokens{AccessToken: "fresh", RefreshToken: "r1"}, tokens)
}
