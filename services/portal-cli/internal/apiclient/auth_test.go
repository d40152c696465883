package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

func TestLogin_PersistsTokensAndProfile(t *testing.T) {
	var sawAuth atomic.Bool
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login/", r.URL.Path)
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}

		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-horse" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access":  "a1",
			"refresh": "r1",
			"user":    map[string]string{"id": "12", "email": creds.Email, "name": "Pat", "role": "contractor"},
		})
	}), session.Tokens{AccessToken: "leftover", RefreshToken: "old"})

	_, err := client.Login(context.Background(), Credentials{Email: "pat@fieldops.io", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	assert.Equal(t, "Invalid credentials", err.Error())

	user, err := client.Login(context.Background(), Credentials{Email: "pat@fieldops.io", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleContractor, user.Role)
	assert.False(t, sawAuth.Load())

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, session.Tokens{AccessToken: "a1", RefreshToken: "r1"}, tokens)
	assert.Equal(t, "12", sessions.State(context.Background()).User.ID)
}

func TestLogin_FetchesProfileWhenAbsent(t *testing.T) {
	var meCalls atomic.Int32
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "opaque", "refresh_token": "r"})
		case "/api/auth/me/":
			meCalls.Add(1)
			assert.Equal(t, "Bearer opaque", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]string{"id": "3", "role": "field-manager"})
		}
	}), session.Tokens{})

	user, err := client.Login(context.Background(), Credentials{Email: "m@fieldops.io", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleFieldManager, user.Role)
	assert.Equal(t, int32(1), meCalls.Load())
	assert.Equal(t, session.RoleFieldManager, sessions.User().Role)
}

func TestLogin_ProfileFailureLeavesNoSession(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			writeJSON(w, http.StatusOK, map[string]string{"access": "opaque-a", "refresh": "opaque-r"})
		case "/api/auth/me/":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		}
	}), session.Tokens{})

	_, err := client.Login(context.Background(), Credentials{Email: "m@fieldops.io", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())

	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
	assert.False(t, sessions.Authenticated(context.Background()))
	assert.Nil(t, sessions.State(context.Background()).User)
}

func TestUserForToken(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"id": "7", "role": "admin"}})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		}
	}), session.Tokens{AccessToken: "mine", RefreshToken: "r"})

	user, err := client.UserForToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, user.Role)

	_, err = client.UserForToken(context.Background(), "forged")
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))

	_, err = client.UserForToken(context.Background(), "")
	assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))

	tokens, _ := sessions.Tokens(context.Background())
	assert.Equal(t, session.Tokens{AccessToken: "mine", RefreshToken: "r"}, tokens)
	assert.Nil(t, sessions.User())
}

func TestLogin_MissingToken(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}), session.Tokens{})

	_, err := client.Login(context.Background(), Credentials{Email: "a@b.io", Password: "x"})
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(err))
	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
}

func TestRegister_DoesNotPersistTokens(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register/", r.URL.Path)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"access": "a", "refresh": "r",
			"user": map[string]string{"id": "20", "role": "customer"},
		})
	}), session.Tokens{})

	user, err := client.Register(context.Background(), Registration{Email: "c@b.io", Password: "secret123", Role: "customer"})
	require.NoError(t, err)
	assert.Equal(t, "20", user.ID)

	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
}

func TestRegister_ValidationError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"details": map[string][]string{"email": {"already registered"}, "password": {"too common"}},
		})
	}), session.Tokens{})

	_, err := client.Register(context.Background(), Registration{Email: "c@b.io", Password: "password"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "already registered")
	assert.Contains(t, err.Error(), "too common")
}

func TestLogout_ClearsStateWhenBackendFails(t *testing.T) {
	var calls atomic.Int32
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}), session.Tokens{AccessToken: "a", RefreshToken: "r"})
	sessions.SetUser(&session.User{ID: "1", Role: session.RoleAdmin})

	require.NoError(t, client.Logout(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
	assert.Equal(t, session.State{}, sessions.State(context.Background()))
}

func TestLogout_ClearsStateWhenBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), session.Tokens{AccessToken: "a", RefreshToken: "r"}))
	sessions := session.NewManager(store, nil)
	sessions.SetUser(&session.User{ID: "1"})

	client := New(url, sessions)
	require.NoError(t, client.Logout(context.Background()))

	tokens, _ := sessions.Tokens(context.Background())
	assert.True(t, tokens.Empty())
	assert.Nil(t, sessions.User())
}

func TestLogout_WithoutSessionSkipsBackend(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), session.Tokens{})

	require.NoError(t, client.Logout(context.Background()))
	assert.Zero(t, calls.Load())
}

func TestMe_UpdatesProfileCache(t *testing.T) {
	client, sessions, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user": map[string]string{"id": "8", "email": "i@fieldops.io", "role": "INVESTOR"},
		})
	}), session.Tokens{AccessToken: "a", RefreshToken: "r"})

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.RoleInvestor, user.Role)
	assert.Equal(t, "i@fieldops.io", sessions.User().Email)
}
