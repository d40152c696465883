package guard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FieldOpsPortal/services/portal-cli/internal/apiclient"
	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// TestContractorLoginScenario вход подрядчика и проверка доступа к двум разделам
func TestContractorLoginScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access":  "a1",
			"refresh": "r1",
			"user":    map[string]string{"id": "31", "email": "sam@fieldops.io", "role": "contractor"},
		})
	}))
	defer srv.Close()

	sessions := session.NewManager(session.NewMemoryStore(), nil)
	client := apiclient.New(srv.URL, sessions)

	user, err := client.Login(context.Background(), apiclient.Credentials{Email: "sam@fieldops.io", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleContractor, user.Role)

	state := sessions.State(context.Background())
	g := guard.New(nil, nil)

	d, _ := g.Decide(state, []session.Role{session.RoleAdmin})
	assert.Equal(t, guard.DecisionUnauthorized, d)

	d, _ = g.Decide(state, []session.Role{session.RoleContractor, session.RoleAdmin})
	assert.Equal(t, guard.DecisionAuthorized, d)

	assert.Equal(t, "/contractor/dashboard", guard.DashboardRouteFor(user.Role))

	require.NoError(t, client.Logout(context.Background()))
	d, _ = g.Decide(sessions.State(context.Background()), []session.Role{session.RoleContractor})
	assert.Equal(t, guard.DecisionUnauthenticated, d)
}
