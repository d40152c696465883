package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FieldOpsPortal/services/portal-cli/internal/session"
)

var allowedSets = [][]session.Role{
	nil,
	{},
	{session.RoleAdmin},
	{session.RoleContractor, session.RoleAdmin},
	{session.RoleUnknown},
}

func TestAuthorize_LoadingWins(t *testing.T) {
	users := []*session.User{nil, {ID: "1", Role: session.RoleAdmin}, {ID: "2", Role: session.RoleUnknown}}
	for _, u := range users {
		for _, allowed := range allowedSets {
			assert.Equal(t, DecisionLoading, Authorize(session.State{Loading: true, User: u}, allowed))
		}
	}
}

func TestAuthorize_NoUserIsUnauthenticated(t *testing.T) {
	for _, allowed := range allowedSets {
		assert.Equal(t, DecisionUnauthenticated, Authorize(session.State{}, allowed))
	}
}

func TestAuthorize_Roles(t *testing.T) {
	contractor := &session.User{ID: "7", Role: session.RoleContractor}
	unknown := &session.User{ID: "8", Role: session.RoleUnknown}

	tests := []struct {
		name    string
		user    *session.User
		allowed []session.Role
		want    Decision
	}{
		{"any role", contractor, nil, DecisionAuthorized},
		{"admin only", contractor, []session.Role{session.RoleAdmin}, DecisionUnauthorized},
		{"contractor or admin", contractor, []session.Role{session.RoleContractor, session.RoleAdmin}, DecisionAuthorized},
		{"unknown role any", unknown, nil, DecisionAuthorized},
		{"unknown role restricted", unknown, []session.Role{session.RoleUnknown}, DecisionUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(session.State{User: tt.user}, tt.allowed))
		})
	}
}

func TestDecision_Redirect(t *testing.T) {
	assert.Equal(t, "", DecisionLoading.Redirect())
	assert.Equal(t, "", DecisionAuthorized.Redirect())
	assert.Equal(t, LoginRoute, DecisionUnauthenticated.Redirect())
	assert.Equal(t, LoginRoute, DecisionUnauthorized.Redirect())
}

func TestDashboardRouteFor(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", DashboardRouteFor(session.RoleAdmin))
	assert.Equal(t, "/field-manager/dashboard", DashboardRouteFor(session.RoleFieldManager))
	assert.Equal(t, "/contractor/dashboard", DashboardRouteFor(session.RoleContractor))
	assert.Equal(t, "/investor/dashboard", DashboardRouteFor(session.RoleInvestor))
	assert.Equal(t, "/customer/dashboard", DashboardRouteFor(session.RoleCustomer))
}

func TestDashboardRouteFor_FailsClosed(t *testing.T) {
	for _, role := range []session.Role{session.RoleUnknown, "superuser", "field-manager", "ADMIN", " admin"} {
		assert.Equal(t, LoginRoute, DashboardRouteFor(role), string(role))
	}
}
