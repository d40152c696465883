package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/services/portal-cli/internal/apiclient"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]interface{}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	_ = json.NewDecoder(r.Body).Decode(&rec.body)
	b.mu.Lock()
	b.requests = append(b.requests, rec)
	b.mu.Unlock()

	resp, ok := b.routes[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (b *fakeBackend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func newServices(t *testing.T, routes map[string]interface{}) (*Services, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{routes: routes}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), session.Tokens{AccessToken: "a", RefreshToken: "r"}))
	client := apiclient.New(srv.URL, session.NewManager(store, nil))
	return NewServices(client), backend
}

func TestJobs_ListBothShapes(t *testing.T) {
	svc, backend := newServices(t, map[string]interface{}{
		"GET /jobs/": map[string]interface{}{
			"results": []map[string]interface{}{{"id": "1", "title": "Roof repair", "status": "open"}},
			"count":   12,
		},
	})

	page, err := svc.Jobs.List(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, 12, page.Count)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Roof repair", page.Items[0].Title)
	assert.Equal(t, "status=open", backend.last().query)

	svc, _ = newServices(t, map[string]interface{}{
		"GET /disputes/": []map[string]interface{}{{"id": "d1"}, {"id": "d2"}},
	})
	disputes, err := svc.Disputes.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, disputes.Count)
}

func TestJobs_ListRejectsUnknownStatus(t *testing.T) {
	svc, backend := newServices(t, nil)

	_, err := svc.Jobs.List(context.Background(), "lost")
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
	assert.Empty(t, backend.requests)
}

func TestJobs_GetAndUpdate(t *testing.T) {
	svc, backend := newServices(t, map[string]interface{}{
		"GET /jobs/42/":   map[string]interface{}{"id": "42", "status": "scheduled"},
		"PATCH /jobs/42/": map[string]interface{}{"id": "42", "status": "completed"},
	})

	job, err := svc.Jobs.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, JobStatusScheduled, job.Status)

	job, err = svc.Jobs.UpdateStatus(context.Background(), "42", JobStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "completed", backend.last().body["status"])

	_, err = svc.Jobs.Get(context.Background(), "../admin")
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	_, err = svc.Jobs.Get(context.Background(), "404")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assert.Equal(t, "Not found.", err.Error())
}

func TestWorkflowActions(t *testing.T) {
	svc, backend := newServices(t, map[string]interface{}{
		"POST /disputes/d1/resolve/":            map[string]interface{}{"id": "d1", "status": "resolved"},
		"POST /payouts/p1/approve/":             map[string]interface{}{"id": "p1", "status": "approved", "amount": 250.5},
		"POST /compliance/documents/c1/review/": map[string]interface{}{"id": "c1", "status": "rejected"},
		"POST /estimates/e1/approve/":           map[string]interface{}{"id": "e1", "status": "approved"},
		"GET /materials/":                       []map[string]interface{}{{"id": "m1", "name": "Shingles"}},
		"GET /compliance/documents/":            []map[string]interface{}{},
		"GET /payouts/":                         map[string]interface{}{"results": []interface{}{}, "count": 0},
		"GET /estimates/":                       []map[string]interface{}{{"id": "e1"}},
	})
	ctx := context.Background()

	d, err := svc.Disputes.Resolve(ctx, "d1", "refund issued")
	require.NoError(t, err)
	assert.Equal(t, "resolved", d.Status)
	assert.Equal(t, "refund issued", backend.last().body["resolution"])

	_, err = svc.Disputes.Resolve(ctx, "d1", " ")
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	p, err := svc.Payouts.Approve(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 250.5, p.Amount)

	c, err := svc.Compliance.Review(ctx, "c1", false, "expired insurance")
	require.NoError(t, err)
	assert.Equal(t, "rejected", c.Status)
	assert.Equal(t, false, backend.last().body["approved"])

	e, err := svc.Estimates.Approve(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "approved", e.Status)

	m, err := svc.Materials.List(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Shingles", m.Items[0].Name)
	assert.Equal(t, "job=42", backend.last().query)

	docs, err := svc.Compliance.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs.Items)

	payouts, err := svc.Payouts.List(ctx)
	require.NoError(t, err)
	assert.Zero(t, payouts.Count)

	estimates, err := svc.Estimates.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, estimates.Count)
}

func TestTracking_Location(t *testing.T) {
	svc, _ := newServices(t, map[string]interface{}{
		"GET /tracking/jobs/42/location/": map[string]interface{}{"latitude": 40.7, "longitude": -74.0, "recorded_at": "2026-10-17T10:00:00Z"},
	})

	loc, err := svc.Tracking.Location(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", loc.JobID)
	assert.Equal(t, 40.7, loc.Latitude)
	assert.Equal(t, 2026, loc.RecordedAt.Year())
}
