package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"famplan/internal/config"
	"famplan/internal/family"
	"famplan/internal/model"
	"famplan/internal/push"
	"famplan/internal/reminder"
	"famplan/internal/store"
	logx "famplan/pkg/logx"
)

// stubTransport accepts everything so sweep-trigger tests exercise the
// full path without network I/O.
type stubTransport struct {
	sent int
}

func (s *stubTransport) Send(_ context.Context, _ model.Subscription, _ push.Payload) (push.Outcome, error) {
	s.sent++
	return push.OutcomeDelivered, nil
}

type fixture struct {
	srv       *Server
	store     *store.Store
	orch      *reminder.Orchestrator
	transport *stubTransport
}

func newFixture(t *testing.T, cfg config.ServerConfig) *fixture {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "famplan.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	leads := config.ReminderConfig{
		ForwardWindowMinutes: config.DefaultForwardWindowMinutes,
		LeadMinutes:          config.DefaultLeadChoices,
		DefaultLeadMinutes:   config.DefaultLeadMinutes,
	}
	roster := family.NewRoster([]string{"amit", "alin", "ravid"}, []string{"dana"}, false)
	eval := reminder.NewEvaluator(time.UTC, leads.ForwardWindowMinutes, leads.LeadMinutes, leads.DefaultLeadMinutes)
	transport := &stubTransport{}
	orch := reminder.NewOrchestrator(st, st, st, transport, roster, eval, reminder.Config{}, logx.Nop())

	pt := push.NewTransport(push.Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}, logx.Nop())
	return &fixture{
		srv:       New(cfg, leads, st, orch, pt, roster, logx.Nop()),
		store:     st,
		orch:      orch,
		transport: transport,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	if w := f.do(t, http.MethodGet, "/healthz", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

func TestTriggerTokenGate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{TriggerToken: "sweep-secret"})

	if w := f.do(t, http.MethodPost, "/api/reminders/run", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d, want 401", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/reminders/run", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d, want 401", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/reminders/run", nil, map[string]string{"Authorization": "Bearer sweep-secret"}); w.Code != http.StatusOK {
		t.Fatalf("good token: %d, want 200", w.Code)
	}

	// Hot-swap on reload.
	f.srv.SetTriggerToken("rotated")
	if w := f.do(t, http.MethodPost, "/api/reminders/run", nil, map[string]string{"Authorization": "Bearer sweep-secret"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("stale token after rotation: %d, want 401", w.Code)
	}
}

func TestTriggerTokenEmptyBypasses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	if w := f.do(t, http.MethodPost, "/api/reminders/run", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("sweep without configured token: %d, want 200", w.Code)
	}
}

func TestRunSweepReturnsSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	ctx := context.Background()

	// One due task, one matching subscription.
	now := time.Now().UTC().Add(20 * time.Minute)
	_, err := f.store.CreateTask(ctx, model.Task{
		Title:            "Swimming lesson",
		Date:             now.Format("2006-01-02"),
		Clock:            now.Format("15:04"),
		Recipients:       "alin",
		SendNotification: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.UpsertSubscription(ctx, model.Subscription{
		Endpoint: "https://push.example/ep-1", P256dh: "k", Auth: "a",
		Owner: "alin", LeadMinutes: 15,
	}); err != nil {
		t.Fatal(err)
	}

	w := f.do(t, http.MethodPost, "/api/reminders/run", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("run = %d: %s", w.Code, w.Body.String())
	}
	var sum reminder.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if !sum.OK || sum.Scanned != 1 || sum.Sent != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if f.transport.sent != 1 {
		t.Fatalf("transport sent %d, want 1", f.transport.sent)
	}

	// Status reflects the last sweep.
	ws := f.do(t, http.MethodGet, "/api/reminders/status", nil, nil)
	if ws.Code != http.StatusOK {
		t.Fatalf("status = %d", ws.Code)
	}
	var status struct {
		OK   bool              `json:"ok"`
		Last *reminder.Summary `json:"last"`
	}
	if err := json.Unmarshal(ws.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.OK || status.Last == nil || status.Last.Sent != 1 {
		t.Fatalf("status = %+v", status)
	}

	// Triggering again sends nothing new: the dispatch is on record.
	f.do(t, http.MethodPost, "/api/reminders/run", nil, nil)
	if f.transport.sent != 1 {
		t.Fatalf("transport sent %d after second run, want still 1", f.transport.sent)
	}
}

func TestSweepStatusBeforeFirstRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	w := f.do(t, http.MethodGet, "/api/reminders/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status before first sweep = %d, want 200", w.Code)
	}
	var status struct {
		OK   bool              `json:"ok"`
		Last *reminder.Summary `json:"last"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.OK || status.Last != nil {
		t.Fatalf("status = %+v, want ok with no last sweep", status)
	}
}

func TestUpsertSubscriptionShapes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})

	cases := []struct {
		name string
		body map[string]any
		want model.Subscription
	}{
		{
			name: "standard nested keys",
			body: map[string]any{
				"endpoint": "https://push.example/nested",
				"keys":     map[string]string{"p256dh": "k1", "auth": "a1"},
				"owner":    "Alin",
			},
			want: model.Subscription{Endpoint: "https://push.example/nested", P256dh: "k1", Auth: "a1", Owner: "alin", LeadMinutes: 15},
		},
		{
			name: "legacy flat with aliases",
			body: map[string]any{
				"endpoint": "https://push.example/flat",
				"p256dh":   "k2",
				"auth":     "a2",
				"identity": "dana",
				"offset":   12,
				"watch":    []string{"amit"},
			},
			want: model.Subscription{Endpoint: "https://push.example/flat", P256dh: "k2", Auth: "a2", Owner: "dana", Watch: []string{"amit"}, LeadMinutes: 10},
		},
		{
			name: "lead snapped to nearest choice",
			body: map[string]any{
				"endpoint":     "https://push.example/snap",
				"keys":         map[string]string{"p256dh": "k3", "auth": "a3"},
				"lead_minutes": 500,
			},
			want: model.Subscription{Endpoint: "https://push.example/snap", P256dh: "k3", Auth: "a3", LeadMinutes: 60},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, "/api/subscriptions", tc.body, nil); w.Code != http.StatusOK {
				t.Fatalf("upsert = %d: %s", w.Code, w.Body.String())
			}
			subs, err := f.store.ListSubscriptions(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			var got *model.Subscription
			for i := range subs {
				if subs[i].Endpoint == tc.want.Endpoint {
					got = &subs[i]
				}
			}
			if got == nil {
				t.Fatalf("endpoint %s not stored", tc.want.Endpoint)
			}
			if got.P256dh != tc.want.P256dh || got.Auth != tc.want.Auth ||
				got.Owner != tc.want.Owner || got.LeadMinutes != tc.want.LeadMinutes {
				t.Fatalf("stored %+v, want %+v", *got, tc.want)
			}
		})
	}
}

func TestUpsertSubscriptionRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	// Missing endpoint.
	if w := f.do(t, http.MethodPost, "/api/subscriptions", map[string]any{"p256dh": "k", "auth": "a"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("no endpoint: %d, want 400", w.Code)
	}
	// Missing keys in both shapes.
	if w := f.do(t, http.MethodPost, "/api/subscriptions", map[string]any{"endpoint": "https://push.example/x"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("no keys: %d, want 400", w.Code)
	}
	// Owner outside the roster.
	body := map[string]any{
		"endpoint": "https://push.example/x",
		"keys":     map[string]string{"p256dh": "k", "auth": "a"},
		"owner":    "stranger",
	}
	if w := f.do(t, http.MethodPost, "/api/subscriptions", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown owner: %d, want 400", w.Code)
	}
}

func TestDeleteSubscription(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	body := map[string]any{
		"endpoint": "https://push.example/gone",
		"keys":     map[string]string{"p256dh": "k", "auth": "a"},
	}
	if w := f.do(t, http.MethodPost, "/api/subscriptions", body, nil); w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	if w := f.do(t, http.MethodDelete, "/api/subscriptions", map[string]any{"endpoint": "https://push.example/gone"}, nil); w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	subs, _ := f.store.ListSubscriptions(context.Background())
	if len(subs) != 0 {
		t.Fatalf("subscription still present: %+v", subs)
	}
}

func TestVAPIDKeyEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	w := f.do(t, http.MethodGet, "/api/subscriptions/vapid-key", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vapid-key = %d", w.Code)
	}
	var resp struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Key != "pub" {
		t.Fatalf("key = %q", resp.Key)
	}
}

func TestTaskEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})

	w := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Dentist",
		"date":  "2026-03-01",
		"time":  "09:30",
		"child": "ravid", // legacy alias
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	var created model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Recipients != "ravid" || !created.SendNotification {
		t.Fatalf("created = %+v", created)
	}

	if w := f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/tasks?from=2026-03-01&to=2026-03-01", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}

	w = f.do(t, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{
		"title":      "Dentist (moved)",
		"date":       "2026-03-02",
		"time":       "10:00",
		"recipients": "ravid",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", w.Code, w.Body.String())
	}

	if w := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/ack", created.ID), nil, nil); w.Code != http.StatusOK {
		t.Fatalf("ack = %d", w.Code)
	}
	got, err := f.store.GetTask(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Fatal("ack did not complete the task")
	}

	if w := f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
}

func TestTaskNotFoundResponses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/tasks/missing", nil},
		{http.MethodDelete, "/api/tasks/missing", nil},
		{http.MethodPost, "/api/tasks/missing/ack", nil},
		{http.MethodPut, "/api/tasks/missing", map[string]any{"title": "x", "date": "2026-03-01", "time": "09:00"}},
	} {
		if w := f.do(t, tc.method, tc.path, tc.body, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s = %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestCreateTaskValidationErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.ServerConfig{})
	for _, body := range []map[string]any{
		{"date": "2026-03-01", "time": "09:00"},                     // no title
		{"title": "x", "date": "03/01/2026", "time": "09:00"},      // bad date
		{"title": "x", "date": "2026-03-01", "time": "25:00"},      // bad hour
		{"title": "x", "date": "2026-03-01", "time": "nine"},       // bad time
	} {
		if w := f.do(t, http.MethodPost, "/api/tasks", body, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: %d, want 400", body, w.Code)
		}
	}
}
