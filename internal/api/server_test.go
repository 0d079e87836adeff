package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/engine"
)

func testCatalog() *catalog.Catalog {
	cat := &catalog.Catalog{
		Activities: map[string]catalog.ActivityDef{},
		Skills:     map[string]catalog.SkillDef{},
		Talents:    map[string]catalog.TalentDef{},
	}
	defs := []catalog.ActivityDef{
		{
			ID: "eat_a_meal", Name: "Eat a Meal", Domain: catalog.DomainPhysical,
			Duration: catalog.DurationFixed, BaseTicks: 15,
			Effects: map[string]float64{"hunger": 5},
		},
		{
			ID: "doodle", Name: "Doodle", Domain: catalog.DomainCreative,
			Duration: catalog.DurationFixed, BaseTicks: 10,
			Tags:    []string{"creative", "solo"},
			Effects: map[string]float64{"fun": 2},
		},
	}
	for _, d := range defs {
		cat.Activities[d.ID] = d
		cat.ActivityOrder = append(cat.ActivityOrder, d.ID)
	}
	cat.Skills["cooking_1"] = catalog.SkillDef{
		ID: "cooking_1", Name: "Basic Cooking", Domain: catalog.DomainPhysical,
	}
	cat.SkillOrder = []string{"cooking_1"}
	return cat
}

func testServer(t *testing.T, adminKey string) *Server {
	t.Helper()
	cat := testCatalog()
	sim := engine.NewSimulation(balance.Default(), cat, rand.New(rand.NewSource(11)))
	return &Server{
		Sim:      sim,
		Eng:      engine.NewEngine(),
		Cat:      cat,
		RunID:    "test-run",
		AdminKey: adminKey,
	}
}

func TestStatus_ReturnsRunState(t *testing.T) {
	s := testServer(t, "")
	s.Sim.TickMinute(1)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["run_id"] != "test-run" {
		t.Errorf("run_id = %v", body["run_id"])
	}
	if body["tick"] != float64(1) {
		t.Errorf("tick = %v, want 1", body["tick"])
	}
	if body["sim_time"] != "Day 1, 00:01" {
		t.Errorf("sim_time = %v", body["sim_time"])
	}
}

func TestActivities_IncludesScoresAndStartable(t *testing.T) {
	s := testServer(t, "")

	rec := httptest.NewRecorder()
	s.handleActivities(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil))

	var entries []struct {
		ID        string  `json:"id"`
		Score     float64 `json:"score"`
		Startable bool    `json:"startable"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if !e.Startable {
			t.Errorf("%s should be startable for a fresh person", e.ID)
		}
	}
}

func TestAdminOnly_DisabledWithoutKey(t *testing.T) {
	s := testServer(t, "")
	handler := s.adminOnly(s.handleQueue)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue",
		strings.NewReader(`{"activity_id":"doodle"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no admin key configured", rec.Code)
	}
}

func TestAdminOnly_RejectsBadToken(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleQueue)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue",
		strings.NewReader(`{"activity_id":"doodle"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for wrong token", rec.Code)
	}
}

func TestAdminOnly_GetPassesWithoutAuth(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleQueue)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for unauthenticated GET", rec.Code)
	}
}

func TestQueue_PostEnqueuesActivity(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleQueue)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue",
		strings.NewReader(`{"activity_id":"doodle"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := s.Sim.Status().Queue; len(got) != 1 || got[0] != "doodle" {
		t.Errorf("queue = %v, want [doodle]", got)
	}
}

func TestQueue_PostRejectsUnknownActivity(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleQueue)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue",
		strings.NewReader(`{"activity_id":"nonexistent"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown activity", rec.Code)
	}
}

func TestSpeed_PostValidatesRange(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleSpeed)

	for _, body := range []string{`{"speed":-1}`, `{"speed":5000}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", strings.NewReader(`{"speed":10}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := s.Eng.Speed(); got != 10 {
		t.Errorf("speed = %v, want 10", got)
	}
}

func TestFreeWill_Toggle(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handleFreeWill)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/freewill",
		strings.NewReader(`{"enabled":false}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.Sim.FreeWill() {
		t.Error("free will should be off after POST")
	}
}

func TestPersonality_RejectsUnknownTrait(t *testing.T) {
	s := testServer(t, "secret")
	handler := s.adminOnly(s.handlePersonality)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/personality",
		strings.NewReader(`{"trait":"charisma","value":80}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown trait", rec.Code)
	}
}

func TestEvents_LimitAndCategoryFilter(t *testing.T) {
	s := testServer(t, "")
	for tick := uint64(1); tick <= 40; tick++ {
		s.Sim.TickMinute(tick)
	}

	rec := httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=3", nil))

	var events []engine.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) > 3 {
		t.Errorf("events = %d, want at most 3", len(events))
	}

	rec = httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?category=decision", nil))
	events = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if e.Category != "decision" {
			t.Errorf("event category = %q, want decision", e.Category)
		}
	}
}

func TestHistory_UnavailableWithoutDB(t *testing.T) {
	s := testServer(t, "")

	rec := httptest.NewRecorder()
	s.handleDecisionHistory(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/decisions", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a database", rec.Code)
	}
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request should be rate-limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("different IP should have its own bucket")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Error("retry-after should be positive for a limited IP")
	}
}

func TestClientIP_StripsPortAndHonorsForwardedFor(t *testing.T) {
	cases := []struct {
		remote string
		xff    string
		want   string
	}{
		{"10.0.0.1:51234", "", "10.0.0.1"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"10.0.0.1:51234", "203.0.113.9", "203.0.113.9"},
		{"10.0.0.1:51234", "203.0.113.9, 198.51.100.2", "203.0.113.9"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/decisions", nil)
		req.RemoteAddr = c.remote
		if c.xff != "" {
			req.Header.Set("X-Forwarded-For", c.xff)
		}
		if got := clientIP(req); got != c.want {
			t.Errorf("clientIP(remote=%q, xff=%q) = %q, want %q", c.remote, c.xff, got, c.want)
		}
	}
}

func TestRateLimitMiddleware_RejectsWithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/decisions", nil)
	req.RemoteAddr = "10.0.0.1:40000"

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q for disallowed origin", got)
	}
}
