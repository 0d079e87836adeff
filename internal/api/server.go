// Package api provides the HTTP API for observing and steering a run.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

// Server serves the run state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	Cat      *catalog.Catalog
	DB       *persistence.DB // nil disables history and snapshot endpoints
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	hub *streamHub
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	historyLimiter := NewRateLimiter(120, time.Hour)

	s.hub = newStreamHub(s.Sim)
	s.Sim.OnChange(s.hub.Broadcast)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can check in on the run).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/person", s.handlePerson)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/api/v1/activities", s.handleActivities)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/history/snapshots", RateLimitMiddleware(historyLimiter, s.handleSnapshotHistory))
	mux.HandleFunc("/api/v1/history/decisions", RateLimitMiddleware(historyLimiter, s.handleDecisionHistory))

	// Websocket stream: per-tick state pushes.
	mux.HandleFunc("/api/v1/stream", s.hub.handleStream)

	// Mixed endpoints: GET observes, POST steers.
	mux.HandleFunc("/api/v1/queue", s.adminOnly(s.handleQueue))
	mux.HandleFunc("/api/v1/skills", s.adminOnly(s.handleSkills))
	mux.HandleFunc("/api/v1/talents", s.adminOnly(s.handleTalents))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/freewill", s.adminOnly(s.handleFreeWill))

	// Admin-only endpoints.
	mux.HandleFunc("/api/v1/queue/clear", s.adminOnly(s.handleQueueClear))
	mux.HandleFunc("/api/v1/personality", s.adminOnly(s.handlePersonality))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no LIFESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	writeJSON(w, map[string]any{
		"run_id":    s.RunID,
		"tick":      st.Tick,
		"sim_time":  st.SimTime,
		"speed":     s.Eng.Speed(),
		"free_will": st.FreeWill,
		"phase":     st.Phase,
		"current":   st.Current,
		"queue":     st.Queue,
		"mood":      st.Person.Mood,
		"purpose":   st.Person.Purpose,
		"nutrition": st.Person.Nutrition,
		"stats":     st.Stats,
	})
}

func (s *Server) handlePerson(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Status().Person)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Status().Decisions)
}

// handleActivities lists the catalog with each activity's live utility
// score, so a frontend can show what the person is weighing right now.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Domain    string   `json:"domain"`
		Tags      []string `json:"tags,omitempty"`
		Score     float64  `json:"score"`
		Startable bool     `json:"startable"`
	}

	scores := s.Sim.Scores()
	startable := s.Sim.Startable()

	byID := make(map[string]float64, len(scores))
	for _, c := range scores {
		byID[c.ActivityID] = c.Score
	}

	var result []entry
	for _, id := range s.Cat.ActivityOrder {
		def := s.Cat.Activities[id]
		result = append(result, entry{
			ID:        def.ID,
			Name:      def.Name,
			Domain:    string(def.Domain),
			Tags:      def.Tags,
			Score:     byID[id],
			Startable: startable[id],
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	events := s.Sim.Events(0)
	if category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

// handleQueue: GET shows the queue, POST enqueues or cancels an entry.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			ActivityID string `json:"activity_id"`
			Cancel     *int   `json:"cancel,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		switch {
		case req.Cancel != nil:
			s.Sim.CancelQueued(*req.Cancel)
		case req.ActivityID != "":
			if err := s.Sim.EnqueueActivity(req.ActivityID); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "activity_id or cancel required", http.StatusBadRequest)
			return
		}
	}

	st := s.Sim.Status()
	writeJSON(w, map[string]any{
		"current": st.Current,
		"queue":   st.Queue,
	})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Sim.ClearQueue()
	writeJSON(w, map[string]any{"queue": []string{}})
}

// handleSkills: GET lists skill levels and unlock costs, POST spends
// domain XP on an unlock.
func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			SkillID string `json:"skill_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Sim.UnlockSkill(req.SkillID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	st := s.Sim.Status()
	type entry struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Domain        string   `json:"domain"`
		Level         int      `json:"level"`
		NextCost      float64  `json:"next_cost"`
		Prerequisites []string `json:"prerequisites,omitempty"`
	}
	var result []entry
	for _, id := range s.Cat.SkillOrder {
		def := s.Cat.Skills[id]
		result = append(result, entry{
			ID:            def.ID,
			Name:          def.Name,
			Domain:        string(def.Domain),
			Level:         st.Person.Skills[id],
			NextCost:      s.Sim.SkillUnlockCost(id),
			Prerequisites: def.Prerequisites,
		})
	}
	writeJSON(w, map[string]any{
		"skills":    result,
		"domain_xp": st.Person.DomainXP,
	})
}

// handleTalents: GET shows the offer and owned talents, POST selects
// from the open offer.
func (s *Server) handleTalents(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			TalentID string `json:"talent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Sim.SelectTalent(req.TalentID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	st := s.Sim.Status()
	writeJSON(w, map[string]any{
		"pending_picks": st.Pending,
		"offer":         st.Offer,
		"owned":         st.Person.Talents,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		if err := s.Eng.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleFreeWill(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s.Sim.SetFreeWill(req.Enabled)
	}
	writeJSON(w, map[string]bool{"free_will": s.Sim.FreeWill()})
}

func (s *Server) handlePersonality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Trait string  `json:"trait"`
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Sim.OverrideTrait(req.Trait, req.Value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.Status().Person.Personality)
}

// handleSnapshot persists the current run state on demand.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveRunState(s.RunID, s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func (s *Server) handleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	// ?tick=N returns one stored snapshot; no query lists stored ticks.
	if t := r.URL.Query().Get("tick"); t != "" {
		tick, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			http.Error(w, "invalid tick", http.StatusBadRequest)
			return
		}
		status, err := s.DB.LoadSnapshot(s.RunID, tick)
		if err != nil {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		writeJSON(w, status)
		return
	}

	ticks, err := s.DB.SnapshotTicks(s.RunID)
	if err != nil {
		slog.Error("snapshot tick query failed", "error", err)
		writeJSON(w, []uint64{})
		return
	}
	if ticks == nil {
		ticks = []uint64{}
	}
	writeJSON(w, ticks)
}

func (s *Server) handleDecisionHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.DB.DecisionHistory(s.RunID, limit)
	if err != nil {
		slog.Error("decision history query failed", "error", err)
		writeJSON(w, []persistence.DecisionRow{})
		return
	}
	if rows == nil {
		rows = []persistence.DecisionRow{}
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
