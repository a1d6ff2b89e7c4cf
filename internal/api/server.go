// Package api provides the HTTP API over the village.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/engine"
	"github.com/talgya/villagers/internal/persistence"
	"github.com/talgya/villagers/internal/trade"
)

// Server serves village state and the decision/trade control plane.
type Server struct {
	Eng      *engine.Engine
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/nodes", s.handleNodes)
	mux.HandleFunc("/api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/trades/agent/", s.handleTradesForAgent)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/decide/", s.adminOnly(s.handleDecide))
	mux.HandleFunc("/api/v1/decide-all", s.adminOnly(s.handleDecideAll))
	mux.HandleFunc("/api/v1/trades/propose", s.adminOnly(s.handleProposeTrade))
	mux.HandleFunc("/api/v1/trades/accept/", s.adminOnly(s.handleAcceptTrade))
	mux.HandleFunc("/api/v1/trades/reject/", s.adminOnly(s.handleRejectTrade))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no VILLAGERS_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	all, err := s.Eng.Store.Agents()
	if err != nil {
		writeError(w, err)
		return
	}
	nodes, err := s.Eng.Store.Nodes()
	if err != nil {
		writeError(w, err)
		return
	}
	buildings, err := s.Eng.Store.Buildings()
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := s.Eng.PendingTrades()
	if err != nil {
		writeError(w, err)
		return
	}

	var wealth float64
	var goalsDone int
	for _, a := range all {
		wealth += economy.Valuate(a.Inventory)
		goalsDone += a.Stats.GoalsCompleted
	}

	writeJSON(w, map[string]any{
		"name":            "Villagers",
		"population":      len(all),
		"nodes":           len(nodes),
		"buildings":       len(buildings),
		"pending_trades":  len(pending),
		"total_wealth":    wealth,
		"goals_completed": goalsDone,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	all, err := s.Eng.Store.Agents()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, all)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	if id == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	a, err := s.Eng.Store.Agent(id)
	if err != nil {
		writeError(w, err)
		return
	}
	buildings, err := s.Eng.Store.BuildingsByOwner(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"agent":     a,
		"buildings": buildings,
		"net_worth": economy.Valuate(a.Inventory),
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Eng.Store.Nodes()
	if err != nil {
		writeError(w, err)
		return
	}
	now := s.Eng.Now()
	for _, n := range nodes {
		n.Regenerate(now)
	}
	writeJSON(w, nodes)
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := s.Eng.Store.Buildings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, buildings)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	pending, err := s.Eng.PendingTrades()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, pending)
}

func (s *Server) handleTradesForAgent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/trades/agent/")
	if id == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	offers, err := s.Eng.TradesFor(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, offers)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/decide/")
	if id == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	res, err := s.Eng.Decide(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleDecideAll(w http.ResponseWriter, r *http.Request) {
	batch, err := s.Eng.DecideAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, batch)
}

type proposeRequest struct {
	FromAgentID string            `json:"from_agent_id"`
	ToAgentID   string            `json:"to_agent_id"`
	Offering    economy.Inventory `json:"offering"`
	Requesting  economy.Inventory `json:"requesting"`
	Message     string            `json:"message,omitempty"`
}

func (s *Server) handleProposeTrade(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FromAgentID == "" || req.ToAgentID == "" {
		http.Error(w, "from_agent_id and to_agent_id are required", http.StatusBadRequest)
		return
	}
	o, err := s.Eng.ProposeTrade(req.FromAgentID, req.ToAgentID, req.Offering, req.Requesting, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handleAcceptTrade(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/trades/accept/")
	if id == "" {
		http.Error(w, "missing offer id", http.StatusBadRequest)
		return
	}
	o, err := s.Eng.AcceptTrade(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handleRejectTrade(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/trades/reject/")
	if id == "" {
		http.Error(w, "missing offer id", http.StatusBadRequest)
		return
	}
	o, err := s.Eng.RejectTrade(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var invalidErr *trade.InvalidError
	var fundsErr *trade.FundsError
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidErr), errors.As(err, &fundsErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, trade.ErrAlreadyResolved), errors.Is(err, trade.ErrExpired):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
