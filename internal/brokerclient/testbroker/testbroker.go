// Package testbroker is an httptest-backed double of the brokerage's
// KIS-style HTTP API, routed with gorilla/mux, used to drive
// internal/execution/liveclient's resilience tests (spec §8 scenarios 4
// and 5: token expiry on a live order, and retry exhaustion).
package testbroker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// Script lets a test pre-program canned responses keyed by request count,
// so a handler can return "500 then 500 then 200" or "token expired then
// success" sequences without bespoke per-test HTTP plumbing.
type Script struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	calls     int
}

// ScriptedResponse is one canned HTTP response.
type ScriptedResponse struct {
	Status int
	Body   map[string]any
}

// NewScript builds a Script that replays responses in order, repeating
// the last one once exhausted.
func NewScript(responses ...ScriptedResponse) *Script {
	return &Script{responses: responses}
}

// Next returns the next scripted response and advances the call counter.
func (s *Script) Next() ScriptedResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}

	s.calls++

	return s.responses[idx]
}

// Calls reports how many requests have been served so far.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// Server wraps an httptest.Server routing the brokerage endpoints
// liveclient.LiveClient calls to a per-endpoint Script.
type Server struct {
	*httptest.Server

	orderScript    *Script
	statusScript   *Script
	balanceScript  *Script
	quoteScript    *Script
	positionScript *Script
}

// NewServer builds a Server; any nil script defaults to always returning
// a bare success envelope.
func NewServer(orderScript, statusScript, balanceScript, quoteScript, positionScript *Script) *Server {
	s := &Server{
		orderScript:    orDefault(orderScript),
		statusScript:   orDefault(statusScript),
		balanceScript:  orDefault(balanceScript),
		quoteScript:    orDefault(quoteScript),
		positionScript: orDefault(positionScript),
	}

	router := mux.NewRouter()
	router.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", serve(s.orderScript)).Methods(http.MethodPost)
	router.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-order/{orderID}", serve(s.statusScript)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/domestic-stock/v1/trading/order-rvsecncl", serve(s.orderScript)).Methods(http.MethodPost)
	router.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-balance", serve(s.positionScript)).Methods(http.MethodGet).Queries("pdno", "{pdno}")
	router.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-balance", serve(s.balanceScript)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", serve(s.quoteScript)).Methods(http.MethodGet)

	s.Server = httptest.NewServer(router)

	return s
}

func orDefault(s *Script) *Script {
	if s != nil {
		return s
	}

	return NewScript(ScriptedResponse{Status: http.StatusOK, Body: map[string]any{"rt_cd": "0"}})
}

func serve(script *Script) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := script.Next()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)

		_ = json.NewEncoder(w).Encode(resp.Body)
	}
}

// StatusCalls reports how many requests the order-status endpoint served.
func (s *Server) StatusCalls() int { return s.statusScript.Calls() }

// OrderCalls reports how many requests the order endpoint served.
func (s *Server) OrderCalls() int { return s.orderScript.Calls() }
