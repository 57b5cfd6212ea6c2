// Package http exposes workspaces over a JSON API with SSE and WebSocket
// change streams.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/internal/metrics"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// APIVersion is reported by GET /info.
const APIVersion = "v1"

const maxBodyBytes = 1 << 20

// errBadRequest marks request bodies that cannot be decoded.
var errBadRequest = errors.New("bad request")

// Server implements the HTTP API on top of a workspace manager.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager
	Metrics  *metrics.Metrics
	Version  string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.Metrics = m }
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer builds a Server over the manager.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{Sessions: sessions, Version: "dev", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the routed handler.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(sessions, opts...).Routes()
}

// Routes returns the chi router for the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	r.Get("/workspaces", s.ListWorkspaces)

	r.Route("/workspaces/{ws}", func(r chi.Router) {
		r.Get("/state", s.GetState)
		r.Delete("/", s.DeleteWorkspace)
		r.Post("/intent", s.SetIntent)
		r.Post("/auction", s.SetAuctionResults)
		r.Post("/authorization", s.SetAuthorization)
		r.Post("/execution", s.StartExecution)
		r.Patch("/execution/steps/{n}", s.UpdateExecutionStep)
		r.Post("/result", s.SetFinalResult)
		r.Post("/proofs", s.AddZkProof)
		r.Post("/reset", s.Reset)
		r.Post("/replay", s.Replay)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/ws", s.StreamSocket)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth reports liveness.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo reports the build identity.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "intentflow-http",
		"version":     s.Version,
		"api_version": APIVersion,
	})
}

// ListWorkspaces returns persisted and opened workspace names.
func (s *Server) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	names, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"workspaces": names})
}

// GetState returns the snapshot of a workspace. Workspaces that were never
// written or opened are reported as not found.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "ws")
	if _, ok := s.Sessions.Get(name); !ok && session.ValidName(name) {
		if _, err := s.Sessions.Store().Load(r.Context(), name); err != nil {
			s.writeError(w, err)
			return
		}
	}
	st, err := s.open(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

// DeleteWorkspace stops following the workspace and removes its snapshot.
func (s *Server) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "ws")
	if err := s.Sessions.Delete(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	s.Streams.Drop(name)
	w.WriteHeader(http.StatusNoContent)
}

// SetIntent stores the intent carried in the body.
func (s *Server) SetIntent(w http.ResponseWriter, r *http.Request) {
	var in domain.Intent
	s.mutate(w, r, &in, func(st *lifecycle.Store) error {
		return st.SetIntent(r.Context(), in)
	})
}

type auctionRequest struct {
	Bids     []domain.SolverBid `json:"bids"`
	Winner   *domain.SolverBid  `json:"winner,omitempty"`
	WinnerID string             `json:"winner_id,omitempty"`
}

// SetAuctionResults stores the bids and the winner. The winner may be given
// in full or by solver id.
func (s *Server) SetAuctionResults(w http.ResponseWriter, r *http.Request) {
	var req auctionRequest
	s.mutate(w, r, &req, func(st *lifecycle.Store) error {
		winner := req.Winner
		if winner == nil && req.WinnerID != "" {
			if i := domain.FindBid(req.Bids, req.WinnerID); i >= 0 {
				winner = &req.Bids[i]
			} else {
				return fmt.Errorf("%w: %q", domain.ErrWinnerNotInBids, req.WinnerID)
			}
		}
		if winner == nil {
			return fmt.Errorf("%w: winner or winner_id is required", errBadRequest)
		}
		return st.SetAuctionResults(r.Context(), req.Bids, *winner)
	})
}

// SetAuthorization records the authorization transaction.
func (s *Server) SetAuthorization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tx string `json:"tx"`
	}
	s.mutate(w, r, &req, func(st *lifecycle.Store) error {
		return st.SetAuthorization(r.Context(), req.Tx)
	})
}

// StartExecution creates the execution steps.
func (s *Server) StartExecution(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, nil, func(st *lifecycle.Store) error {
		return st.StartExecution(r.Context())
	})
}

// UpdateExecutionStep takes a status plus any step fields to merge, e.g.
// {"status": "completed", "fee": "$3.50"}.
func (s *Server) UpdateExecutionStep(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: step number: %v", errBadRequest, err))
		return
	}
	var body map[string]any
	s.mutate(w, r, &body, func(st *lifecycle.Store) error {
		status, _ := body["status"].(string)
		delete(body, "status")
		var patch *domain.StepPatch
		if len(body) > 0 {
			p, err := domain.DecodeStepPatch(body)
			if err != nil {
				return fmt.Errorf("%w: %v", errBadRequest, err)
			}
			patch = &p
		}
		return st.UpdateExecutionStep(r.Context(), n, domain.StepStatus(status), patch)
	})
}

// SetFinalResult completes execution. A JSON null body completes it without a
// summary; a stored result is never replaced.
func (s *Server) SetFinalResult(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	s.mutate(w, r, &body, func(st *lifecycle.Store) error {
		if body == nil {
			return st.SetFinalResult(r.Context(), nil)
		}
		result, err := domain.DecodeFinalResult(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return st.SetFinalResult(r.Context(), &result)
	})
}

// AddZkProof appends a proof record.
func (s *Server) AddZkProof(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	s.mutate(w, r, &body, func(st *lifecycle.Store) error {
		proof, err := domain.DecodeProof(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return st.AddZkProof(r.Context(), proof)
	})
}

// Reset restores the initial state.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, nil, func(st *lifecycle.Store) error {
		return st.Reset(r.Context())
	})
}

// Replay feeds a raw snapshot written elsewhere into the workspace.
func (s *Server) Replay(w http.ResponseWriter, r *http.Request) {
	st, err := s.open(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	applied, err := st.ReplayRaw(r.Context(), payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "seq": st.Seq()})
}

func (s *Server) open(r *http.Request) (*lifecycle.Store, error) {
	return s.Sessions.Open(r.Context(), chi.URLParam(r, "ws"))
}

// mutate decodes the body into dst (when non-nil), runs fn against the
// workspace and answers with the resulting snapshot.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, dst any, fn func(*lifecycle.Store) error) {
	st, err := s.open(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if dst != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	if err := fn(st); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidWorkspace):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case domain.IsValidation(err), errors.Is(err, domain.ErrStaleEpoch):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrMalformedSnapshot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NewHTTPServer wraps handler in an http.Server with header timeouts set.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
