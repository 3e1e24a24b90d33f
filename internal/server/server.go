package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/bashhack/simpletext/internal/engine"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
)

const (
	APIPath    = "/api/simple-text"
	HealthPath = "/healthz"

	// LivenessText is the body of GET APIPath.
	LivenessText = "GET Received!"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Syncer is the part of the engine the HTTP surface needs.
type Syncer interface {
	SyncBuffer(ctx context.Context, name, text string) (engine.Result, error)
}

type syncRequest struct {
	Buffer string `json:"buffer"`
	Text   string `json:"text"`
}

type syncResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler routes the simple-text API to syncer.
func Handler(syncer Syncer, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	h := &handler{syncer: syncer, logger: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+APIPath, h.sync)
	mux.HandleFunc("GET "+APIPath, h.liveness)
	mux.HandleFunc("GET "+HealthPath, h.health)
	return mux
}

type handler struct {
	syncer Syncer
	logger logger.Logger
}

func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Warning("Rejected sync request from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, syncResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := h.syncer.SyncBuffer(r.Context(), req.Buffer, req.Text)
	if err != nil {
		h.logger.Error("Sync of buffer %q failed at %s: %v", req.Buffer, res.Stage, err)
		if errors.Is(err, errors.ErrPlaintextExposed) {
			h.logger.WarningToUser("Buffer %q is plaintext on disk, manual re-encryption needed", req.Buffer)
		}
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Synced %s as %s", res.Buffer, res.Commit)
	writeJSON(w, http.StatusOK, syncResponse{OK: true})
}

func (h *handler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(LivenessText))
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, syncResponse{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, body syncResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Server serves Handler until its context is cancelled.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// New creates a Server listening on addr.
func New(addr string, syncer Syncer, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           Handler(syncer, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.httpServer.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. In-flight requests get
// a few seconds to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.logger.InfoToUser("Listening on http://%s%s", ln.Addr(), APIPath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.InfoToUser("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
