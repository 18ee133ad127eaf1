// Package web serves the focus-timer status page and control API over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/status"
)

// commandTimeout bounds how long a handler waits for the run loop.
const commandTimeout = 2 * time.Second

// Sender delivers a command to the timer's owner and waits for the result.
type Sender interface {
	Send(ctx context.Context, cmd control.Command) (control.Result, error)
}

// Options tunes the control API. A zero RateLimit disables throttling.
type Options struct {
	RateLimit float64
	RateBurst int
}

// Server serves the status page and control endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	sender     Sender
	limiter    *ipLimiter
	timeout    time.Duration
	log        *slog.Logger
}

// New creates a Server that reads state from tracker and sends actions
// through sender. A nil sender makes the server read-only.
func New(addr string, tracker *status.Tracker, sender Sender, opts Options) *Server {
	s := &Server{
		tracker: tracker,
		sender:  sender,
		timeout: commandTimeout,
		log:     slog.Default().With("component", "web"),
	}
	if opts.RateLimit > 0 {
		s.limiter = newIPLimiter(opts.RateLimit, opts.RateBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	if sender != nil {
		mux.HandleFunc("POST /api/config", s.limiter.middleware(s.handleConfig))
		mux.HandleFunc("POST /api/start", s.limiter.middleware(s.handleStart))
		mux.HandleFunc("POST /api/abort", s.limiter.middleware(s.handleAbort))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot(), s.sender != nil); err != nil {
		s.log.Error("render index", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	req, err := decodeConfig(w, r)
	if err != nil {
		s.reply(w, r, control.Result{Err: err}, nil)
		return
	}
	cmd, err := control.ParseMinutes(req.BlockMinutes, req.Chunks, req.BreakMinutes)
	if err != nil {
		s.reply(w, r, control.Result{Err: err}, nil)
		return
	}
	s.dispatch(w, r, cmd)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeConfig(w, r)
	if err != nil {
		s.reply(w, r, control.Result{Err: err}, nil)
		return
	}
	cmd := control.Command{Kind: control.KindStart}
	if !req.empty() {
		cmd, err = control.ParseMinutes(req.BlockMinutes, req.Chunks, req.BreakMinutes)
		if err != nil {
			s.reply(w, r, control.Result{Err: err}, nil)
			return
		}
		cmd.Kind = control.KindConfigureStart
	}
	s.dispatch(w, r, cmd)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, control.Command{Kind: control.KindAbort})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd control.Command) {
	cmd.Source = "http"
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.sender.Send(ctx, cmd)
	switch {
	case errors.Is(err, control.ErrPending):
		s.log.Warn("command queued without result", "kind", cmd.Kind, "error", err)
	case err != nil:
		s.log.Warn("command not delivered", "kind", cmd.Kind, "error", err)
	}
	s.reply(w, r, res, err)
}

// reply answers a browser form with a redirect back to the page and any
// other client with an ActionResponse.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, res control.Result, sendErr error) {
	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	resp := ActionResponse{Applied: res.Applied}
	switch {
	case sendErr != nil:
		resp.Error = sendErr.Error()
	case res.Err != nil:
		resp.Error = res.Err.Error()
	default:
		sj := status.Build(s.tracker.Snapshot())
		resp.Status = &sj
	}
	writeJSON(w, statusCode(res, sendErr), resp)
}
