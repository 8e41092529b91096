package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/config"
	"github.com/dgnsrekt/signalfeed/internal/feed"
	"github.com/dgnsrekt/signalfeed/internal/notify"
	"github.com/dgnsrekt/signalfeed/internal/store"
	"github.com/dgnsrekt/signalfeed/internal/stream"
)

const ndjsonContentType = "application/x-ndjson"

type Server struct {
	store    store.Store
	hub      *feed.Hub
	notifier notify.Notifier
	config   *config.ServerConfig
	logger   *zap.Logger
}

func NewServer(st store.Store, hub *feed.Hub, notifier notify.Notifier, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		store:    st,
		hub:      hub,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

// HandleListSignals handles GET /signals. Responds with a JSON array, or
// newline-delimited JSON when the client asks for application/x-ndjson.
func (s *Server) HandleListSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.store.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), ndjsonContentType) {
		s.writeNDJSON(w, signals)
		return
	}

	if signals == nil {
		signals = []store.Signal{}
	}
	writeJSON(w, http.StatusOK, signals)
}

func (s *Server) writeNDJSON(w http.ResponseWriter, signals []store.Signal) {
	w.Header().Set("Content-Type", ndjsonContentType)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for _, sig := range signals {
		if err := enc.Encode(sig); err != nil {
			s.logger.Debug("ndjson write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// HandleGetSignal handles GET /signals/{id}.
func (s *Server) HandleGetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signal id")
		return
	}

	sig, err := s.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "signal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

// HandleCreateSignal handles POST /signals. The endpoint takes no body: it
// persists a fixed placeholder signal, then publishes the persisted copy to
// the feed. A persistence failure short-circuits publication.
func (s *Server) HandleCreateSignal(w http.ResponseWriter, r *http.Request) {
	placeholder := store.Signal{
		Ticker: "SPX",
		Kind:   "gamma_flip",
		Note:   "synthetic signal",
	}

	saved, err := s.store.Save(r.Context(), placeholder)
	if err != nil {
		s.logger.Error("persist failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not persist signal")
		return
	}

	if err := s.hub.Publish(r.Context(), saved); err != nil {
		// The signal is persisted either way; publication only fails once the
		// hub has shut down.
		s.logger.Warn("publish failed",
			zap.Int64("id", saved.ID),
			zap.Error(err),
		)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.SignalCreated(ctx, saved); err != nil {
			s.logger.Debug("notification failed", zap.Error(err))
		}
	}()

	s.logger.Info("signal created",
		zap.Int64("id", saved.ID),
		zap.String("ticker", saved.Ticker),
	)
	writeJSON(w, http.StatusCreated, saved)
}

// HandleFeedReset handles POST /admin/feed/reset. It forces the current
// broadcast stream to completion and reopens the hub.
func (s *Server) HandleFeedReset(w http.ResponseWriter, r *http.Request) {
	n, err := s.hub.Reset(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.logger.Info("feed reset via admin endpoint", zap.Int("completed", n))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"completed": n,
	})
}

// HandleDemoStream handles GET /demo/stream: integers 1..N as NDJSON, one per
// interval.
func (s *Server) HandleDemoStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	values := stream.Ints(s.config.DemoCount)
	ch := stream.Emit(r.Context(), values, s.config.DemoInterval, s.logger)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(v); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleDemoEvents handles GET /demo/events: the same integers as SSE frames.
func (s *Server) HandleDemoEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	setSSEHeaders(w)
	flusher.Flush()

	values := stream.Ints(s.config.DemoCount)
	ch := stream.Emit(r.Context(), values, s.config.DemoInterval, s.logger)

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("data: " + strconv.Itoa(v) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
