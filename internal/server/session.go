package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

// HandleFeed handles GET /signals/feed: the live broadcast endpoint. Each
// connection is one subscription session against the hub; every signal
// published from the moment of subscription arrives as an SSE frame, in
// publication order. The stream never completes on its own.
//
// When the observer disconnects, the session resets the hub rather than
// withdrawing quietly: the hub's shared delivery stream has no per-subscriber
// teardown, so without the reset a dead connection would eventually stall
// delivery to everyone. The reset completes the current stream for all
// concurrent subscribers; subscribers opened after it are unaffected. This is
// a known, deliberate trade — brief disruption for guaranteed recoverability.
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sub, err := s.hub.Subscribe(r.Context())
	if err != nil {
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	}

	setSSEHeaders(w)
	flusher.Flush()

	s.logger.Info("feed subscriber connected",
		zap.String("subID", sub.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)

	for {
		select {
		case <-r.Context().Done():
			// Observer gone. The request context is already cancelled, so the
			// reset runs on its own deadline.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, resetErr := s.hub.Reset(ctx)
			cancel()
			if resetErr != nil {
				s.logger.Warn("reset after disconnect failed",
					zap.String("subID", sub.ID()),
					zap.Error(resetErr),
				)
			}
			s.logger.Info("feed subscriber disconnected",
				zap.String("subID", sub.ID()),
				zap.Int("completed", n),
			)
			return

		case sig, open := <-sub.Events():
			if !open {
				// Stream completed: a reset elsewhere or hub shutdown. The
				// handle is done; a new request makes a new subscription.
				s.logger.Info("feed stream completed",
					zap.String("subID", sub.ID()),
				)
				return
			}
			if err := writeSignalEvent(w, flusher, sig); err != nil {
				s.logger.Debug("feed write failed",
					zap.String("subID", sub.ID()),
					zap.Error(err),
				)
				// Fall through to the disconnect path on the next iteration;
				// the failed write means the observer is gone.
			}
		}
	}
}

func writeSignalEvent(w http.ResponseWriter, flusher http.Flusher, sig store.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: signal\nid: %d\ndata: %s\n\n", sig.ID, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
