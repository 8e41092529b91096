package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/feed"
)

// Feeder bridges the broadcast hub to WebSocket clients. It holds one
// long-lived subscription and fans each signal out through the ws hub's
// per-client buffers, so individual ws clients never stall the shared
// stream. When its subscription completes (a feed reset), it simply
// resubscribes against the reopened hub.
type Feeder struct {
	feedHub *feed.Hub
	wsHub   *Hub
	logger  *zap.Logger
}

// NewFeeder creates a new Feeder.
func NewFeeder(feedHub *feed.Hub, wsHub *Hub, logger *zap.Logger) *Feeder {
	return &Feeder{
		feedHub: feedHub,
		wsHub:   wsHub,
		logger:  logger,
	}
}

// Run consumes the feed and rebroadcasts to ws clients. Call in a goroutine.
// Returns when context is cancelled.
func (f *Feeder) Run(ctx context.Context) {
	for {
		sub, err := f.feedHub.Subscribe(ctx)
		if err != nil {
			f.logger.Info("ws feeder stopping", zap.Error(err))
			return
		}

		f.logger.Debug("ws feeder subscribed", zap.String("subID", sub.ID()))

		if !f.consume(ctx, sub) {
			f.logger.Info("ws feeder stopping")
			return
		}

		// Feed reset; resubscribe against the reopened hub.
		f.logger.Debug("ws feeder stream completed, resubscribing")
	}
}

// consume forwards one subscription's stream to ws clients. It returns true
// when the stream completed (resubscribe), false on cancellation.
func (f *Feeder) consume(ctx context.Context, sub *feed.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false

		case sig, open := <-sub.Events():
			if !open {
				return true
			}
			f.wsHub.BroadcastSignal(sig)
		}
	}
}
