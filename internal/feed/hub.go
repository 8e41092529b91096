package feed

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

// ErrHubClosed is returned by hub operations after Run has exited.
var ErrHubClosed = errors.New("hub is closed")

const (
	// Send buffer size per subscription.
	subscriptionBuffer = 256
)

// Hub is the shared multicast point between signal writers and feed
// subscribers. All state (subscriber set, backlog) is owned by the Run
// goroutine and reached only through command channels, so publication order
// is total without any locking.
//
// Delivery is a single shared stream: every subscriber receives every signal
// in the same order, and the stream advances only as fast as its slowest
// subscriber. When a subscriber's buffer fills, signals accumulate in the
// backlog until a new subscription or a Reset unsticks the stream. Reset is
// the recovery path for an abruptly disconnected subscriber: it completes the
// current stream for everyone and reopens the hub immediately.
type Hub struct {
	name string

	publishCh   chan store.Signal
	subscribeCh chan chan *Subscription
	resetCh     chan chan int

	done   chan struct{}
	logger *zap.Logger
}

// Subscription is one observer's handle onto the hub. Its event channel is
// closed when the stream completes (reset or hub shutdown); it delivers the
// buffered backlog first, then every signal published from the moment of
// subscription, in publication order.
type Subscription struct {
	id string
	ch chan store.Signal
}

func (s *Subscription) ID() string { return s.id }

// Events returns the subscription's event channel. A closed channel is the
// completion signal; the handle is not reusable afterward.
func (s *Subscription) Events() <-chan store.Signal { return s.ch }

// NewHub creates a Hub. Call Run in a goroutine before using it. The hub is
// intended as a process-wide singleton: construct once, share by reference.
func NewHub(name string, logger *zap.Logger) *Hub {
	return &Hub{
		name:        name,
		publishCh:   make(chan store.Signal, 64),
		subscribeCh: make(chan chan *Subscription),
		resetCh:     make(chan chan int),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run processes hub commands. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*Subscription]struct{})
	var backlog []store.Signal

	defer func() {
		close(h.done)
		for sub := range subs {
			close(sub.ch)
		}
		h.logger.Info("hub shut down",
			zap.String("hub", h.name),
			zap.Int("droppedBacklog", len(backlog)),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sig := <-h.publishCh:
			backlog = append(backlog, sig)
			backlog = h.flush(subs, backlog)

		case reply := <-h.subscribeCh:
			sub := &Subscription{
				id: uuid.New().String(),
				ch: make(chan store.Signal, subscriptionBuffer),
			}
			subs[sub] = struct{}{}
			h.logger.Debug("subscription opened",
				zap.String("hub", h.name),
				zap.String("subID", sub.id),
				zap.Int("backlog", len(backlog)),
			)
			backlog = h.flush(subs, backlog)
			reply <- sub

		case reply := <-h.resetCh:
			n := len(subs)
			for sub := range subs {
				close(sub.ch)
			}
			subs = make(map[*Subscription]struct{})
			backlog = nil
			h.logger.Info("hub reset",
				zap.String("hub", h.name),
				zap.Int("completed", n),
			)
			reply <- n
		}
	}
}

// flush delivers buffered signals to every subscriber, oldest first, stopping
// as soon as any subscriber cannot accept. The Run goroutine is the only
// sender on subscription channels, so a capacity check here cannot race.
func (h *Hub) flush(subs map[*Subscription]struct{}, backlog []store.Signal) []store.Signal {
	if len(subs) == 0 {
		return backlog
	}

	delivered := 0
	for _, sig := range backlog {
		stalled := false
		for sub := range subs {
			if len(sub.ch) == cap(sub.ch) {
				stalled = true
				break
			}
		}
		if stalled {
			h.logger.Warn("delivery stalled on slow subscriber",
				zap.String("hub", h.name),
				zap.Int("pending", len(backlog)-delivered),
			)
			break
		}
		for sub := range subs {
			sub.ch <- sig
		}
		delivered++
	}
	return backlog[delivered:]
}

// Publish hands a signal to the hub for delivery to all current subscribers.
// It never blocks indefinitely; it fails only once the hub has shut down.
func (h *Hub) Publish(ctx context.Context, sig store.Signal) error {
	// The publish channel is buffered; check for shutdown first so a publish
	// against a closed hub fails instead of landing in a dead buffer.
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.publishCh <- sig:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe opens a new subscription. The handle receives any buffered
// backlog, then every signal published from this point until the stream
// completes.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	reply := make(chan *Subscription, 1)
	select {
	case h.subscribeCh <- reply:
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case sub := <-reply:
		return sub, nil
	case <-h.done:
		return nil, ErrHubClosed
	}
}

// Reset forces the current delivery stream to completion for every active
// subscription, clears the backlog, and reopens the hub. Returns the number
// of subscriptions that were completed.
func (h *Hub) Reset(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.resetCh <- reply:
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case n := <-reply:
		return n, nil
	case <-h.done:
		return 0, ErrHubClosed
	}
}
