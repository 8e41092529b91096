package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory Store. Signals are held in insertion order;
// IDs are sequential starting at 1 (or after the highest seeded ID).
type MemoryStore struct {
	mu      sync.RWMutex
	signals []Signal
	nextID  int64
	closed  bool
	logger  *zap.Logger
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		logger: logger,
	}
}

// NewMemoryStoreFromJSONL creates a store seeded from a JSONL file, one signal
// per line. Seeded signals keep their IDs; new saves continue after the highest.
func NewMemoryStoreFromJSONL(path string, logger *zap.Logger) (*MemoryStore, error) {
	s := NewMemoryStore(logger)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sig Signal
		if err := json.Unmarshal(line, &sig); err != nil {
			return nil, fmt.Errorf("seed line %d: %w", lineNum, err)
		}
		s.signals = append(s.signals, sig)
		if sig.ID >= s.nextID {
			s.nextID = sig.ID + 1
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	logger.Info("seeded store",
		zap.String("path", path),
		zap.Int("count", len(s.signals)),
		zap.Int64("nextID", s.nextID),
	)
	return s, nil
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Signal, len(m.signals))
	copy(out, m.signals)
	return out, nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id int64) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	for i := range m.signals {
		if m.signals[i].ID == id {
			sig := m.signals[i]
			return &sig, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Save(ctx context.Context, sig Signal) (Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Signal{}, ErrStoreClosed
	}

	sig.ID = m.nextID
	m.nextID++
	if sig.CreatedAt == 0 {
		sig.CreatedAt = time.Now().UnixMilli()
	}
	m.signals = append(m.signals, sig)

	m.logger.Debug("signal saved",
		zap.Int64("id", sig.ID),
		zap.String("ticker", sig.Ticker),
		zap.String("kind", sig.Kind),
	)
	return sig, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = nil
	m.closed = true
	return nil
}

// Len returns the number of persisted signals.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signals)
}
