package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/config"
	"github.com/dgnsrekt/signalfeed/internal/feed"
	"github.com/dgnsrekt/signalfeed/internal/notify"
	"github.com/dgnsrekt/signalfeed/internal/store"
)

type testEnv struct {
	ts    *httptest.Server
	store *store.MemoryStore
	hub   *feed.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	st := store.NewMemoryStore(logger)
	hub := feed.NewHub("test", logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := &config.ServerConfig{
		Port:         "0",
		DemoCount:    3,
		DemoInterval: 10 * time.Millisecond,
	}

	srv := NewServer(st, hub, &notify.NoopNotifier{}, cfg, logger)
	router, err := NewRouter(srv, nil, nil, logger)
	if err != nil {
		t.Fatalf("creating router: %v", err)
	}

	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{ts: ts, store: st, hub: hub}
}

func (e *testEnv) createSignal(t *testing.T) store.Signal {
	t.Helper()
	resp, err := http.Post(e.ts.URL+"/signals", "", nil)
	if err != nil {
		t.Fatalf("POST /signals: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	var sig store.Signal
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		t.Fatalf("decoding created signal: %v", err)
	}
	return sig
}

// sseReader pumps data frames from an open SSE response into a channel.
type sseReader struct {
	frames chan store.Signal
	body   io.ReadCloser
}

func openFeed(t *testing.T, url string) *sseReader {
	t.Helper()
	resp, err := http.Get(url + "/signals/feed")
	if err != nil {
		t.Fatalf("GET /signals/feed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}

	r := &sseReader{
		frames: make(chan store.Signal, 16),
		body:   resp.Body,
	}

	go func() {
		defer close(r.frames)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var sig store.Signal
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &sig); err != nil {
				continue
			}
			r.frames <- sig
		}
	}()

	return r
}

func (r *sseReader) next(t *testing.T) store.Signal {
	t.Helper()
	select {
	case sig, ok := <-r.frames:
		if !ok {
			t.Fatal("feed closed unexpectedly")
		}
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
	}
	return store.Signal{}
}

func (r *sseReader) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case sig, ok := <-r.frames:
		if ok {
			t.Fatalf("unexpected frame: %+v", sig)
		}
	case <-time.After(d):
	}
}

func (r *sseReader) close() {
	_ = r.body.Close()
}

func TestListSignalsJSON(t *testing.T) {
	env := newTestEnv(t)
	env.createSignal(t)
	env.createSignal(t)

	resp, err := http.Get(env.ts.URL + "/signals")
	if err != nil {
		t.Fatalf("GET /signals: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var signals []store.Signal
	if err := json.NewDecoder(resp.Body).Decode(&signals); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(signals) != 2 {
		t.Errorf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].ID != 1 || signals[1].ID != 2 {
		t.Errorf("unexpected ids: %+v", signals)
	}
}

func TestListSignalsNDJSON(t *testing.T) {
	env := newTestEnv(t)
	env.createSignal(t)
	env.createSignal(t)

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/signals", nil)
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /signals: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("expected ndjson content type, got %s", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), body)
	}
	for i, line := range lines {
		var sig store.Signal
		if err := json.Unmarshal([]byte(line), &sig); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if sig.ID != int64(i+1) {
			t.Errorf("line %d: expected id %d, got %d", i, i+1, sig.ID)
		}
	}
}

func TestGetSignal(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSignal(t)

	resp, err := http.Get(env.ts.URL + "/signals/1")
	if err != nil {
		t.Fatalf("GET /signals/1: %v", err)
	}
	defer resp.Body.Close()

	var sig store.Signal
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if sig.ID != created.ID || sig.Ticker != created.Ticker {
		t.Errorf("unexpected signal: %+v", sig)
	}
}

func TestGetSignalNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/signals/999")
	if err != nil {
		t.Fatalf("GET /signals/999: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestCreatePersistsThenPublishes(t *testing.T) {
	env := newTestEnv(t)

	sub, err := env.hub.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	created := env.createSignal(t)
	if created.ID != 1 {
		t.Errorf("expected id 1, got %d", created.ID)
	}

	select {
	case sig, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription completed unexpectedly")
		}
		if sig.ID != created.ID {
			t.Errorf("published signal id %d != created id %d", sig.ID, created.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("created signal was never published")
	}
}

func TestCreateFailedPersistSkipsPublish(t *testing.T) {
	env := newTestEnv(t)

	sub, err := env.hub.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// A closed store rejects the write
	env.store.Close()

	resp, err := http.Post(env.ts.URL+"/signals", "", nil)
	if err != nil {
		t.Fatalf("POST /signals: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	select {
	case sig := <-sub.Events():
		t.Fatalf("unexpected publish after failed persist: %+v", sig)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFeedBroadcastScenario(t *testing.T) {
	env := newTestEnv(t)

	// Subscriber A observes the first three creations, in order
	a := openFeed(t, env.ts.URL)
	defer a.close()

	for i := int64(1); i <= 3; i++ {
		created := env.createSignal(t)
		got := a.next(t)
		if got.ID != created.ID {
			t.Errorf("A: expected id %d, got %d", created.ID, got.ID)
		}
	}

	// B joins after the third write and sees nothing yet
	b := openFeed(t, env.ts.URL)
	defer b.close()
	b.expectSilence(t, 200*time.Millisecond)

	// The fourth write reaches both
	created := env.createSignal(t)
	if got := a.next(t); got.ID != created.ID {
		t.Errorf("A: expected id %d, got %d", created.ID, got.ID)
	}
	if got := b.next(t); got.ID != created.ID {
		t.Errorf("B: expected id %d, got %d", created.ID, got.ID)
	}
}

func TestFeedDisconnectResetsHub(t *testing.T) {
	env := newTestEnv(t)

	// Direct hub subscription standing in for a concurrently active observer
	witness, err := env.hub.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := openFeed(t, env.ts.URL)
	env.createSignal(t)
	a.next(t)

	// A disconnects abruptly; the session recovers by resetting the hub,
	// which completes the witness's stream too.
	a.close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-witness.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("hub was not reset after subscriber disconnect")
		}
	}
}

func TestAdminFeedReset(t *testing.T) {
	env := newTestEnv(t)

	sub, err := env.hub.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp, err := http.Post(env.ts.URL+"/admin/feed/reset", "", nil)
	if err != nil {
		t.Fatalf("POST /admin/feed/reset: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status    string `json:"status"`
		Completed int    `json:"completed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.Status != "ok" || body.Completed != 1 {
		t.Errorf("unexpected response: %+v", body)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected completion, got a signal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not completed by admin reset")
	}
}

func TestDemoStream(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/demo/stream")
	if err != nil {
		t.Fatalf("GET /demo/stream: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), body)
	}
	for i, line := range lines {
		if line != strconv.Itoa(i+1) {
			t.Errorf("line %d: expected %d, got %q", i, i+1, line)
		}
	}
}

func TestDemoEvents(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/demo/events")
	if err != nil {
		t.Fatalf("GET /demo/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}

	var got []string
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "data: ") {
			got = append(got, strings.TrimPrefix(line, "data: "))
		}
	}
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d frames, got %d: %q", len(want), len(got), body)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
