package stream

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEmitCompletes(t *testing.T) {
	logger := zap.NewNop()
	values := Ints(5)

	start := time.Now()
	ch := Emit(context.Background(), values, 10*time.Millisecond, logger)

	var got []int
	for v := range ch {
		got = append(got, v)
	}
	elapsed := time.Since(start)

	if len(got) != 5 {
		t.Fatalf("expected 5 elements, got %d", len(got))
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("element %d: expected %d, got %d", i, i+1, v)
		}
	}

	// Delay precedes every element, the first included
	if elapsed < 50*time.Millisecond {
		t.Errorf("emission finished too fast: %s", elapsed)
	}
}

func TestEmitCancelledMidStream(t *testing.T) {
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Emit(ctx, Ints(5), 10*time.Millisecond, logger)

	var got []int
	for len(got) < 2 {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for element")
		}
	}

	cancel()

	// No further elements and no completion signal: the channel stays open
	// and silent after cancellation.
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("completion signal delivered after cancellation")
		}
		// One element may already have been in flight when cancel landed.
		if v != 3 {
			t.Fatalf("unexpected element after cancel: %d", v)
		}
		select {
		case _, ok := <-ch:
			if !ok {
				t.Fatal("completion signal delivered after cancellation")
			}
			t.Fatal("emission continued after cancellation")
		case <-time.After(100 * time.Millisecond):
		}
	case <-time.After(100 * time.Millisecond):
	}

	if len(got) != 2 {
		t.Errorf("expected 2 observed elements, got %d", len(got))
	}
}

func TestEmitIndependentTimelines(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	a := Emit(ctx, Ints(2), time.Millisecond, logger)
	b := Emit(ctx, Ints(2), time.Millisecond, logger)

	var gotA, gotB []int
	for v := range a {
		gotA = append(gotA, v)
	}
	for v := range b {
		gotB = append(gotB, v)
	}

	if len(gotA) != 2 || len(gotB) != 2 {
		t.Errorf("expected 2 elements on each timeline, got %d and %d", len(gotA), len(gotB))
	}
}

func TestInts(t *testing.T) {
	got := Ints(3)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}
