package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

func feed(raw ...string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, len(raw))
	for _, r := range raw {
		ch <- json.RawMessage(r)
	}
	close(ch)
	return ch
}

func collect(t *testing.T, items <-chan types.StreamItem) []types.StreamItem {
	t.Helper()
	var out []types.StreamItem
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-items:
			if !ok {
				return out
			}
			out = append(out, item)
		case <-timeout:
			t.Fatalf("stream did not close")
		}
	}
}

func TestStream_ProcessesAllByDefault(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	base := types.InferRequest{Model: "det"}
	items := collect(t, o.Stream(context.Background(), feed(`{"n":0}`, `{"n":1}`, `{"n":2}`), base, 0))
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, it := range items {
		if it.Index != i {
			t.Fatalf("item %d has index %d", i, it.Index)
		}
		if it.Result == nil {
			t.Fatalf("item %d missing result", i)
		}
	}
}

func TestStream_SkipEvery(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	base := types.InferRequest{Model: "det"}
	// skipEvery=1 processes inputs 0, 2, 4
	items := collect(t, o.Stream(context.Background(), feed(`{"n":0}`, `{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`), base, 1))
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []int{0, 2, 4}
	for i, it := range items {
		if it.Index != want[i] {
			t.Fatalf("item %d index = %d, want %d", i, it.Index, want[i])
		}
	}
}

func TestStream_ErrorsAreData(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	base := types.InferRequest{Model: "det"}
	items := collect(t, o.Stream(context.Background(), feed(`{"n":0}`, `{"bad":1}`, `{"n":2}`), base, 0))
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[1].Error == "" || items[1].Result != nil {
		t.Fatalf("failed input not reported as error item: %+v", items[1])
	}
	if items[2].Result == nil {
		t.Fatalf("stream stopped after error item")
	}
}

func TestStream_CancelStops(t *testing.T) {
	o := New(scriptedInferrer{}, time.Minute, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := collect(t, o.Stream(ctx, feed(`{"n":0}`, `{"n":1}`), types.InferRequest{Model: "det"}, 0))
	if len(items) != 0 {
		t.Fatalf("expected no items after cancel, got %d", len(items))
	}
}
