package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New(nil)

	ch1, cancel1 := h.Subscribe()
	defer cancel1()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	h.Publish("taskDeleted", "task-1")

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case raw := <-ch:
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("subscriber %d: bad frame: %v", i, err)
			}
			if f.Event != "taskDeleted" || f.Data != "task-1" {
				t.Fatalf("subscriber %d: got %+v", i, f)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no frame", i)
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	h := New(nil)

	// Never drained: fills up after subscriberBuffer frames.
	_, cancelSlow := h.Subscribe()
	defer cancelSlow()

	live, cancelLive := h.Subscribe()
	defer cancelLive()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			h.Publish("taskUpdated", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// The live subscriber keeps at most its buffer; frames beyond that were
	// dropped, not queued.
	n := 0
	for {
		select {
		case <-live:
			n++
		default:
			if n == 0 || n > subscriberBuffer {
				t.Fatalf("expected 1..%d buffered frames; got %d", subscriberBuffer, n)
			}
			return
		}
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	h := New(nil)
	_, cancel := h.Subscribe()
	if got := h.Sessions(); got != 1 {
		t.Fatalf("expected 1 session; got %d", got)
	}
	cancel()
	if got := h.Sessions(); got != 0 {
		t.Fatalf("expected 0 sessions; got %d", got)
	}

	// Publishing after cancel must not panic on the closed channel.
	h.Publish("taskDeleted", "task-1")
}
