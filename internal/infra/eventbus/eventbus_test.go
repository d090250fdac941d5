package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe_DeliversEvent(t *testing.T) {
	t.Parallel()

	bus := New()
	ch := bus.Subscribe(TopicIndexRebuilt)

	bus.Publish(TopicIndexRebuilt, "product")

	select {
	case evt := <-ch:
		if evt.Topic != TopicIndexRebuilt {
			t.Errorf("unexpected topic %q", evt.Topic)
		}
		if evt.Payload != "product" {
			t.Errorf("unexpected payload %v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_NoSubscribers_DoesNotBlock(t *testing.T) {
	t.Parallel()

	bus := New()
	done := make(chan struct{})
	go func() {
		bus.Publish("nobody.listens", 42)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestPublish_FullBuffer_DropsEvent(t *testing.T) {
	t.Parallel()

	bus := New()
	ch := bus.Subscribe("flood")

	// Overfill the buffer; extra events must be dropped, not block.
	for i := 0; i < defaultBufferSize+10; i++ {
		bus.Publish("flood", i)
	}

	if got := len(ch); got != defaultBufferSize {
		t.Errorf("expected buffer to hold %d events, got %d", defaultBufferSize, got)
	}
}

func TestSubscribe_MultipleSubscribersEachReceive(t *testing.T) {
	t.Parallel()

	bus := New()
	a := bus.Subscribe(TopicIndexRebuilt)
	b := bus.Subscribe(TopicIndexRebuilt)

	bus.Publish(TopicIndexRebuilt, "feedback")

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Payload != "feedback" {
				t.Errorf("subscriber %s: unexpected payload %v", name, evt.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: timed out", name)
		}
	}
}
