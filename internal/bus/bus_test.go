package bus

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("client.", 10)
	defer unsub()

	b.Publish(Event{Kind: "client.status_changed", Timestamp: time.Now(), Payload: "READY"})

	if evt := receive(t, ch); evt.Kind != "client.status_changed" || evt.Payload != "READY" {
		t.Errorf("got %+v", evt)
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: "client.status_changed"})
	b.Publish(Event{Kind: "sync.failed"})

	if evt := receive(t, ch); evt.Kind != "sync.failed" {
		t.Errorf("got kind %q, want sync.failed", evt.Kind)
	}
	assertQuiet(t, ch)
}

func TestSubscribeAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Emit("conversation.reset", nil)
	b.Emit("auth.signed_in", "me")

	if evt := receive(t, ch); evt.Kind != "conversation.reset" {
		t.Errorf("first = %q", evt.Kind)
	}
	if evt := receive(t, ch); evt.Kind != "auth.signed_in" {
		t.Errorf("second = %q", evt.Kind)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("client.", 10)
	unsub()
	unsub()

	b.Publish(Event{Kind: "client.status_changed"})
	assertQuiet(t, ch)
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	slow, unsubSlow := b.Subscribe("conversation.", 1)
	defer unsubSlow()
	fast, unsubFast := b.Subscribe("conversation.", 4)
	defer unsubFast()

	b.Emit("conversation.log_changed", "one")
	b.Emit("conversation.log_changed", "two")

	if evt := receive(t, slow); evt.Payload != "one" {
		t.Errorf("slow subscriber got %v, want one", evt.Payload)
	}
	assertQuiet(t, slow)
	receive(t, fast)
	if evt := receive(t, fast); evt.Payload != "two" {
		t.Errorf("fast subscriber missed an event: %v", evt.Payload)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestEmitStampsTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	before := time.Now()
	b.Emit("message.send_ack", "local-1")

	evt := receive(t, ch)
	if evt.Payload != "local-1" {
		t.Errorf("payload = %v, want local-1", evt.Payload)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v before publish time %v", evt.Timestamp, before)
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Emit("message.send_ack", nil)
	if b.Dropped() != 0 {
		t.Error("nil bus reports drops")
	}
}

func TestEventNamespace(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"conversation.log_changed", "conversation"},
		{"client.status_changed", "client"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := (Event{Kind: tt.kind}).Namespace(); got != tt.want {
			t.Errorf("Event{%q}.Namespace() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
