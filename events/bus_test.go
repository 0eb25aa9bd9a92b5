package events

import (
	"sync"
	"testing"
)

func TestPublishDeliversToTopic(t *testing.T) {
	b := NewBus()

	var got []Event
	b.Subscribe(TopicLoginSuccess, func(ev Event) {
		got = append(got, ev)
	})

	b.Publish(TopicLoginSuccess, "owner")
	b.Publish(TopicLoginError, "other topic")

	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	if got[0].Topic != TopicLoginSuccess {
		t.Errorf("Topic = %s", got[0].Topic)
	}
	if got[0].Payload != "owner" {
		t.Errorf("Payload = %v", got[0].Payload)
	}
	if got[0].ID == "" {
		t.Error("event ID should be assigned")
	}
	if got[0].Time.IsZero() {
		t.Error("event time should be assigned")
	}
}

func TestPublishOrder(t *testing.T) {
	b := NewBus()

	var order []string
	b.Subscribe(TopicAuthChanged, func(Event) { order = append(order, "first") })
	b.Subscribe(TopicAuthChanged, func(Event) { order = append(order, "second") })
	b.SubscribeAll(func(Event) { order = append(order, "all") })

	b.Publish(TopicAuthChanged, true)

	want := []string{"first", "second", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestSubscribeCancel(t *testing.T) {
	b := NewBus()

	calls := 0
	cancel := b.Subscribe(TopicRefreshStart, func(Event) { calls++ })

	b.Publish(TopicRefreshStart, nil)
	cancel()
	cancel() // second cancel is harmless
	b.Publish(TopicRefreshStart, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	b := NewBus()

	var topics []Topic
	b.SubscribeAll(func(ev Event) { topics = append(topics, ev.Topic) })

	b.Publish(TopicLoginStart, nil)
	b.Publish(TopicRequestEnd, nil)
	b.Publish(TopicRevokeSuccess, nil)

	if len(topics) != 3 {
		t.Fatalf("saw %d events, want 3", len(topics))
	}
	if topics[0] != TopicLoginStart || topics[2] != TopicRevokeSuccess {
		t.Errorf("topics = %v", topics)
	}
}

func TestPublishConcurrent(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	seen := 0
	b.Subscribe(TopicRequestStart, func(Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(TopicRequestStart, nil)
		}()
	}
	wg.Wait()

	if seen != 20 {
		t.Errorf("seen = %d, want 20", seen)
	}
}
