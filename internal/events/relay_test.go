package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/repository/memstore"
	"cashback_platform/internal/store"
)

type stubPublisher struct {
	fail map[string]bool
	got  []domain.OutboxEvent
}

func (p *stubPublisher) Publish(ctx context.Context, evt domain.OutboxEvent) error {
	if p.fail[evt.ID] {
		return errors.New("broker down")
	}
	p.got = append(p.got, evt)
	return nil
}

func seedEvents(t *testing.T, st *memstore.Store, ids ...string) {
	t.Helper()
	err := st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for i, id := range ids {
			evt := &domain.OutboxEvent{
				ID:          id,
				EventType:   domain.EventTransferCompleted,
				AggregateID: int64(i + 1),
				Payload:     json.RawMessage(`{"ok":true}`),
			}
			if err := tx.Enqueue(ctx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRelayPublishesPendingEvents(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, "a", "b", "c")
	pub := &stubPublisher{}
	relay := NewRelay(st, pub, 0)

	n, err := relay.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 3 || len(pub.got) != 3 {
		t.Fatalf("published %d events, publisher saw %d", n, len(pub.got))
	}
	if pub.got[0].ID != "a" || pub.got[2].ID != "c" {
		t.Fatalf("events out of order: %v", pub.got)
	}

	n, err = relay.ProcessOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second pass published %d (err %v), want 0", n, err)
	}
}

func TestRelayRetriesFailedEvents(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, "ok", "bad")
	pub := &stubPublisher{fail: map[string]bool{"bad": true}}
	relay := NewRelay(st, pub, 0)
	relay.maxAttempts = 2

	for i := 0; i < 3; i++ {
		if _, err := relay.ProcessOnce(context.Background()); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	var bad domain.OutboxEvent
	for _, evt := range st.Outbox() {
		if evt.ID == "bad" {
			bad = evt
		}
	}
	if bad.PublishedAt != nil {
		t.Fatal("failed event must stay unpublished")
	}
	if bad.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2 (parked after max attempts)", bad.Attempts)
	}
	if len(pub.got) != 1 || pub.got[0].ID != "ok" {
		t.Fatalf("publisher saw %v", pub.got)
	}

	pub.fail = nil
	relay.maxAttempts = 3
	if n, _ := relay.ProcessOnce(context.Background()); n != 1 {
		t.Fatalf("retry published %d, want 1", n)
	}
}

func TestEnvelopeEncoding(t *testing.T) {
	body, err := encode(domain.OutboxEvent{
		ID:          "evt-1",
		EventType:   domain.EventRatesUpdated,
		AggregateID: 7,
		Payload:     json.RawMessage(`{"platform_fee_rate":"5"}`),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "evt-1" || env.Type != domain.EventRatesUpdated || env.AggregateID != 7 {
		t.Fatalf("envelope = %+v", env)
	}
	if string(env.Payload) != `{"platform_fee_rate":"5"}` {
		t.Fatalf("payload = %s", env.Payload)
	}
}

func TestFanoutStopsOnError(t *testing.T) {
	first := &stubPublisher{fail: map[string]bool{"x": true}}
	second := &stubPublisher{}
	err := Fanout{first, second}.Publish(context.Background(), domain.OutboxEvent{ID: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(second.got) != 0 {
		t.Fatal("second publisher must not run after a failure")
	}
}
