package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestQueue_EnqueueAndDrain(t *testing.T) {
	q := NewQueue(8, zerolog.Nop())

	var mu sync.Mutex
	var seen []Job
	q.Handle(KindRefreshProfile, func(_ context.Context, j Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, j)
		return nil
	})

	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 1})
	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 2})
	q.Drain(context.Background())

	if len(seen) != 2 {
		t.Fatalf("expected 2 jobs handled, got %d", len(seen))
	}
	if seen[0].RecipientID != 1 || seen[1].RecipientID != 2 {
		t.Fatalf("expected FIFO order, got %v", seen)
	}
}

func TestQueue_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	q := NewQueue(1, zerolog.Nop())

	q.Enqueue(Job{Kind: KindNumberChanged, RecipientID: 1, OldE164: "+14155550100"})

	done := make(chan struct{})
	go func() {
		q.Enqueue(Job{Kind: KindNumberChanged, RecipientID: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Enqueue blocked on a full buffer")
	}

	var handled int
	q.Handle(KindNumberChanged, func(context.Context, Job) error {
		handled++
		return nil
	})
	q.Drain(context.Background())
	if handled != 1 {
		t.Fatalf("expected only the buffered job handled, got %d", handled)
	}
}

func TestQueue_RunProcessesUntilCancelled(t *testing.T) {
	q := NewQueue(8, zerolog.Nop())

	got := make(chan Job, 1)
	q.Handle(KindRefreshProfile, func(_ context.Context, j Job) error {
		got <- j
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 9})
	select {
	case j := <-got:
		if j.RecipientID != 9 {
			t.Fatalf("expected recipient 9, got %v", j.RecipientID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never processed the job")
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop on cancel")
	}
}

func TestQueue_HandlerErrorDoesNotWedgeWorker(t *testing.T) {
	q := NewQueue(8, zerolog.Nop())

	var calls int
	done := make(chan struct{})
	q.Handle(KindRefreshProfile, func(context.Context, Job) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx) //nolint:errcheck

	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 1})
	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 2})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker stopped after a handler error")
	}
}

func TestQueue_UnknownKindIsSkipped(t *testing.T) {
	q := NewQueue(8, zerolog.Nop())

	q.Enqueue(Job{Kind: Kind("unregistered"), RecipientID: 1})
	q.Enqueue(Job{Kind: KindRefreshProfile, RecipientID: 2})

	var handled int
	q.Handle(KindRefreshProfile, func(context.Context, Job) error {
		handled++
		return nil
	})
	q.Drain(context.Background())

	if handled != 1 {
		t.Fatalf("expected the registered kind handled once, got %d", handled)
	}
}
