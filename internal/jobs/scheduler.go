// Package jobs provides the in-process follow-up job scheduler. The identity
// core enqueues two kinds of jobs as a side effect of certain resolve
// outcomes: a profile re-fetch after any identifier attach or merge, and a
// number-changed job (safety-number handling) after any e164 overwrite whose
// old value was non-null and different.
//
// Jobs are enqueued only after the owning store transaction commits, so a
// rolled-back resolution never leaks side effects.
package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// Kind identifies a follow-up job type.
type Kind string

const (
	// KindRefreshProfile asks the profile pipeline to re-fetch the profile
	// for a recipient whose identity linkage changed.
	KindRefreshProfile Kind = "refresh_profile"

	// KindNumberChanged signals that a recipient's e164 was overwritten or
	// stripped while holding a different non-null value.
	KindNumberChanged Kind = "number_changed"
)

// Job is one unit of follow-up work.
type Job struct {
	Kind        Kind
	RecipientID domain.RecipientID
	// OldE164 is set on number-changed jobs: the value the recipient held
	// before the overwrite.
	OldE164 string
}

// Scheduler accepts follow-up jobs. Enqueue must never block the caller for
// long and must be safe for concurrent use.
type Scheduler interface {
	Enqueue(job Job)
}

// Handler processes one job kind.
type Handler func(ctx context.Context, job Job) error

// Queue is a channel-backed Scheduler with a single worker goroutine. It is
// deliberately process-local: the recipient store is a local client database
// and its follow-ups have no delivery guarantees beyond the process lifetime.
type Queue struct {
	ch       chan Job
	handlers map[Kind]Handler
	log      zerolog.Logger
}

// NewQueue constructs a Queue with the given buffer size. When the buffer is
// full, Enqueue drops the job with a warning rather than blocking a store
// transaction's caller.
func NewQueue(buffer int, log zerolog.Logger) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		ch:       make(chan Job, buffer),
		handlers: make(map[Kind]Handler),
		log:      log,
	}
}

// Handle registers the handler for a job kind. Not safe to call after Run.
func (q *Queue) Handle(kind Kind, h Handler) { q.handlers[kind] = h }

// Enqueue implements Scheduler.
func (q *Queue) Enqueue(job Job) {
	select {
	case q.ch <- job:
	default:
		q.log.Warn().
			Str("kind", string(job.Kind)).
			Int64("recipient_id", int64(job.RecipientID)).
			Msg("job queue full, dropping job")
	}
}

// Run consumes jobs until ctx is cancelled. Handler errors are logged and the
// worker keeps going; a follow-up job must never wedge the queue.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-q.ch:
			h, ok := q.handlers[job.Kind]
			if !ok {
				q.log.Error().Str("kind", string(job.Kind)).Msg("no handler for job kind")
				continue
			}
			if err := h(ctx, job); err != nil {
				q.log.Error().
					Err(err).
					Str("kind", string(job.Kind)).
					Int64("recipient_id", int64(job.RecipientID)).
					Msg("job handler failed")
			}
		}
	}
}

// Drain synchronously processes whatever is buffered, then returns. Used by
// tests and graceful shutdown.
func (q *Queue) Drain(ctx context.Context) {
	for {
		select {
		case job := <-q.ch:
			if h, ok := q.handlers[job.Kind]; ok {
				if err := h(ctx, job); err != nil {
					q.log.Error().Err(err).Str("kind", string(job.Kind)).Msg("job handler failed")
				}
			}
		default:
			return
		}
	}
}
