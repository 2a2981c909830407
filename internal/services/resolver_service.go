// Package services — Identity Resolver.
//
// The resolver reconciles a (ACI?, E164?, trust) input against the recipient
// store. It looks up both identifiers independently inside one transaction,
// classifies the situation into exactly one sealed outcome, executes the
// required store mutations, and — after commit — emits change notifications,
// remap-cache entries, and follow-up jobs.
//
// Trust semantics: a high-trust source (authenticated directory lookup,
// verified envelope) may define new identity linkages; a low-trust source
// (contact-sync hint) may only confirm existing ones. Low-trust input never
// links previously-unlinked identifiers.
//
// Concurrency: the store transaction is the sole serialization point. A
// unique-constraint violation during execution means a concurrent writer won
// the race; classification is re-run from scratch, bounded by MaxRetries,
// after which the call fails with ErrConflict.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/jobs"
	"github.com/tbourn/go-contact-backend/internal/notify"
	"github.com/tbourn/go-contact-backend/internal/repo"
)

// defaultMaxRetries bounds re-classification under contention.
const defaultMaxRetries = 3

// ResolveInput is one identity observation handed to the resolver.
type ResolveInput struct {
	ACI  *domain.ACI
	E164 *domain.E164

	// HighTrust marks the source authoritative enough to create new identity
	// linkages, not merely confirm existing ones.
	HighTrust bool

	// SelfChangeAllowed permits mutations of the record representing the
	// local user. Directory refresh and envelope paths leave this false.
	SelfChangeAllowed bool
}

// ResolveResult reports the resolved recipient and the state-machine branch
// that produced it.
type ResolveResult struct {
	ID      domain.RecipientID
	Outcome domain.ResolveOutcome
}

// Resolver is the identity-resolution decision engine. It is stateless with
// respect to persistence: all writes go through the transaction it opens per
// call, and its only shared state (notifier, remap cache, scheduler) is
// injected at construction.
type Resolver struct {
	DB       *gorm.DB
	Merger   *MergeEngine
	Notifier *notify.Notifier
	Remap    *notify.RemapCache
	Jobs     jobs.Scheduler
	Log      zerolog.Logger

	// SelfACI/SelfE164 identify the local user's own record.
	SelfACI  domain.ACI
	SelfE164 domain.E164

	// MaxRetries bounds re-classification after constraint races.
	MaxRetries int
}

// NewResolver constructs a Resolver with default retry bounds.
func NewResolver(db *gorm.DB, merger *MergeEngine, n *notify.Notifier, remap *notify.RemapCache, sched jobs.Scheduler, log zerolog.Logger) *Resolver {
	return &Resolver{
		DB:         db,
		Merger:     merger,
		Notifier:   n,
		Remap:      remap,
		Jobs:       sched,
		Log:        log,
		MaxRetries: defaultMaxRetries,
	}
}

// sideEffects accumulates post-commit work during outcome execution. Nothing
// in here fires if the transaction rolls back.
type sideEffects struct {
	changed []domain.RecipientID
	jobs    []jobs.Job
	remaps  [][2]domain.RecipientID
}

func (fx *sideEffects) noteChanged(id domain.RecipientID) {
	fx.changed = append(fx.changed, id)
}

func (fx *sideEffects) noteRefresh(id domain.RecipientID) {
	fx.jobs = append(fx.jobs, jobs.Job{Kind: jobs.KindRefreshProfile, RecipientID: id})
}

func (fx *sideEffects) noteNumberChanged(id domain.RecipientID, old string) {
	fx.jobs = append(fx.jobs, jobs.Job{Kind: jobs.KindNumberChanged, RecipientID: id, OldE164: old})
}

// Resolve runs one full get-and-possibly-merge cycle. It returns the resolved
// RecipientId, or ErrInvalidArgument when neither identifier is supplied, or
// ErrConflict when retries are exhausted under contention.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (ResolveResult, error) {
	if in.ACI == nil && in.E164 == nil {
		return ResolveResult{}, ErrInvalidArgument
	}

	retries := r.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	for attempt := 0; attempt <= retries; attempt++ {
		var (
			res ResolveResult
			fx  sideEffects
		)
		err := r.DB.Transaction(func(tx *gorm.DB) error {
			out, err := r.classify(ctx, tx, in)
			if err != nil {
				return err
			}
			id, err := r.execute(ctx, tx, out, &fx)
			if err != nil {
				return err
			}
			res = ResolveResult{ID: id, Outcome: out}
			return nil
		})
		if errors.Is(err, repo.ErrConstraintViolation) {
			r.Log.Warn().
				Int("attempt", attempt).
				Msg("identifier write lost a race, re-running resolution")
			continue
		}
		if err != nil {
			return ResolveResult{}, err
		}

		r.commitEffects(&fx)
		resolverOutcomes.WithLabelValues(res.Outcome.Branch()).Inc()
		r.Log.Info().
			Str("branch", res.Outcome.Branch()).
			Int64("recipient_id", int64(res.ID)).
			Bool("high_trust", in.HighTrust).
			Msg("resolved recipient identity")
		return res, nil
	}

	resolverConflicts.Inc()
	return ResolveResult{}, ErrConflict
}

// Lookup fetches a recipient by id, following the remap cache for ids
// superseded by a merge. A miss in both the store and the cache is
// ErrMissingRecipient.
func (r *Resolver) Lookup(ctx context.Context, id domain.RecipientID) (*domain.Recipient, error) {
	rec, err := repo.GetRecipient(ctx, r.DB, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if mapped, ok := r.Remap.Resolve(id); ok {
		rec, err := repo.GetRecipient(ctx, r.DB, mapped)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrMissingRecipient
}

// classify decides which branch of the state machine fires. Branches are
// mutually exclusive and checked in priority order; the first match wins.
func (r *Resolver) classify(ctx context.Context, tx *gorm.DB, in ResolveInput) (domain.ResolveOutcome, error) {
	var (
		byACI  *domain.Recipient
		byE164 *domain.Recipient
		err    error
	)
	if in.ACI != nil {
		byACI, err = repo.FindByACI(ctx, tx, *in.ACI)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	if in.E164 != nil {
		byE164, err = repo.FindByE164(ctx, tx, *in.E164)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	switch {
	// 1. Both identifiers map to the same record: nothing to do.
	case byACI != nil && byE164 != nil && byACI.ID == byE164.ID:
		return domain.OutcomeMatch{ID: byACI.ID}, nil

	// 2. Only the ACI matched.
	case byACI != nil && byE164 == nil:
		if in.E164 != nil && in.HighTrust && byACI.E164Value() != string(*in.E164) {
			if r.isSelf(byACI) && !in.SelfChangeAllowed {
				r.Log.Warn().
					Int64("recipient_id", int64(byACI.ID)).
					Msg("refusing e164 change on self record")
				return domain.OutcomeMatch{ID: byACI.ID}, nil
			}
			var old *domain.E164
			if byACI.E164 != nil {
				v := domain.E164(*byACI.E164)
				old = &v
			}
			return domain.OutcomeMatchAndUpdateE164{ID: byACI.ID, NewE164: *in.E164, OldE164: old}, nil
		}
		// Low-trust or no-op: the input e164 (if any) is dropped without
		// creating a linkage.
		return domain.OutcomeMatch{ID: byACI.ID}, nil

	// 3. Only the E164 matched.
	case byACI == nil && byE164 != nil:
		if in.ACI == nil {
			return domain.OutcomeMatch{ID: byE164.ID}, nil
		}
		if byE164.ACI == nil {
			if in.HighTrust {
				return domain.OutcomeMatchAndUpdateACI{ID: byE164.ID, ACI: *in.ACI}, nil
			}
			// Low trust may not link the bare-e164 record to this ACI.
			return domain.OutcomeInsert{ACI: in.ACI}, nil
		}
		// The e164's owner holds a different ACI (an equal one would have
		// been found by the ACI lookup): the number was recycled.
		if in.HighTrust {
			if r.isSelf(byE164) && !in.SelfChangeAllowed {
				r.Log.Warn().
					Int64("recipient_id", int64(byE164.ID)).
					Msg("refusing to strip e164 from self record")
				return domain.OutcomeInsert{ACI: in.ACI}, nil
			}
			return domain.OutcomeInsertAndReassignE164{
				PreviousOwner: byE164.ID,
				ACI:           *in.ACI,
				E164:          *in.E164,
			}, nil
		}
		return domain.OutcomeInsert{ACI: in.ACI}, nil

	// 4. Neither identifier known.
	case byACI == nil && byE164 == nil:
		switch {
		case in.HighTrust:
			return domain.OutcomeInsert{ACI: in.ACI, E164: in.E164}, nil
		case in.ACI != nil:
			// Do not fabricate a phantom e164 link from a low-trust source.
			return domain.OutcomeInsert{ACI: in.ACI}, nil
		default:
			return domain.OutcomeInsert{E164: in.E164}, nil
		}

	// 5. Both found, on different records.
	default:
		if byE164.ACI == nil {
			if in.HighTrust {
				if r.isSelf(byE164) && !in.SelfChangeAllowed {
					r.Log.Warn().
						Int64("recipient_id", int64(byE164.ID)).
						Msg("refusing to merge away self record")
					return domain.OutcomeMatch{ID: byACI.ID}, nil
				}
				return domain.OutcomeMatchAndMerge{
					Survivor: byACI.ID,
					Loser:    byE164.ID,
					E164:     *in.E164,
				}, nil
			}
			return domain.OutcomeMatch{ID: byACI.ID}, nil
		}
		if in.HighTrust {
			if r.isSelf(byE164) && !in.SelfChangeAllowed {
				r.Log.Warn().
					Int64("recipient_id", int64(byE164.ID)).
					Msg("refusing to strip e164 from self record")
				return domain.OutcomeMatch{ID: byACI.ID}, nil
			}
			return domain.OutcomeMatchAndReassignE164{
				ID:            byACI.ID,
				PreviousOwner: byE164.ID,
				E164:          *in.E164,
			}, nil
		}
		return domain.OutcomeMatch{ID: byACI.ID}, nil
	}
}

// execute applies the chosen outcome inside the caller's transaction and
// records post-commit side effects. Constraint violations bubble up to the
// retry loop in Resolve.
func (r *Resolver) execute(ctx context.Context, tx *gorm.DB, out domain.ResolveOutcome, fx *sideEffects) (domain.RecipientID, error) {
	switch o := out.(type) {
	case domain.OutcomeMatch:
		return o.ID, nil

	case domain.OutcomeMatchAndUpdateE164:
		if err := repo.UpdateE164(ctx, tx, o.ID, o.NewE164); err != nil {
			return 0, err
		}
		fx.noteChanged(o.ID)
		fx.noteRefresh(o.ID)
		if o.OldE164 != nil && *o.OldE164 != o.NewE164 {
			fx.noteNumberChanged(o.ID, string(*o.OldE164))
		}
		return o.ID, nil

	case domain.OutcomeMatchAndUpdateACI:
		if err := repo.UpdateACI(ctx, tx, o.ID, o.ACI); err != nil {
			return 0, err
		}
		fx.noteChanged(o.ID)
		fx.noteRefresh(o.ID)
		return o.ID, nil

	case domain.OutcomeMatchAndMerge:
		survivor, err := repo.GetRecipient(ctx, tx, o.Survivor)
		if err != nil {
			return 0, err
		}
		loser, err := repo.GetRecipient(ctx, tx, o.Loser)
		if err != nil {
			return 0, err
		}
		oldE164 := survivor.E164Value()
		if _, err := r.Merger.Merge(ctx, tx, survivor, loser); err != nil {
			return 0, err
		}
		if err := repo.UpdateE164(ctx, tx, o.Survivor, o.E164); err != nil {
			return 0, err
		}
		fx.remaps = append(fx.remaps, [2]domain.RecipientID{o.Loser, o.Survivor})
		fx.noteChanged(o.Survivor)
		fx.noteRefresh(o.Survivor)
		if oldE164 != "" && oldE164 != string(o.E164) {
			fx.noteNumberChanged(o.Survivor, oldE164)
		}
		return o.Survivor, nil

	case domain.OutcomeMatchAndReassignE164:
		target, err := repo.GetRecipient(ctx, tx, o.ID)
		if err != nil {
			return 0, err
		}
		oldE164 := target.E164Value()
		if err := repo.ClearE164(ctx, tx, o.PreviousOwner); err != nil {
			return 0, err
		}
		if err := repo.UpdateE164(ctx, tx, o.ID, o.E164); err != nil {
			return 0, err
		}
		fx.noteChanged(o.PreviousOwner)
		fx.noteNumberChanged(o.PreviousOwner, string(o.E164))
		fx.noteChanged(o.ID)
		fx.noteRefresh(o.ID)
		if oldE164 != "" && oldE164 != string(o.E164) {
			fx.noteNumberChanged(o.ID, oldE164)
		}
		return o.ID, nil

	case domain.OutcomeInsert:
		rec, err := repo.InsertRecipient(ctx, tx, o.ACI, o.E164)
		if err != nil {
			return 0, err
		}
		fx.noteChanged(rec.ID)
		fx.noteRefresh(rec.ID)
		return rec.ID, nil

	case domain.OutcomeInsertAndReassignE164:
		if err := repo.ClearE164(ctx, tx, o.PreviousOwner); err != nil {
			return 0, err
		}
		aci, e164 := o.ACI, o.E164
		rec, err := repo.InsertRecipient(ctx, tx, &aci, &e164)
		if err != nil {
			return 0, err
		}
		fx.noteChanged(o.PreviousOwner)
		fx.noteNumberChanged(o.PreviousOwner, string(o.E164))
		fx.noteChanged(rec.ID)
		fx.noteRefresh(rec.ID)
		return rec.ID, nil

	default:
		// The outcome set is sealed; reaching this is a programming error.
		return 0, ErrInvalidArgument
	}
}

// commitEffects fires notifications, remap entries, and follow-up jobs after
// the transaction committed.
func (r *Resolver) commitEffects(fx *sideEffects) {
	for _, m := range fx.remaps {
		r.Remap.Add(m[0], m[1])
	}
	if len(fx.changed) > 0 {
		r.Notifier.Changed(fx.changed...)
	}
	if r.Jobs != nil {
		for _, j := range fx.jobs {
			r.Jobs.Enqueue(j)
		}
	}
}

// isSelf reports whether rec is the local user's own record.
func (r *Resolver) isSelf(rec *domain.Recipient) bool {
	if r.SelfACI != "" && rec.AciValue() == string(r.SelfACI) {
		return true
	}
	if r.SelfE164 != "" && rec.E164Value() == string(r.SelfE164) {
		return true
	}
	return false
}
