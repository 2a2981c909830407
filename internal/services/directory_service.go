// Package services — directory refresh.
//
// The contact-discovery client supplies batches of (e164 → aci?) mappings.
// Each mapping with an ACI is fed through the resolver at high trust — the
// directory is authoritative for identity linkage — and the resolved record
// is marked registered. Numbers the directory did not recognize are marked
// not-registered when a local record exists for them.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/notify"
	"github.com/tbourn/go-contact-backend/internal/repo"
)

// DirectoryEntry is one discovery result: the queried number and the account
// the directory mapped it to, if any.
type DirectoryEntry struct {
	E164 domain.E164
	ACI  *domain.ACI
}

// DirectoryResult reports, per input e164, the resolved local recipient so
// the caller can reconcile its contact list.
type DirectoryResult struct {
	E164        domain.E164
	RecipientID domain.RecipientID
	ACI         *domain.ACI
	Registered  bool
}

// DirectoryService applies directory-refresh batches to the store.
type DirectoryService struct {
	DB       *gorm.DB
	Resolver *Resolver
	Notifier *notify.Notifier
	Log      zerolog.Logger
}

// Refresh feeds every entry through the resolver and updates registration
// state. Entries are independent: a conflict on one does not abort the batch;
// it is reported in its result slot as a zero RecipientID and skipped.
func (s *DirectoryService) Refresh(ctx context.Context, entries []DirectoryEntry) ([]DirectoryResult, error) {
	out := make([]DirectoryResult, 0, len(entries))
	for _, entry := range entries {
		e164 := entry.E164
		if entry.ACI == nil {
			// The directory does not know this number. If we hold a record
			// for it, flip it to not-registered.
			rec, err := repo.FindByE164(ctx, s.DB, e164)
			if errors.Is(err, repo.ErrNotFound) {
				out = append(out, DirectoryResult{E164: e164})
				continue
			}
			if err != nil {
				return nil, err
			}
			if rec.Registered != domain.NotRegistered {
				if err := repo.SetRegistered(ctx, s.DB, rec.ID, domain.NotRegistered); err != nil {
					return nil, err
				}
				s.Notifier.Changed(rec.ID)
			}
			out = append(out, DirectoryResult{E164: e164, RecipientID: rec.ID})
			continue
		}

		res, err := s.Resolver.Resolve(ctx, ResolveInput{
			ACI:       entry.ACI,
			E164:      &e164,
			HighTrust: true,
		})
		if errors.Is(err, ErrConflict) {
			s.Log.Warn().
				Str("e164", string(e164)).
				Msg("directory entry skipped after resolution conflict")
			out = append(out, DirectoryResult{E164: e164, ACI: entry.ACI})
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := repo.SetRegistered(ctx, s.DB, res.ID, domain.Registered); err != nil {
			return nil, err
		}
		s.Notifier.Changed(res.ID)
		out = append(out, DirectoryResult{
			E164:        e164,
			RecipientID: res.ID,
			ACI:         entry.ACI,
			Registered:  true,
		})
	}
	return out, nil
}

// AttributeEnvelope resolves the sender of an inbound message envelope.
// Trust is per envelope: an authenticated sender may define linkage, an
// unauthenticated hint may only confirm it.
func (s *DirectoryService) AttributeEnvelope(ctx context.Context, aci domain.ACI, e164 *domain.E164, authenticated bool) (domain.RecipientID, error) {
	res, err := s.Resolver.Resolve(ctx, ResolveInput{
		ACI:       &aci,
		E164:      e164,
		HighTrust: authenticated,
	})
	if err != nil {
		return 0, err
	}
	return res.ID, nil
}
