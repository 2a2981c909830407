// Package services — storage-service sync apply.
//
// The remote sync service pushes contact records keyed by an opaque storage
// id. Identity fields always go through the resolver's merge path — a synced
// record can reveal an aci/e164 collision the same way a directory entry can,
// and writing blind would corrupt the uniqueness invariants. Profile fields
// are applied afterwards, with the remote-owned storage id taking over from
// whatever the local row rotated to.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/notify"
	"github.com/tbourn/go-contact-backend/internal/repo"
)

// SyncRecord is one remote contact record from the storage service.
type SyncRecord struct {
	StorageID string
	ACI       *domain.ACI
	E164      *domain.E164

	ProfileName       string
	ProfileKey        *string
	Blocked           bool
	ProfileSharing    bool
	MuteUntil         int64
	MessageExpirySecs int
}

// SyncService applies remote records to the local store.
type SyncService struct {
	DB       *gorm.DB
	Resolver *Resolver
	Notifier *notify.Notifier
	Log      zerolog.Logger
}

// Apply upserts one synced record and returns the local recipient it landed
// on. The identity pair runs through the full resolver at high trust, so a
// record that collides with existing rows triggers the normal merge or
// reassign machinery instead of a constraint error.
func (s *SyncService) Apply(ctx context.Context, rec SyncRecord) (domain.RecipientID, error) {
	res, err := s.Resolver.Resolve(ctx, ResolveInput{
		ACI:       rec.ACI,
		E164:      rec.E164,
		HighTrust: true,
	})
	if err != nil {
		return 0, err
	}

	fields := map[string]any{
		"storage_id":      rec.StorageID,
		"blocked":         rec.Blocked,
		"profile_sharing": rec.ProfileSharing,
	}
	if rec.ProfileName != "" {
		// Display names arrive from arbitrary clients; store the canonical
		// composed form so equality checks behave.
		fields["profile_name"] = norm.NFC.String(rec.ProfileName)
	}
	if rec.ProfileKey != nil {
		fields["profile_key"] = *rec.ProfileKey
	}
	if rec.MuteUntil != 0 {
		fields["mute_until"] = rec.MuteUntil
	}
	if rec.MessageExpirySecs != 0 {
		fields["message_expiry"] = rec.MessageExpirySecs
	}

	if err := repo.UpdateProfile(ctx, s.DB, res.ID, fields); err != nil {
		return 0, err
	}
	s.Notifier.Changed(res.ID)

	s.Log.Debug().
		Int64("recipient_id", int64(res.ID)).
		Str("branch", res.Outcome.Branch()).
		Msg("applied sync record")
	return res.ID, nil
}

// LookupByStorageID finds the local row a remote record currently maps to.
// Returns ErrMissingRecipient when no row carries the storage id.
func (s *SyncService) LookupByStorageID(ctx context.Context, storageID string) (*domain.Recipient, error) {
	rec, err := repo.FindByStorageID(ctx, s.DB, storageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMissingRecipient
	}
	return rec, err
}
