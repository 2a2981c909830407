// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the recipient-store primitives: exact
// identifier lookups and guarded identity writes.
//
// All functions are context-aware and accept a *gorm.DB handle. Identity
// writes are expected to run inside a caller-scoped transaction; the store
// never commits implicitly. The UNIQUE indexes on aci and e164 are the last
// line of defense against concurrent writers: a violation is reported as
// ErrConstraintViolation and the caller (the resolver) re-runs classification
// instead of treating it as fatal.
//
// Error semantics:
//   - ErrNotFound when a lookup matches no row.
//   - ErrConstraintViolation when a write collides with another row's unique
//     identifier.
//   - Any other gorm error is propagated untouched.
package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// ErrNotFound is returned when a recipient lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConstraintViolation is returned when an identity write collides with a
// unique index (another row already owns the aci or e164). The resolver treats
// it as a signal to recompute, not as a failure.
var ErrConstraintViolation = errors.New("unique identifier constraint violation")

// isUniqueViolation reports whether err is a UNIQUE-index failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations, so a
// string check backs up gorm's translated sentinel.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// mapWriteErr converts UNIQUE failures to ErrConstraintViolation and passes
// everything else through.
func mapWriteErr(err error) error {
	if isUniqueViolation(err) {
		return ErrConstraintViolation
	}
	return err
}

// FindByACI returns the recipient owning the given account identifier,
// or ErrNotFound.
func FindByACI(ctx context.Context, db *gorm.DB, aci domain.ACI) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := db.WithContext(ctx).Where("aci = ?", string(aci)).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByE164 returns the recipient owning the given phone number,
// or ErrNotFound.
func FindByE164(ctx context.Context, db *gorm.DB, e164 domain.E164) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := db.WithContext(ctx).Where("e164 = ?", string(e164)).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByStorageID returns the recipient linked to the given sync-service
// storage id, or ErrNotFound.
func FindByStorageID(ctx context.Context, db *gorm.DB, storageID string) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := db.WithContext(ctx).Where("storage_id = ?", storageID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecipient fetches a recipient row by id, or ErrNotFound. Callers that
// may hold a superseded id should consult the remap cache first.
func GetRecipient(ctx context.Context, db *gorm.DB, id domain.RecipientID) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := db.WithContext(ctx).Where("id = ?", int64(id)).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertRecipient creates a new recipient row holding the supplied
// identifiers (either may be nil, not both) with a fresh storage id.
// Returns ErrConstraintViolation when an identifier already exists on another
// row — the resolver's pre-checks lost a race.
func InsertRecipient(ctx context.Context, db *gorm.DB, aci *domain.ACI, e164 *domain.E164) (*domain.Recipient, error) {
	rec := &domain.Recipient{StorageID: newStorageID()}
	if aci != nil {
		s := string(*aci)
		rec.ACI = &s
	}
	if e164 != nil {
		s := string(*e164)
		rec.E164 = &s
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, mapWriteErr(err)
	}
	return rec, nil
}

// UpdateACI attaches an account identifier to an existing row and rotates its
// storage id in the same statement.
func UpdateACI(ctx context.Context, db *gorm.DB, id domain.RecipientID, aci domain.ACI) error {
	res := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ?", int64(id)).
		Updates(map[string]any{"aci": string(aci), "storage_id": newStorageID()})
	if res.Error != nil {
		return mapWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateE164 overwrites the phone number on an existing row and rotates its
// storage id in the same statement.
func UpdateE164(ctx context.Context, db *gorm.DB, id domain.RecipientID, e164 domain.E164) error {
	res := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ?", int64(id)).
		Updates(map[string]any{"e164": string(e164), "storage_id": newStorageID()})
	if res.Error != nil {
		return mapWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearE164 strips the phone number from a row (its number was stale or
// recycled) and rotates the storage id.
func ClearE164(ctx context.Context, db *gorm.DB, id domain.RecipientID) error {
	res := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ?", int64(id)).
		Updates(map[string]any{"e164": nil, "storage_id": newStorageID()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRegistered updates the directory-registration state of a row.
func SetRegistered(ctx context.Context, db *gorm.DB, id domain.RecipientID, state domain.RegisteredState) error {
	res := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ?", int64(id)).
		Update("registered", state)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile writes the mergeable profile/preference attributes of a row.
// Identity fields are untouched, so the storage id is not rotated here.
func UpdateProfile(ctx context.Context, db *gorm.DB, id domain.RecipientID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ?", int64(id)).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecipient hard-deletes a row. Callers must have migrated every
// foreign reference first; only the merge engine does this.
func DeleteRecipient(ctx context.Context, db *gorm.DB, id domain.RecipientID) error {
	res := db.WithContext(ctx).Where("id = ?", int64(id)).Delete(&domain.Recipient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecipientsPage returns a page of discoverable recipients (rows holding
// at least one identifier), ordered by id for a stable pagination cursor.
func ListRecipientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := db.WithContext(ctx).
		Where("aci IS NOT NULL OR e164 IS NOT NULL").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountRecipients returns how many discoverable recipients exist.
func CountRecipients(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Recipient{}).
		Where("aci IS NOT NULL OR e164 IS NOT NULL").
		Count(&n).Error
	return n, err
}

// newStorageID mints a fresh opaque sync-service key.
func newStorageID() *string {
	id := uuid.NewString()
	return &id
}
