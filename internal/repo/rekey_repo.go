// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the re-keying primitives used by the
// merge engine: each helper migrates one table's foreign references from the
// losing recipient to the surviving one. Every helper is idempotent — a merge
// replayed over already-migrated rows is a no-op — so a nested thread merge
// can safely re-run.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// RevokeSessions deletes cryptographic sessions and the remembered identity
// key for the given address. Trust material keyed by a merged-away number is
// dropped, never transferred.
func RevokeSessions(ctx context.Context, db *gorm.DB, address string) error {
	if err := db.WithContext(ctx).Where("address = ?", address).Delete(&domain.Session{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("address = ?", address).Delete(&domain.IdentityKey{}).Error
}

// RekeyMessageSenders repoints message attribution from loser to survivor.
func RekeyMessageSenders(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	return db.WithContext(ctx).Model(&domain.Message{}).
		Where("sender_id = ?", int64(loser)).
		Update("sender_id", int64(survivor)).Error
}

// RekeyMentions repoints mention rows from loser to survivor.
func RekeyMentions(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	return db.WithContext(ctx).Model(&domain.Mention{}).
		Where("recipient_id = ?", int64(loser)).
		Update("recipient_id", int64(survivor)).Error
}

// RekeyReactions repoints reaction authorship from loser to survivor.
// Reactions are unique per (message, author); when both sides reacted to the
// same message the loser's duplicate is dropped before the update.
func RekeyReactions(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	err := db.WithContext(ctx).
		Where("author_id = ? AND message_id IN (?)",
			int64(loser),
			db.Session(&gorm.Session{NewDB: true}).Model(&domain.Reaction{}).Select("message_id").Where("author_id = ?", int64(survivor)),
		).
		Delete(&domain.Reaction{}).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.Reaction{}).
		Where("author_id = ?", int64(loser)).
		Update("author_id", int64(survivor)).Error
}

// RekeyReadReceipts repoints read receipts from loser to survivor, dropping
// loser rows that would collide with an existing survivor receipt.
func RekeyReadReceipts(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	err := db.WithContext(ctx).
		Where("recipient_id = ? AND message_id IN (?)",
			int64(loser),
			db.Session(&gorm.Session{NewDB: true}).Model(&domain.ReadReceipt{}).Select("message_id").Where("recipient_id = ?", int64(survivor)),
		).
		Delete(&domain.ReadReceipt{}).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.ReadReceipt{}).
		Where("recipient_id = ?", int64(loser)).
		Update("recipient_id", int64(survivor)).Error
}

// RekeyGroupMembers migrates group membership, dropping loser rows for groups
// the survivor is already in.
func RekeyGroupMembers(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	err := db.WithContext(ctx).
		Where("recipient_id = ? AND group_id IN (?)",
			int64(loser),
			db.Session(&gorm.Session{NewDB: true}).Model(&domain.GroupMember{}).Select("group_id").Where("recipient_id = ?", int64(survivor)),
		).
		Delete(&domain.GroupMember{}).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.GroupMember{}).
		Where("recipient_id = ?", int64(loser)).
		Update("recipient_id", int64(survivor)).Error
}

// RekeyDistributionListMembers migrates distribution-list membership, same
// collision rule as groups.
func RekeyDistributionListMembers(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	err := db.WithContext(ctx).
		Where("recipient_id = ? AND list_id IN (?)",
			int64(loser),
			db.Session(&gorm.Session{NewDB: true}).Model(&domain.DistributionListMember{}).Select("list_id").Where("recipient_id = ?", int64(survivor)),
		).
		Delete(&domain.DistributionListMember{}).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.DistributionListMember{}).
		Where("recipient_id = ?", int64(loser)).
		Update("recipient_id", int64(survivor)).Error
}

// MergeThreads collapses the two sides' conversations. Threads are unique per
// recipient, so:
//   - loser has no thread: nothing to do.
//   - only loser has a thread: it is repointed at the survivor.
//   - both have threads: the loser thread's messages are moved into the
//     survivor thread (concatenated by timestamp order, which the per-thread
//     index preserves) and the loser thread row is deleted.
func MergeThreads(ctx context.Context, db *gorm.DB, loser, survivor domain.RecipientID) error {
	var loserThread domain.Thread
	err := db.WithContext(ctx).Where("recipient_id = ?", int64(loser)).First(&loserThread).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var survivorThread domain.Thread
	err = db.WithContext(ctx).Where("recipient_id = ?", int64(survivor)).First(&survivorThread).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return db.WithContext(ctx).Model(&domain.Thread{}).
			Where("id = ?", loserThread.ID).
			Update("recipient_id", int64(survivor)).Error
	case err != nil:
		return err
	}

	if err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("thread_id = ?", loserThread.ID).
		Update("thread_id", survivorThread.ID).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", loserThread.ID).Delete(&domain.Thread{}).Error
}
