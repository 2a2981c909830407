// Package services — Merge Engine.
//
// Merging collapses two recipient rows discovered to be the same real-world
// entity. The directionality is a fixed contract: the survivor is always the
// ACI holder and the loser is the e164-only row — account identity wins.
// The whole operation runs inside the caller's transaction; any mid-merge
// failure is wrapped as ErrMergeFailure and rolls the transaction back, so a
// partial merge is never visible.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/repo"
)

// MergeEngine executes full record merges. It is stateless and safe to share.
type MergeEngine struct {
	Log zerolog.Logger
}

// NewMergeEngine constructs a MergeEngine.
func NewMergeEngine(log zerolog.Logger) *MergeEngine {
	return &MergeEngine{Log: log}
}

// Merge folds loser into survivor and deletes the loser row. The caller must
// hold the write transaction tx and is responsible for registering the
// loser→survivor remap entry after commit.
//
// Steps, all inside tx:
//  1. Revoke sessions and identity keys addressed by the loser's e164.
//  2. Re-key every foreign reference (messages, mentions, reactions, read
//     receipts, group and distribution-list membership) from loser to
//     survivor; merge the two threads if both sides own one.
//  3. Resolve field conflicts: booleans OR, mute-until takes the later
//     timestamp, message expiry takes the shorter non-zero timer, and
//     remaining profile attributes prefer the survivor's value.
//  4. Delete the loser row.
func (m *MergeEngine) Merge(ctx context.Context, tx *gorm.DB, survivor, loser *domain.Recipient) (domain.RecipientID, error) {
	start := time.Now()

	if survivor.ID == loser.ID {
		return 0, fmt.Errorf("%w: survivor and loser are the same record %d", ErrMergeFailure, int64(survivor.ID))
	}

	if addr := loser.E164Value(); addr != "" {
		if err := repo.RevokeSessions(ctx, tx, addr); err != nil {
			return 0, mergeErr("revoke sessions", err)
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context, *gorm.DB, domain.RecipientID, domain.RecipientID) error
	}{
		{"rekey message senders", repo.RekeyMessageSenders},
		{"rekey mentions", repo.RekeyMentions},
		{"rekey reactions", repo.RekeyReactions},
		{"rekey read receipts", repo.RekeyReadReceipts},
		{"rekey group members", repo.RekeyGroupMembers},
		{"rekey distribution lists", repo.RekeyDistributionListMembers},
		{"merge threads", repo.MergeThreads},
	}
	for _, s := range steps {
		if err := s.fn(ctx, tx, loser.ID, survivor.ID); err != nil {
			return 0, mergeErr(s.name, err)
		}
	}

	if err := repo.UpdateProfile(ctx, tx, survivor.ID, mergeFields(survivor, loser)); err != nil {
		return 0, mergeErr("resolve field conflicts", err)
	}

	if err := repo.DeleteRecipient(ctx, tx, loser.ID); err != nil {
		return 0, mergeErr("delete loser row", err)
	}

	mergesTotal.Inc()
	mergeDuration.Observe(time.Since(start).Seconds())
	m.Log.Info().
		Int64("survivor", int64(survivor.ID)).
		Int64("loser", int64(loser.ID)).
		Msg("merged recipient records")
	return survivor.ID, nil
}

func mergeErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMergeFailure, step, err)
}

// mergeFields computes the surviving attribute set with deterministic
// precedence. Only fields that actually change on the survivor are returned.
func mergeFields(survivor, loser *domain.Recipient) map[string]any {
	fields := map[string]any{}

	if loser.Blocked && !survivor.Blocked {
		fields["blocked"] = true
	}
	if loser.ProfileSharing && !survivor.ProfileSharing {
		fields["profile_sharing"] = true
	}
	if loser.SharedContact && !survivor.SharedContact {
		fields["shared_contact"] = true
	}

	// Later mute wins: the union of the two mutes.
	if loser.MuteUntil > survivor.MuteUntil {
		fields["mute_until"] = loser.MuteUntil
	}

	// Shorter non-zero expiry timer wins.
	if loser.MessageExpirySecs != 0 &&
		(survivor.MessageExpirySecs == 0 || loser.MessageExpirySecs < survivor.MessageExpirySecs) {
		fields["message_expiry"] = loser.MessageExpirySecs
	}

	// Remaining attributes: survivor-side value if present, else loser's.
	if survivor.ProfileName == "" && loser.ProfileName != "" {
		fields["profile_name"] = loser.ProfileName
	}
	if survivor.ProfileAvatar == "" && loser.ProfileAvatar != "" {
		fields["profile_avatar"] = loser.ProfileAvatar
	}
	if survivor.ProfileKey == nil && loser.ProfileKey != nil {
		fields["profile_key"] = *loser.ProfileKey
	}
	if survivor.Ringtone == nil && loser.Ringtone != nil {
		fields["ringtone"] = *loser.Ringtone
	}
	if survivor.NotificationChannel == nil && loser.NotificationChannel != nil {
		fields["notification_channel"] = *loser.NotificationChannel
	}
	if survivor.Registered == domain.RegisteredUnknown && loser.Registered != domain.RegisteredUnknown {
		fields["registered"] = loser.Registered
	}

	return fields
}
