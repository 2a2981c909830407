package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/repo"
)

func seedMergePair(t *testing.T, db *gorm.DB) (survivor, loser *domain.Recipient) {
	t.Helper()
	aci := *aciPtr(t, testACI)
	e164 := *e164Ptr(t, testE164)

	s, err := repo.InsertRecipient(context.Background(), db, &aci, nil)
	if err != nil {
		t.Fatalf("seed survivor: %v", err)
	}
	l, err := repo.InsertRecipient(context.Background(), db, nil, &e164)
	if err != nil {
		t.Fatalf("seed loser: %v", err)
	}
	return s, l
}

func TestMerge_SameRecord_Fails(t *testing.T) {
	db := newServiceDB(t)
	m := NewMergeEngine(zerolog.Nop())
	s, _ := seedMergePair(t, db)

	_, err := m.Merge(context.Background(), db, s, s)
	if !errors.Is(err, ErrMergeFailure) {
		t.Fatalf("expected ErrMergeFailure, got %v", err)
	}
}

func TestMerge_DeletesLoser_RevokesSessions(t *testing.T) {
	db := newServiceDB(t)
	m := NewMergeEngine(zerolog.Nop())
	s, l := seedMergePair(t, db)

	if err := db.Create(&domain.Session{ID: uuid.NewString(), Address: testE164}).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := db.Create(&domain.IdentityKey{Address: testE164, KeyData: []byte{7}}).Error; err != nil {
		t.Fatalf("seed identity key: %v", err)
	}

	id, err := m.Merge(context.Background(), db, s, l)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if id != s.ID {
		t.Fatalf("survivor id = %d, want %d", id, s.ID)
	}

	if _, err := repo.GetRecipient(context.Background(), db, l.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("loser row must be deleted, got %v", err)
	}

	var n int64
	db.Model(&domain.Session{}).Where("address = ?", testE164).Count(&n)
	if n != 0 {
		t.Fatalf("sessions must be revoked, %d left", n)
	}
	db.Model(&domain.IdentityKey{}).Where("address = ?", testE164).Count(&n)
	if n != 0 {
		t.Fatalf("identity key must be dropped, %d left", n)
	}
}

func TestMerge_RekeysForeignReferences(t *testing.T) {
	db := newServiceDB(t)
	m := NewMergeEngine(zerolog.Nop())
	s, l := seedMergePair(t, db)

	loserThread := domain.Thread{RecipientID: l.ID}
	if err := db.Create(&loserThread).Error; err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	msg := domain.Message{ID: uuid.NewString(), ThreadID: loserThread.ID, SenderID: l.ID, Body: "hello", SentAt: time.Now()}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if err := db.Create(&domain.GroupMember{GroupID: "g1", RecipientID: l.ID}).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}

	if _, err := m.Merge(context.Background(), db, s, l); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	var gotMsg domain.Message
	if err := db.First(&gotMsg, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("message lost: %v", err)
	}
	if gotMsg.SenderID != s.ID {
		t.Fatalf("message sender not re-keyed: %+v", gotMsg)
	}

	var thread domain.Thread
	if err := db.First(&thread, "recipient_id = ?", int64(s.ID)).Error; err != nil {
		t.Fatalf("thread not repointed: %v", err)
	}

	var n int64
	db.Model(&domain.GroupMember{}).Where("recipient_id = ?", int64(s.ID)).Count(&n)
	if n != 1 {
		t.Fatalf("group membership not migrated")
	}
}

func TestMergeFields_Precedence(t *testing.T) {
	pk := "loser-profile-key"
	ring := "chime"

	survivor := &domain.Recipient{
		ProfileName:       "",
		Blocked:           false,
		ProfileSharing:    true,
		MuteUntil:         100,
		MessageExpirySecs: 3600,
	}
	loser := &domain.Recipient{
		ProfileName:       "Ada",
		ProfileKey:        &pk,
		Ringtone:          &ring,
		Blocked:           true,
		ProfileSharing:    false,
		SharedContact:     true,
		MuteUntil:         500,
		MessageExpirySecs: 60,
		Registered:        domain.Registered,
	}

	fields := mergeFields(survivor, loser)

	if fields["blocked"] != true {
		t.Fatalf("blocked must OR to true: %v", fields)
	}
	if _, ok := fields["profile_sharing"]; ok {
		t.Fatalf("survivor already shares; no write needed: %v", fields)
	}
	if fields["shared_contact"] != true {
		t.Fatalf("shared_contact must OR to true: %v", fields)
	}
	if fields["mute_until"] != int64(500) {
		t.Fatalf("later mute must win: %v", fields)
	}
	if fields["message_expiry"] != 60 {
		t.Fatalf("shorter non-zero expiry must win: %v", fields)
	}
	if fields["profile_name"] != "Ada" {
		t.Fatalf("empty survivor name takes loser's: %v", fields)
	}
	if fields["profile_key"] != pk || fields["ringtone"] != ring {
		t.Fatalf("absent survivor attributes take loser's: %v", fields)
	}
	if fields["registered"] != domain.Registered {
		t.Fatalf("unknown registration takes loser's state: %v", fields)
	}
}

func TestMergeFields_SurvivorWinsWhenSet(t *testing.T) {
	sk := "survivor-key"
	survivor := &domain.Recipient{
		ProfileName:       "Grace",
		ProfileKey:        &sk,
		MuteUntil:         900,
		MessageExpirySecs: 30,
		Registered:        domain.Registered,
	}
	lk := "loser-key"
	loser := &domain.Recipient{
		ProfileName:       "Other",
		ProfileKey:        &lk,
		MuteUntil:         100,
		MessageExpirySecs: 3600,
		Registered:        domain.NotRegistered,
	}

	fields := mergeFields(survivor, loser)
	if len(fields) != 0 {
		t.Fatalf("survivor-preferred fields must not be overwritten: %v", fields)
	}
}

func TestMerge_InsideTransaction_RollsBackAtomically(t *testing.T) {
	db := newServiceDB(t)
	m := NewMergeEngine(zerolog.Nop())
	s, l := seedMergePair(t, db)

	sentinel := errors.New("abort after merge")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := m.Merge(context.Background(), tx, s, l); err != nil {
			t.Fatalf("Merge inside tx: %v", err)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("transaction should surface the sentinel, got %v", err)
	}

	// Rollback restores the loser row: nothing of the merge is visible.
	if _, err := repo.GetRecipient(context.Background(), db, l.ID); err != nil {
		t.Fatalf("loser must survive a rolled-back merge: %v", err)
	}
}
