// Package domain defines the persistence models for recipients and every
// table that holds a foreign reference to one. These types are mapped with
// GORM and form the core data layer of the contact store.
package domain

import (
	"time"
)

// Recipient is one row per locally-known entity (individual contact, group
// placeholder, or distribution list). It is the single shared mutable resource
// of the identity-resolution core.
//
// Identity fields:
//   - ACI: stable account identifier; UNIQUE when present.
//   - E164: phone number; UNIQUE when present.
//
// A row may hold neither, either, or both. A row with neither is reachable by
// id only and is never returned by identity lookup. Every mutation of ACI or
// E164 rotates StorageID, emits a change notification, and schedules a
// profile re-fetch (enforced at the service layer).
type Recipient struct {
	ID   RecipientID `json:"id"   gorm:"primaryKey;autoIncrement"`
	ACI  *string     `json:"aci,omitempty"  gorm:"column:aci;type:TEXT;uniqueIndex:ux_recipients_aci"`
	E164 *string     `json:"e164,omitempty" gorm:"column:e164;type:TEXT;uniqueIndex:ux_recipients_e164"`

	Registered RegisteredState `json:"registered" gorm:"type:INTEGER NOT NULL;default:0"`

	// StorageID links the row to the external sync service. It is rotated
	// whenever an identity-relevant field changes so the remote can detect
	// the update.
	StorageID *string `json:"storage_id,omitempty" gorm:"column:storage_id;type:TEXT;index"`

	// Profile and preference attributes. These are copied and merged but the
	// resolver never branches on them.
	ProfileName         string  `json:"profile_name,omitempty"   gorm:"type:TEXT NOT NULL;default:''"`
	ProfileKey          *string `json:"-"                        gorm:"column:profile_key;type:TEXT"`
	ProfileAvatar       string  `json:"profile_avatar,omitempty" gorm:"type:TEXT NOT NULL;default:''"`
	ProfileSharing      bool    `json:"profile_sharing"          gorm:"type:INTEGER NOT NULL;default:0"`
	SharedContact       bool    `json:"shared_contact"           gorm:"type:INTEGER NOT NULL;default:0"`
	Blocked             bool    `json:"blocked"                  gorm:"type:INTEGER NOT NULL;default:0"`
	MuteUntil           int64   `json:"mute_until,omitempty"     gorm:"type:INTEGER NOT NULL;default:0"`
	MessageExpirySecs   int     `json:"message_expiry,omitempty" gorm:"column:message_expiry;type:INTEGER NOT NULL;default:0"`
	Ringtone            *string `json:"-"                        gorm:"type:TEXT"`
	NotificationChannel *string `json:"-"                        gorm:"type:TEXT"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Recipient.
func (Recipient) TableName() string { return "recipients" }

// AciValue returns the ACI or "" when absent.
func (r *Recipient) AciValue() string {
	if r.ACI == nil {
		return ""
	}
	return *r.ACI
}

// E164Value returns the E164 or "" when absent.
func (r *Recipient) E164Value() string {
	if r.E164 == nil {
		return ""
	}
	return *r.E164
}

// Thread is a conversation with exactly one recipient. The unique index on
// RecipientID is what forces a nested thread merge when two recipients are
// collapsed into one.
type Thread struct {
	ID          int64       `gorm:"primaryKey;autoIncrement"`
	RecipientID RecipientID `gorm:"not null;uniqueIndex:ux_threads_recipient"`
	LastMessage string      `gorm:"type:TEXT NOT NULL;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName implements the GORM tabler interface.
func (Thread) TableName() string { return "threads" }

// Message is a single utterance within a thread, attributed to a sender
// recipient. Both ThreadID and SenderID are re-keyed during a merge.
type Message struct {
	ID        string      `gorm:"type:char(36);primaryKey"`
	ThreadID  int64       `gorm:"not null;index:idx_messages_thread,priority:1"`
	SenderID  RecipientID `gorm:"not null;index:idx_messages_sender"`
	Body      string      `gorm:"type:TEXT NOT NULL"`
	SentAt    time.Time   `gorm:"index:idx_messages_thread,priority:2"`
	CreatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (Message) TableName() string { return "messages" }

// Mention marks that a message mentions a recipient.
type Mention struct {
	ID          string      `gorm:"type:char(36);primaryKey"`
	MessageID   string      `gorm:"type:char(36);not null;index"`
	RecipientID RecipientID `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Mention) TableName() string { return "mentions" }

// Reaction is an emoji reaction by a recipient on a message. A recipient may
// react at most once per message.
type Reaction struct {
	ID        string      `gorm:"type:char(36);primaryKey"`
	MessageID string      `gorm:"type:char(36);not null;uniqueIndex:ux_reactions_msg_author,priority:1"`
	AuthorID  RecipientID `gorm:"not null;uniqueIndex:ux_reactions_msg_author,priority:2"`
	Emoji     string      `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (Reaction) TableName() string { return "reactions" }

// ReadReceipt records that a recipient has read a message.
type ReadReceipt struct {
	ID          string      `gorm:"type:char(36);primaryKey"`
	MessageID   string      `gorm:"type:char(36);not null;uniqueIndex:ux_receipts_msg_reader,priority:1"`
	RecipientID RecipientID `gorm:"not null;uniqueIndex:ux_receipts_msg_reader,priority:2"`
	ReadAt      time.Time
}

// TableName implements the GORM tabler interface.
func (ReadReceipt) TableName() string { return "read_receipts" }

// GroupMember links a recipient into a group. Membership is unique per
// (group, recipient); merge re-keying drops rows that would collide.
type GroupMember struct {
	GroupID     string      `gorm:"type:TEXT;primaryKey"`
	RecipientID RecipientID `gorm:"primaryKey;autoIncrement:false"`
	JoinedAt    time.Time
}

// TableName implements the GORM tabler interface.
func (GroupMember) TableName() string { return "group_members" }

// DistributionListMember links a recipient into a story distribution list.
type DistributionListMember struct {
	ListID      string      `gorm:"type:TEXT;primaryKey"`
	RecipientID RecipientID `gorm:"primaryKey;autoIncrement:false"`
}

// TableName implements the GORM tabler interface.
func (DistributionListMember) TableName() string { return "distribution_list_members" }

// Session is cryptographic session state keyed by the remote address (the
// peer's E164). Sessions for a merged-away number are revoked, never re-keyed:
// trust material established under a stale address must not silently transfer.
type Session struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	Address   string `gorm:"type:TEXT NOT NULL;index:idx_sessions_address"`
	DeviceID  int    `gorm:"not null;default:1"`
	Record    []byte `gorm:"type:BLOB"`
	CreatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (Session) TableName() string { return "sessions" }

// IdentityKey is the remembered long-term identity key for an address,
// used for safety-number verification. Dropped alongside sessions on merge.
type IdentityKey struct {
	Address   string `gorm:"type:TEXT;primaryKey"`
	KeyData   []byte `gorm:"type:BLOB NOT NULL"`
	Verified  bool   `gorm:"type:INTEGER NOT NULL;default:0"`
	CreatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (IdentityKey) TableName() string { return "identity_keys" }
