// Package domain defines the core persistence models and identifier types for
// the recipient store. These types are shared across the repository and
// service layers and are mapped with GORM where they are persisted.
package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RecipientID is the opaque local identifier of a recipient row. It is issued
// by the store on insert (SQLite rowid, monotonically increasing) and is never
// reused within a process run: rows are only deleted as the losing side of a
// merge, and the remap cache pins every superseded id to its survivor.
type RecipientID int64

// String renders the id for logs and JSON path segments.
func (id RecipientID) String() string { return fmt.Sprintf("RecipientID::%d", int64(id)) }

// ACI is the stable, opaque cryptographic account identifier of a recipient.
// It is independent of the phone number and never reassigned between users.
type ACI string

// E164 is a phone number in canonical international format ("+14155550101").
// Unlike an ACI it is mutable and may be recycled between users over time.
type E164 string

var e164RE = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)

// ParseACI validates and normalizes an ACI. ACIs are UUID-shaped strings;
// the canonical form is lowercase.
func ParseACI(s string) (ACI, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid aci: %w", err)
	}
	return ACI(u.String()), nil
}

// ParseE164 validates a phone number in E.164 form: a leading "+" followed by
// 2..15 digits with no separators. No region inference is attempted; callers
// are expected to canonicalize before handing numbers to this core.
func ParseE164(s string) (E164, error) {
	s = strings.TrimSpace(s)
	if !e164RE.MatchString(s) {
		return "", fmt.Errorf("invalid e164 %q", s)
	}
	return E164(s), nil
}

// RegisteredState tracks whether a recipient is known to the service
// directory. The zero value is deliberately UNKNOWN.
type RegisteredState int

const (
	RegisteredUnknown RegisteredState = iota
	Registered
	NotRegistered
)

// String implements fmt.Stringer for logging.
func (s RegisteredState) String() string {
	switch s {
	case Registered:
		return "registered"
	case NotRegistered:
		return "not_registered"
	default:
		return "unknown"
	}
}
