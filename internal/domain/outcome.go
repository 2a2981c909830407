// Package domain — sealed resolve-outcome hierarchy.
//
// A resolution classifies its input into exactly one of the variants below.
// Modeling the outcomes as a closed set of types (rather than a pile of
// booleans) keeps "exactly one outcome per call" enforceable: the executor
// switches over the variants and the compiler flags an unhandled type.
package domain

// ResolveOutcome is the closed set of decisions the identity resolver can
// reach for one (ACI?, E164?, trust) input. Only types in this package
// implement it.
type ResolveOutcome interface {
	// Branch returns the stable name of the fired state-machine branch,
	// used for logging and metrics labels.
	Branch() string

	sealed()
}

// OutcomeMatch — both identifiers resolve to one existing record (or the one
// supplied identifier does) and nothing needs to be written.
type OutcomeMatch struct {
	ID RecipientID
}

// OutcomeMatchAndUpdateE164 — the ACI matched an existing record whose phone
// number is stale or missing; the input E164 is written onto it. OldE164 is
// non-nil when the record previously held a different number, which surfaces
// as a number-changed event.
type OutcomeMatchAndUpdateE164 struct {
	ID      RecipientID
	NewE164 E164
	OldE164 *E164
}

// OutcomeMatchAndUpdateACI — the E164 matched a record that has no ACI yet;
// the input ACI is attached to it.
type OutcomeMatchAndUpdateACI struct {
	ID  RecipientID
	ACI ACI
}

// OutcomeMatchAndMerge — the two identifiers live on different records and
// the E164-side record has no ACI of its own: the E164 record is merged into
// the ACI record. ACI identity always wins, so Survivor is the ACI holder.
type OutcomeMatchAndMerge struct {
	Survivor RecipientID
	Loser    RecipientID
	E164     E164
}

// OutcomeMatchAndReassignE164 — the E164 currently belongs to a different,
// fully-identified record; it is stripped from that record (its number was
// stale) and attached to the ACI record.
type OutcomeMatchAndReassignE164 struct {
	ID            RecipientID
	PreviousOwner RecipientID
	E164          E164
}

// OutcomeInsert — no existing record may be linked; a new row is created with
// whichever identifiers the trust level permits.
type OutcomeInsert struct {
	ACI  *ACI
	E164 *E164
}

// OutcomeInsertAndReassignE164 — the E164's current owner holds a different
// ACI, so the number was recycled: it is stripped from the old owner and a
// brand-new record is created owning both input identifiers.
type OutcomeInsertAndReassignE164 struct {
	PreviousOwner RecipientID
	ACI           ACI
	E164          E164
}

// Branch implements ResolveOutcome.
func (OutcomeMatch) Branch() string { return "match" }

// Branch implements ResolveOutcome.
func (OutcomeMatchAndUpdateE164) Branch() string { return "match_update_e164" }

// Branch implements ResolveOutcome.
func (OutcomeMatchAndUpdateACI) Branch() string { return "match_update_aci" }

// Branch implements ResolveOutcome.
func (OutcomeMatchAndMerge) Branch() string { return "match_merge" }

// Branch implements ResolveOutcome.
func (OutcomeMatchAndReassignE164) Branch() string { return "match_reassign_e164" }

// Branch implements ResolveOutcome.
func (OutcomeInsert) Branch() string { return "insert" }

// Branch implements ResolveOutcome.
func (OutcomeInsertAndReassignE164) Branch() string { return "insert_reassign_e164" }

func (OutcomeMatch) sealed() {}
func (OutcomeMatchAndUpdateE164) sealed() {}
func (OutcomeMatchAndUpdateACI) sealed() {}
func (OutcomeMatchAndMerge) sealed() {}
func (OutcomeMatchAndReassignE164) sealed() {}
func (OutcomeInsert) sealed() {}
func (OutcomeInsertAndReassignE164) sealed() {}
