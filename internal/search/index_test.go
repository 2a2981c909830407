package search

import (
	"testing"
)

func seedIndex() *ContactIndex {
	ix := NewContactIndex()
	ix.Upsert(1, "Ada Lovelace", "+14155550101")
	ix.Upsert(2, "Alan Turing", "+14155550102")
	ix.Upsert(3, "Grace Hopper", "+442071234567")
	ix.Upsert(4, "", "+14155559999")
	return ix
}

func TestContactIndex_QueryNamePrefixOutranksWordPrefix(t *testing.T) {
	ix := seedIndex()

	got := ix.Query("lovelace", 0)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected word-prefix hit on recipient 1, got %v", got)
	}
	if got[0].Score != 0.9 {
		t.Fatalf("expected word-prefix score 0.9, got %v", got[0].Score)
	}

	got = ix.Query("ada", 0)
	if len(got) != 1 || got[0].Score != 1.0 {
		t.Fatalf("expected full name-prefix score 1.0, got %v", got)
	}
}

func TestContactIndex_QuerySubstringRanksBelowPrefixes(t *testing.T) {
	ix := NewContactIndex()
	ix.Upsert(1, "Charlotte", "")
	ix.Upsert(2, "Lottie", "")

	got := ix.Query("lott", 0)
	if len(got) != 2 {
		t.Fatalf("expected two hits, got %v", got)
	}
	if got[0].ID != 2 || got[0].Score != 1.0 {
		t.Fatalf("expected prefix hit first, got %v", got)
	}
	if got[1].ID != 1 || got[1].Score != 0.5 {
		t.Fatalf("expected substring hit with 0.5, got %v", got)
	}
}

func TestContactIndex_QueryByNumber(t *testing.T) {
	ix := seedIndex()

	got := ix.Query("+1415555", 0)
	if len(got) != 3 {
		t.Fatalf("expected three number hits, got %v", got)
	}
	for _, r := range got {
		if r.Score != 0.8 {
			t.Fatalf("expected number-prefix score 0.8, got %v", r)
		}
	}
	// Ties on score break on id ascending.
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 4 {
		t.Fatalf("expected stable id order, got %v", got)
	}

	// Without the plus the same digits still match.
	got = ix.Query("44207", 0)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected number hit on recipient 3, got %v", got)
	}
}

func TestContactIndex_QueryCaseInsensitiveAndTrimmed(t *testing.T) {
	ix := seedIndex()

	got := ix.Query("  GRACE  ", 0)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected case-insensitive hit, got %v", got)
	}
}

func TestContactIndex_QueryLimitAndEmpty(t *testing.T) {
	ix := seedIndex()

	if got := ix.Query("", 10); got != nil {
		t.Fatalf("expected nil for empty query, got %v", got)
	}
	if got := ix.Query("   ", 10); got != nil {
		t.Fatalf("expected nil for blank query, got %v", got)
	}

	got := ix.Query("+1415555", 2)
	if len(got) != 2 {
		t.Fatalf("expected limit applied, got %d hits", len(got))
	}
}

func TestContactIndex_UpsertReplacesAndEmptyDrops(t *testing.T) {
	ix := NewContactIndex()
	ix.Upsert(1, "Ada", "+14155550101")
	if ix.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", ix.Len())
	}

	ix.Upsert(1, "Ada Lovelace", "+14155550101")
	got := ix.Query("lovelace", 0)
	if len(got) != 1 || got[0].Name != "Ada Lovelace" {
		t.Fatalf("expected replaced entry queryable, got %v", got)
	}
	if ix.Len() != 1 {
		t.Fatalf("upsert must not duplicate, got %d entries", ix.Len())
	}

	ix.Upsert(1, "", "")
	if ix.Len() != 0 {
		t.Fatalf("expected empty upsert to drop the entry, got %d", ix.Len())
	}
}

func TestContactIndex_Remove(t *testing.T) {
	ix := seedIndex()
	ix.Remove(1)

	if got := ix.Query("ada", 0); len(got) != 0 {
		t.Fatalf("expected removed entry gone, got %v", got)
	}
	if ix.Len() != 3 {
		t.Fatalf("expected 3 remaining entries, got %d", ix.Len())
	}
	// Removing an absent id is a no-op.
	ix.Remove(99)
	if ix.Len() != 3 {
		t.Fatalf("expected no-op remove, got %d", ix.Len())
	}
}
