package domain

import "testing"

func TestOutcomeBranchNames(t *testing.T) {
	cases := []struct {
		outcome ResolveOutcome
		want    string
	}{
		{OutcomeMatch{ID: 1}, "match"},
		{OutcomeMatchAndUpdateE164{ID: 1, NewE164: "+14155550101"}, "match_update_e164"},
		{OutcomeMatchAndUpdateACI{ID: 1, ACI: "3f0f9544-84b5-4a4b-9e3f-9b3c60e1c002"}, "match_update_aci"},
		{OutcomeMatchAndMerge{Survivor: 1, Loser: 2, E164: "+14155550101"}, "match_merge"},
		{OutcomeMatchAndReassignE164{ID: 1, PreviousOwner: 2, E164: "+14155550101"}, "match_reassign_e164"},
		{OutcomeInsert{}, "insert"},
		{OutcomeInsertAndReassignE164{PreviousOwner: 2, ACI: "3f0f9544-84b5-4a4b-9e3f-9b3c60e1c002", E164: "+14155550101"}, "insert_reassign_e164"},
	}
	seen := make(map[string]bool, len(cases))
	for _, tc := range cases {
		if got := tc.outcome.Branch(); got != tc.want {
			t.Fatalf("%T: expected branch %q, got %q", tc.outcome, tc.want, got)
		}
		if seen[tc.want] {
			t.Fatalf("duplicate branch name %q", tc.want)
		}
		seen[tc.want] = true
	}
}
