package thoughtdb

import "sort"

// Tags for pinned preference/goal claims that stay in compact contexts
// even when they are not among the most recent preferences.
const (
	TestlessStrategyTag = "mi:testless_verification_strategy"

	// Operational defaults stored as preference claims; project-scope
	// claims override global ones.
	AskWhenUncertainTag = "mi:setting:ask_when_uncertain"
	RefactorIntentTag   = "mi:setting:refactor_intent"
)

// PinnedPrefGoalTags is the set of tags treated as operationally pinned.
var PinnedPrefGoalTags = map[string]struct{}{
	TestlessStrategyTag: {},
	AskWhenUncertainTag: {},
	RefactorIntentTag:   {},
}

// PinnedClaimIDs returns the active, non-alias claims in v carrying any
// pinned tag, newest first.
func PinnedClaimIDs(v *View) []string {
	seen := map[string]struct{}{}
	var ids []string
	for tag := range PinnedPrefGoalTags {
		for _, cid := range v.ClaimIDsByTagName(tag) {
			if _, dup := seen[cid]; dup {
				continue
			}
			if _, alias := v.RedirectsSameAs[cid]; alias {
				continue
			}
			if v.ClaimStatus(cid) != StatusActive {
				continue
			}
			seen[cid] = struct{}{}
			ids = append(ids, cid)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := v.ClaimsByID[ids[i]], v.ClaimsByID[ids[j]]
		ti, tj := "", ""
		if ci != nil {
			ti = ci.AssertedTS
		}
		if cj != nil {
			tj = cj.AssertedTS
		}
		if ti != tj {
			return ti > tj
		}
		return ids[i] > ids[j]
	})
	return ids
}
