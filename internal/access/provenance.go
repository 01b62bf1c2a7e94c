package access

import "sort"

// Candidates intersects the portal's linked rules with the rules the user
// possesses, directly or through group membership. Rules linked to the portal
// but not possessed are never evaluated; this applies to BLOCK rules exactly
// as to PERMIT rules. The result is ordered by ascending rule ID so repeated
// decisions over the same snapshot produce identical traces.
func Candidates(snap Snapshot) []RuleCandidate {
	if len(snap.PortalRules) == 0 {
		return nil
	}

	direct := make(map[int64]struct{}, len(snap.DirectRules))
	for _, rule := range snap.DirectRules {
		direct[rule.ID] = struct{}{}
	}
	viaGroup := make(map[int64]int64, len(snap.GroupRules))
	for _, gr := range snap.GroupRules {
		if _, ok := viaGroup[gr.Rule.ID]; !ok {
			viaGroup[gr.Rule.ID] = gr.GroupID
		}
	}

	candidates := make([]RuleCandidate, 0, len(snap.PortalRules))
	for _, rule := range snap.PortalRules {
		if _, ok := direct[rule.ID]; ok {
			candidates = append(candidates, RuleCandidate{Rule: rule})
			continue
		}
		if groupID, ok := viaGroup[rule.ID]; ok {
			gid := groupID
			candidates = append(candidates, RuleCandidate{Rule: rule, ViaGroup: &gid})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Rule.ID < candidates[j].Rule.ID
	})
	return candidates
}
