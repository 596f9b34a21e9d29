package gepa

// dedupeAndCap enforces the two pool invariants after a reseed: no two entries
// share a prompt string, and the pool holds at most capPool candidates.
//
// Dedup keeps the first occurrence of each prompt, so retained parents win
// over freshly minted children that happen to repeat them. Before truncating,
// scored entries are stably partitioned ahead of unscored ones so that an
// oversized pool never evicts an already-evaluated parent in favor of a child
// nobody has looked at yet. This is a partition by "has a score", not a sort
// by score value.
func dedupeAndCap(pool []*Candidate, capPool int) []*Candidate {
	seen := make(map[string]struct{}, len(pool))
	deduped := make([]*Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := seen[c.Prompt]; ok {
			continue
		}
		seen[c.Prompt] = struct{}{}
		deduped = append(deduped, c)
	}

	if len(deduped) > capPool {
		ordered := make([]*Candidate, 0, len(deduped))
		for _, c := range deduped {
			if c.Score != nil {
				ordered = append(ordered, c)
			}
		}
		for _, c := range deduped {
			if c.Score == nil {
				ordered = append(ordered, c)
			}
		}
		deduped = ordered[:capPool]
	}
	return deduped
}

// reseed builds the next generation's pool from the surviving parents and the
// freshly reflected children, then re-establishes the pool invariants. The
// pool is always reassigned wholesale rather than edited in place.
func reseed(parents, children []*Candidate, capPool int) []*Candidate {
	next := make([]*Candidate, 0, len(parents)+len(children))
	next = append(next, parents...)
	next = append(next, children...)
	return dedupeAndCap(next, capPool)
}
