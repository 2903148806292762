package eviction

import "sort"

// ProtectByRatio partitions candidates into a protected set, shielded from
// the current eviction round, and the residual set handed to selection. No
// candidate is duplicated or lost: the two outputs together are a permutation
// of the input, and the input slice itself is never modified.
//
// Protection favors longevity, which an attacker cannot fake without
// sustaining real connections. Up to a quarter of the input is reserved for
// the longest-connected privacy-network and local peers, then the remainder
// of half the input is filled with the longest-connected peers overall. The
// reservation is a ceiling, not a guarantee: a smaller privacy group simply
// returns the spare slots to the general pool.
func ProtectByRatio(cands []Candidate) (protected, residual []Candidate, err error) {
	if err := validate(cands); err != nil {
		return nil, nil, err
	}
	total := len(cands)
	if total == 0 {
		return nil, nil, nil
	}

	var privacy, clearnet []Candidate
	for _, c := range cands {
		if c.isProtectedNetwork() {
			privacy = append(privacy, c)
		} else {
			clearnet = append(clearnet, c)
		}
	}

	sortByLongevity(privacy)
	reserve := total / 4
	if reserve > len(privacy) {
		reserve = len(privacy)
	}
	protected = make([]Candidate, 0, total/2)
	protected = append(protected, privacy[:reserve]...)

	pool := make([]Candidate, 0, total-reserve)
	pool = append(pool, privacy[reserve:]...)
	pool = append(pool, clearnet...)
	sortByLongevity(pool)

	fill := total/2 - len(protected)
	protected = append(protected, pool[:fill]...)
	residual = pool[fill:]
	return protected, residual, nil
}

// sortByLongevity orders candidates by descending connection age, breaking
// ties by smaller id so equally aged candidates partition deterministically.
func sortByLongevity(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Connected != cands[j].Connected {
			return cands[i].Connected > cands[j].Connected
		}
		return cands[i].ID < cands[j].ID
	})
}
