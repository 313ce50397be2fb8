// Package rank defines the fixed helper rank ladder and pure resolution over
// it. Resolution looks only at points; the verified gate on the seventh rank
// is enforced by the promotion service, not here, because a helper's points
// may qualify for the gate rank while the role grant is withheld.
package rank

import "fmt"

// Rank is one ladder entry: the point threshold that unlocks it and the
// external role marker granted for it.
type Rank struct {
	Threshold int    `json:"threshold"`
	RoleID    string `json:"roleId"`
}

// VerifiedGateIndex is the ladder position gated by explicit verification
// rather than by points alone.
const VerifiedGateIndex = 6

// UnverifiedCap is the lifetime point cap for unverified helpers. It equals
// the verified-gate threshold by construction; NewLadder rejects ladders that
// break the equality.
const UnverifiedCap = 814

// thresholds is the fixed ascending point ladder. Index 6 is the verified
// gate.
var thresholds = []int{28, 86, 174, 290, 434, 609, 814, 1054, 1332, 1652, 2019, 2440, 2920}

// Ladder is an ordered rank ladder, ascending by threshold.
type Ladder struct {
	ranks []Rank
}

// NewLadder builds the standard ladder with the given role markers, one per
// threshold, lowest first.
func NewLadder(roleIDs []string) (*Ladder, error) {
	if len(roleIDs) != len(thresholds) {
		return nil, fmt.Errorf("rank ladder needs %d role ids, got %d", len(thresholds), len(roleIDs))
	}

	ranks := make([]Rank, len(thresholds))
	for i, threshold := range thresholds {
		ranks[i] = Rank{Threshold: threshold, RoleID: roleIDs[i]}
	}
	return newLadder(ranks)
}

func newLadder(ranks []Rank) (*Ladder, error) {
	for i := 1; i < len(ranks); i++ {
		if ranks[i].Threshold <= ranks[i-1].Threshold {
			return nil, fmt.Errorf("rank thresholds must be strictly increasing: ladder[%d]=%d, ladder[%d]=%d",
				i-1, ranks[i-1].Threshold, i, ranks[i].Threshold)
		}
	}
	if len(ranks) <= VerifiedGateIndex {
		return nil, fmt.Errorf("rank ladder must reach the verified gate index %d", VerifiedGateIndex)
	}
	if ranks[VerifiedGateIndex].Threshold != UnverifiedCap {
		return nil, fmt.Errorf("verified gate threshold %d must equal the unverified cap %d",
			ranks[VerifiedGateIndex].Threshold, UnverifiedCap)
	}
	return &Ladder{ranks: ranks}, nil
}

// Len returns the number of ranks in the ladder.
func (l *Ladder) Len() int {
	return len(l.ranks)
}

// At returns the rank at the given index.
func (l *Ladder) At(index int) Rank {
	return l.ranks[index]
}

// Resolution is the outcome of resolving a point balance against the ladder.
type Resolution struct {
	// Index is the position of the current rank, or -1 when unranked.
	Index int

	// Current is the highest rank whose threshold the points meet; nil when
	// the points are below the first threshold.
	Current *Rank

	// Next is the entry immediately above Current, or nil at the top of the
	// ladder.
	Next *Rank
}

// Resolve maps a point balance to the highest qualifying rank with next-rank
// lookahead. It has no side effects and ignores verification status.
func (l *Ladder) Resolve(points int) Resolution {
	index := -1
	for i, r := range l.ranks {
		if points < r.Threshold {
			break
		}
		index = i
	}

	res := Resolution{Index: index}
	if index >= 0 {
		current := l.ranks[index]
		res.Current = &current
	}
	if index+1 < len(l.ranks) {
		next := l.ranks[index+1]
		res.Next = &next
	}
	return res
}
