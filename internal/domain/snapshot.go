package domain

// Snapshot is the full state assembled by one read pass over the contracts.
// Rounds are ordered by descending ID.
type Snapshot struct {
	Rounds     []Round               `json:"rounds"`
	Candidates map[int64][]Candidate `json:"candidates"`
	VoteStatus VoteStatus            `json:"voteStatus"`
	Rewards    []RewardRecord        `json:"rewards"`
	Treasury   TreasuryState         `json:"treasury"`
}

// EmptySnapshot returns a snapshot with every collection empty and non-nil.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Rounds:     []Round{},
		Candidates: map[int64][]Candidate{},
		VoteStatus: VoteStatus{},
		Rewards:    []RewardRecord{},
		Treasury:   TreasuryState{Balance: ZeroAmount},
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Rounds:     append([]Round{}, s.Rounds...),
		Candidates: make(map[int64][]Candidate, len(s.Candidates)),
		VoteStatus: make(VoteStatus, len(s.VoteStatus)),
		Rewards:    append([]RewardRecord{}, s.Rewards...),
		Treasury:   s.Treasury,
	}
	for id, cands := range s.Candidates {
		cp := make([]Candidate, len(cands))
		for i, c := range cands {
			cp[i] = c
			if c.Voters != nil {
				cp[i].Voters = append([]string{}, c.Voters...)
			}
		}
		out.Candidates[id] = cp
	}
	for id, voted := range s.VoteStatus {
		out.VoteStatus[id] = voted
	}
	return out
}

// Round returns the round with the given ID.
func (s *Snapshot) Round(id int64) (Round, bool) {
	for _, r := range s.Rounds {
		if r.ID == id {
			return r, true
		}
	}
	return Round{}, false
}

// HasVoted reports the mirrored vote status for a round.
func (s *Snapshot) HasVoted(roundID int64) bool {
	return s.VoteStatus[roundID]
}

// IsEmpty reports whether the snapshot holds no rounds and no rewards.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Rounds) == 0 && len(s.Rewards) == 0 && len(s.Candidates) == 0
}
