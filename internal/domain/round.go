package domain

// Round is one voting round as reported by the voting contract.
type Round struct {
	ID              int64  `json:"id"`              // assigned by the contract, starts at 1
	Title           string `json:"title"`
	EndTime         int64  `json:"endTime"`         // Unix timestamp (seconds)
	Active          bool   `json:"active"`
	TotalRewardPool string `json:"totalRewardPool"` // decimal, 18 fractional digits
}

// Candidate is a contestant within a single round.
type Candidate struct {
	ID        int64    `json:"id"` // unique within its round
	Name      string   `json:"name"`
	VoteCount int64    `json:"voteCount"`
	Wallet    string   `json:"wallet"` // 0x-prefixed address
	Voters    []string `json:"voters,omitempty"`
}

// RewardRecord is one payout the session account received when a round ended.
type RewardRecord struct {
	RoundID    int64  `json:"roundId"`
	RoundTitle string `json:"roundTitle"`
	Amount     string `json:"amount"` // decimal, 18 fractional digits
	Rank       int64  `json:"rank"`
	Timestamp  int64  `json:"timestamp"` // Unix timestamp (seconds)
}

// TreasuryState is the reward token balance held by the voting contract.
type TreasuryState struct {
	Token   string `json:"token,omitempty"` // reward token address
	Balance string `json:"balance"`
	Symbol  string `json:"symbol"`
	// Degraded is set when the best-effort treasury read failed and the
	// fields above carry defaults.
	Degraded bool `json:"degraded,omitempty"`
}

// VoteStatus maps round ID to whether the session account has voted in it.
type VoteStatus map[int64]bool

// ZeroAmount is the display form of a zero token amount.
const ZeroAmount = "0.0"
