package contract

import (
	"context"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/ethereum"
)

// RoundInfo is the raw rounds(uint256) result.
type RoundInfo struct {
	ID              *big.Int
	Title           string
	EndTime         *big.Int
	IsActive        bool
	TotalRewardPool *big.Int
}

// CandidateInfo is one getCandidates(uint256) entry.
type CandidateInfo struct {
	ID        *big.Int
	Name      string
	VoteCount *big.Int
	Wallet    ethtypes.Address0xHex
	Voters    []ethtypes.Address0xHex
}

// RewardInfo is one getUserRewardHistory(address) entry.
type RewardInfo struct {
	RoundID    *big.Int
	RoundTitle string
	Amount     *big.Int
	Rank       *big.Int
	Timestamp  *big.Int
}

// Voting binds the voting contract.
type Voting struct {
	*Binding
}

// NewVoting binds the voting ABI to address.
func NewVoting(ctx context.Context, address ethtypes.Address0xHex) (*Voting, error) {
	b, err := NewBinding(ctx, address, VotingABI)
	if err != nil {
		return nil, err
	}
	return &Voting{Binding: b}, nil
}

// Owner returns the contract owner (the admin account).
func (v *Voting) Owner(ctx context.Context, c Caller) (ethtypes.Address0xHex, error) {
	var out struct {
		Owner address `json:"owner"`
	}
	err := v.call(ctx, c, "owner", &out)
	return out.Owner.Address(), err
}

// RewardToken returns the address of the ERC-20 paid out to winners.
func (v *Voting) RewardToken(ctx context.Context, c Caller) (ethtypes.Address0xHex, error) {
	var out struct {
		Token address `json:"token"`
	}
	err := v.call(ctx, c, "rewardToken", &out)
	return out.Token.Address(), err
}

// RoundCount returns the number of rounds created so far.
func (v *Voting) RoundCount(ctx context.Context, c Caller) (*big.Int, error) {
	var out struct {
		Count uint256 `json:"count"`
	}
	if err := v.call(ctx, c, "roundCount", &out); err != nil {
		return nil, err
	}
	return out.Count.Int(), nil
}

// Round reads one round by ID.
func (v *Voting) Round(ctx context.Context, c Caller, id *big.Int) (*RoundInfo, error) {
	var out struct {
		ID              uint256 `json:"id"`
		Title           string  `json:"title"`
		EndTime         uint256 `json:"endTime"`
		IsActive        bool    `json:"isActive"`
		TotalRewardPool uint256 `json:"totalRewardPool"`
	}
	if err := v.call(ctx, c, "rounds", &out, id); err != nil {
		return nil, err
	}
	return &RoundInfo{
		ID:              out.ID.Int(),
		Title:           out.Title,
		EndTime:         out.EndTime.Int(),
		IsActive:        out.IsActive,
		TotalRewardPool: out.TotalRewardPool.Int(),
	}, nil
}

// Candidates reads the candidate list of a round.
func (v *Voting) Candidates(ctx context.Context, c Caller, roundID *big.Int) ([]CandidateInfo, error) {
	var out struct {
		Candidates []struct {
			ID        uint256   `json:"id"`
			Name      string    `json:"name"`
			VoteCount uint256   `json:"voteCount"`
			Wallet    address   `json:"wallet"`
			Voters    []address `json:"voters"`
		} `json:"candidates"`
	}
	if err := v.call(ctx, c, "getCandidates", &out, roundID); err != nil {
		return nil, err
	}
	cands := make([]CandidateInfo, len(out.Candidates))
	for i, raw := range out.Candidates {
		cands[i] = CandidateInfo{
			ID:        raw.ID.Int(),
			Name:      raw.Name,
			VoteCount: raw.VoteCount.Int(),
			Wallet:    raw.Wallet.Address(),
		}
		for _, voter := range raw.Voters {
			cands[i].Voters = append(cands[i].Voters, voter.Address())
		}
	}
	return cands, nil
}

// HasVoted reports whether voter has voted in the round.
func (v *Voting) HasVoted(ctx context.Context, c Caller, roundID *big.Int, voter ethtypes.Address0xHex) (bool, error) {
	var out struct {
		Voted bool `json:"voted"`
	}
	err := v.call(ctx, c, "hasVoted", &out, roundID, voter.String())
	return out.Voted, err
}

// Username returns the display name registered for account, or "".
func (v *Voting) Username(ctx context.Context, c Caller, account ethtypes.Address0xHex) (string, error) {
	var out struct {
		Username string `json:"username"`
	}
	err := v.call(ctx, c, "usernames", &out, account.String())
	return out.Username, err
}

// RewardHistory returns every reward paid to account.
func (v *Voting) RewardHistory(ctx context.Context, c Caller, account ethtypes.Address0xHex) ([]RewardInfo, error) {
	var out struct {
		History []struct {
			RoundID    uint256 `json:"roundId"`
			RoundTitle string  `json:"roundTitle"`
			Amount     uint256 `json:"amount"`
			Rank       uint256 `json:"rank"`
			Timestamp  uint256 `json:"timestamp"`
		} `json:"history"`
	}
	if err := v.call(ctx, c, "getUserRewardHistory", &out, account.String()); err != nil {
		return nil, err
	}
	rewards := make([]RewardInfo, len(out.History))
	for i, raw := range out.History {
		rewards[i] = RewardInfo{
			RoundID:    raw.RoundID.Int(),
			RoundTitle: raw.RoundTitle,
			Amount:     raw.Amount.Int(),
			Rank:       raw.Rank.Int(),
			Timestamp:  raw.Timestamp.Int(),
		}
	}
	return rewards, nil
}

// VoteMsg encodes vote(roundId, candidateId).
func (v *Voting) VoteMsg(ctx context.Context, roundID, candidateID *big.Int) (*ethereum.CallMsg, error) {
	return v.Pack(ctx, "vote", roundID, candidateID)
}

// CreateRoundMsg encodes createRound(title, duration, rewardAmount).
// duration is in seconds and reward in token base units.
func (v *Voting) CreateRoundMsg(ctx context.Context, title string, duration, reward *big.Int) (*ethereum.CallMsg, error) {
	return v.Pack(ctx, "createRound", title, duration, reward)
}

// AddCandidateMsg encodes addCandidate(roundId, name, wallet).
func (v *Voting) AddCandidateMsg(ctx context.Context, roundID *big.Int, name string, wallet ethtypes.Address0xHex) (*ethereum.CallMsg, error) {
	return v.Pack(ctx, "addCandidate", roundID, name, wallet.String())
}

// EndRoundMsg encodes endRound(roundId).
func (v *Voting) EndRoundMsg(ctx context.Context, roundID *big.Int) (*ethereum.CallMsg, error) {
	return v.Pack(ctx, "endRound", roundID)
}

// SetUsernameMsg encodes setUsername(name).
func (v *Voting) SetUsernameMsg(ctx context.Context, name string) (*ethereum.CallMsg, error) {
	return v.Pack(ctx, "setUsername", name)
}
