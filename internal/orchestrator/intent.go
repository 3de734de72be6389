package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
	"voting-token-client/internal/notify"
	"voting-token-client/internal/session"
	"voting-token-client/internal/units"
)

// Intent is one of the mutating actions a user can take.
type Intent interface {
	// Action names the intent in logs, metrics and in-flight keys.
	Action() string
	plan(ctx context.Context, o *Orchestrator) (*plan, error)
}

// plan is an intent resolved against the current mirror.
type plan struct {
	key         string
	precheck    func() error
	precheckMsg string
	confirm     string
	progress    string
	success     string
	failure     string
	messages    map[Class]string
	build       func(ctx context.Context, c *session.Capability) (*ethereum.CallMsg, error)
	after       func(ctx context.Context)
}

func (p *plan) message(class Class, err error) string {
	if msg, ok := p.messages[class]; ok {
		return msg
	}
	switch class {
	case ClassConnectivity:
		return "No wallet found. Please install or configure a wallet provider."
	case ClassNoSession:
		return "Please connect your wallet first."
	case ClassUserRejected:
		return "Request rejected in wallet."
	}
	if reason := Reason(err); reason != "" {
		return reason
	}
	return p.failure
}

// validationError is a local input check failure with its user message.
type validationError struct {
	msg      string
	severity notify.Severity
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%v: %s", domain.ErrInvalidInput, e.msg)
}

func (e *validationError) Unwrap() error {
	return domain.ErrInvalidInput
}

func invalid(msg string, severity notify.Severity) error {
	return &validationError{msg: msg, severity: severity}
}

func (o *Orchestrator) roundTitle(id int64) string {
	if r, ok := o.sessions.Mirror().Snapshot().Round(id); ok && r.Title != "" {
		return r.Title
	}
	return fmt.Sprintf("Round #%d", id)
}

// CastVote votes for a candidate in a round.
type CastVote struct {
	Round         int64
	Candidate     int64
	CandidateName string
}

func (CastVote) Action() string { return "vote" }

func (v CastVote) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	if v.Round < 1 || v.Candidate < 1 {
		return nil, invalid("Please select a round and a candidate", notify.SeverityError)
	}
	name := v.CandidateName
	if name == "" {
		name = fmt.Sprintf("candidate #%d", v.Candidate)
		for _, c := range o.sessions.Mirror().Snapshot().Candidates[v.Round] {
			if c.ID == v.Candidate {
				name = c.Name
			}
		}
	}
	mirror := o.sessions.Mirror()
	return &plan{
		key: fmt.Sprintf("vote:%d", v.Round),
		precheck: func() error {
			if mirror.HasVoted(v.Round) {
				return fmt.Errorf("%w: already voted in round %d", domain.ErrAlreadyDone, v.Round)
			}
			return nil
		},
		precheckMsg: "You have already voted in this round!",
		confirm:     fmt.Sprintf("Vote for %s in this round?", name),
		progress:    "Casting Vote...",
		success:     "Vote Cast Successfully!",
		failure:     "Vote Failed",
		messages: map[Class]string{
			ClassAlreadyDone: "Transaction Reverted: You already voted.",
		},
		build: func(ctx context.Context, _ *session.Capability) (*ethereum.CallMsg, error) {
			return o.voting.VoteMsg(ctx, big.NewInt(v.Round), big.NewInt(v.Candidate))
		},
	}, nil
}

// CreateRound opens a new round. Reward is a decimal token amount.
type CreateRound struct {
	Title    string
	Duration time.Duration
	Reward   string
}

func (CreateRound) Action() string { return "create-round" }

func (r CreateRound) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" || strings.TrimSpace(r.Reward) == "" {
		return nil, invalid("Please fill in Title and Reward Amount", notify.SeverityError)
	}
	seconds := int64(r.Duration / time.Second)
	if seconds <= 0 {
		return nil, invalid("Please enter a valid duration", notify.SeverityError)
	}
	reward, err := units.ParseUnits(r.Reward)
	if err != nil {
		return nil, invalid("Please enter a valid reward amount", notify.SeverityError)
	}
	return &plan{
		key:      "create-round:" + title,
		progress: "Creating Round on Blockchain...",
		success:  "Round Created Successfully!",
		failure:  "Creation Failed",
		build: func(ctx context.Context, _ *session.Capability) (*ethereum.CallMsg, error) {
			return o.voting.CreateRoundMsg(ctx, title, big.NewInt(seconds), reward)
		},
	}, nil
}

// AddCandidate registers a candidate in an active round.
type AddCandidate struct {
	Round  int64
	Name   string
	Wallet string
}

func (AddCandidate) Action() string { return "add-candidate" }

func (a AddCandidate) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" || strings.TrimSpace(a.Wallet) == "" {
		return nil, invalid("Please fill in Name and Wallet Address", notify.SeverityError)
	}
	if a.Round < 1 {
		return nil, invalid("Please select a round", notify.SeverityError)
	}
	wallet, err := ethtypes.NewAddress(strings.TrimSpace(a.Wallet))
	if err != nil {
		return nil, invalid("Invalid wallet address", notify.SeverityError)
	}
	title := o.roundTitle(a.Round)
	return &plan{
		key:      fmt.Sprintf("add-candidate:%d:%s", a.Round, wallet.String()),
		progress: fmt.Sprintf("Adding %s to %s...", name, title),
		success:  fmt.Sprintf("Candidate added to %s!", title),
		failure:  "Failed to add candidate",
		build: func(ctx context.Context, _ *session.Capability) (*ethereum.CallMsg, error) {
			return o.voting.AddCandidateMsg(ctx, big.NewInt(a.Round), name, *wallet)
		},
	}, nil
}

// EndRound closes a round and pays out its reward pool.
type EndRound struct {
	Round int64
}

func (EndRound) Action() string { return "end-round" }

func (e EndRound) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	if e.Round < 1 {
		return nil, invalid("Please select a round", notify.SeverityError)
	}
	return &plan{
		key:      fmt.Sprintf("end-round:%d", e.Round),
		confirm:  "Are you sure you want to end this round? This will calculate votes, determine winners, and distribute tokens immediately.",
		progress: "Ending Round & Distributing Rewards...",
		success:  "Round Ended Successfully!",
		failure:  "Transaction Failed",
		messages: map[Class]string{
			ClassInsufficient: "Error: Treasury empty! Please refill tokens first.",
		},
		build: func(ctx context.Context, _ *session.Capability) (*ethereum.CallMsg, error) {
			return o.voting.EndRoundMsg(ctx, big.NewInt(e.Round))
		},
	}, nil
}

// MintTreasury mints reward tokens to the voting contract.
type MintTreasury struct {
	Amount string
}

func (MintTreasury) Action() string { return "mint" }

func (m MintTreasury) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	amount, err := units.ParsePositiveUnits(m.Amount)
	if err != nil {
		return nil, invalid("Please enter a valid positive amount.", notify.SeverityInfo)
	}
	treasury := o.sessions.Mirror().Snapshot().Treasury
	return &plan{
		key:      "mint:treasury",
		progress: "Minting Tokens to Treasury...",
		success:  strings.TrimSpace(fmt.Sprintf("Successfully minted %s %s", strings.TrimSpace(m.Amount), treasury.Symbol)),
		failure:  "Mint Failed",
		build: func(ctx context.Context, c *session.Capability) (*ethereum.CallMsg, error) {
			token, err := o.rewardToken(ctx, c, treasury.Token)
			if err != nil {
				return nil, err
			}
			return token.MintMsg(ctx, o.voting.Address(), amount)
		},
	}, nil
}

func (o *Orchestrator) rewardToken(ctx context.Context, c *session.Capability, known string) (*contract.Token, error) {
	var addr ethtypes.Address0xHex
	if known != "" {
		parsed, err := ethtypes.NewAddress(known)
		if err != nil {
			return nil, err
		}
		addr = *parsed
	} else {
		var err error
		if addr, err = o.voting.RewardToken(ctx, c); err != nil {
			return nil, err
		}
	}
	return contract.NewToken(ctx, addr)
}

// SetUsername registers a display name for the connected account.
type SetUsername struct {
	Name string
}

func (SetUsername) Action() string { return "set-username" }

func (s SetUsername) plan(_ context.Context, o *Orchestrator) (*plan, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return nil, invalid("Please enter a username", notify.SeverityError)
	}
	key := "set-username:"
	if c, err := o.sessions.Capability(); err == nil {
		key += c.Account().String()
	}
	return &plan{
		key:      key,
		progress: "Registering username...",
		success:  fmt.Sprintf("Username set to %s", name),
		failure:  "Registration failed",
		build: func(ctx context.Context, _ *session.Capability) (*ethereum.CallMsg, error) {
			return o.voting.SetUsernameMsg(ctx, name)
		},
		after: func(ctx context.Context) {
			if err := o.sessions.ReloadProfile(ctx); err != nil {
				log.L(ctx).WithError(err).Warn("Username reload failed")
			}
		},
	}, nil
}
