package contract

import _ "embed"

// VotingABI is the ABI of the voting contract.
//
//go:embed abis/voting.json
var VotingABI []byte

// TokenABI is the ABI of the ERC-20 reward token.
//
//go:embed abis/token.json
var TokenABI []byte
