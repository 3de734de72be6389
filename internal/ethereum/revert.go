package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
)

// Solidity's built-in revert(string) encoding.
var revertErrorEntry = &abi.Entry{
	Type:   abi.Error,
	Name:   "Error",
	Inputs: abi.ParameterArray{{Type: "string"}},
}

var revertErrorID = revertErrorEntry.FunctionSelectorBytes()

// RPCError is a JSON-RPC error that is not a contract revert.
type RPCError struct {
	Method  string
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: RPC error %d: %s", e.Method, e.Code, e.Message)
}

// RevertError is returned when the contract rejected a call or a mined
// transaction failed. Reason is the decoded revert string, when present.
type RevertError struct {
	Reason string
	Data   ethtypes.HexBytes0xPrefix
}

func (e *RevertError) Error() string {
	switch {
	case e.Reason != "":
		return "execution reverted: " + e.Reason
	case len(e.Data) > 0:
		return "execution reverted: " + e.Data.String()
	}
	return "execution reverted"
}

// DecodeRevertReason decodes Error(string) return data.
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) <= 4 || !bytes.Equal(data[0:4], revertErrorID) {
		return "", false
	}
	value, err := revertErrorEntry.DecodeCallDataCtx(context.Background(), data)
	if err != nil || len(value.Children) == 0 {
		return "", false
	}
	reason, ok := value.Children[0].Value.(string)
	return reason, ok
}

// EncodeRevertReason produces Error(string) return data for reason.
func EncodeRevertReason(reason string) ([]byte, error) {
	return revertErrorEntry.EncodeCallDataValuesCtx(context.Background(), []interface{}{reason})
}

// NewRevertError builds a RevertError from raw return data.
func NewRevertError(data []byte) *RevertError {
	reason, _ := DecodeRevertReason(data)
	return &RevertError{Reason: reason, Data: data}
}

func convertRPCError(method string, rpcErr *rpcbackend.RPCError) error {
	if rev := revertFromRPCError(rpcErr.Code, rpcErr.Message, string(rpcErr.Data)); rev != nil {
		return rev
	}
	return &RPCError{Method: method, Code: rpcErr.Code, Message: rpcErr.Message}
}

// revertFromRPCError recognises reverts reported by geth (code 3 with hex
// data), by nodes that only put the reason in the message, and by hardhat.
func revertFromRPCError(code int64, message, rawData string) *RevertError {
	var data []byte
	if rawData != "" {
		s := rawData
		var unquoted string
		if err := json.Unmarshal([]byte(rawData), &unquoted); err == nil {
			s = unquoted
		}
		if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
			data = b
		}
	}

	if !strings.Contains(strings.ToLower(message), "revert") && code != 3 {
		return nil
	}

	rev := &RevertError{Data: data}
	if reason, ok := DecodeRevertReason(data); ok {
		rev.Reason = reason
		return rev
	}
	rev.Reason = reasonFromMessage(message)
	return rev
}

func reasonFromMessage(message string) string {
	const hardhat = "reverted with reason string '"
	if i := strings.Index(message, hardhat); i >= 0 {
		rest := message[i+len(hardhat):]
		if j := strings.LastIndex(rest, "'"); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	const geth = "execution reverted: "
	if i := strings.Index(message, geth); i >= 0 {
		return strings.TrimSpace(message[i+len(geth):])
	}
	return ""
}
