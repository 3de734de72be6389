// Package contract binds the voting and reward token contract ABIs.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/ethereum"
)

// Caller executes read-only contract calls on behalf of an account.
type Caller interface {
	CallContract(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error)
}

var serializer = abi.NewSerializer().
	SetFormattingMode(abi.FormatAsObjects).
	SetIntSerializer(abi.Base10StringIntSerializer).
	SetFloatSerializer(abi.Base10StringFloatSerializer).
	SetByteSerializer(abi.HexByteSerializer0xPrefix)

type function struct {
	entry     *abi.Entry
	selector  []byte
	signature string
	inputs    abi.TypeComponent
	outputs   abi.TypeComponent
}

// Binding is a contract ABI bound to an address.
type Binding struct {
	address   ethtypes.Address0xHex
	abi       abi.ABI
	functions map[string]*function
}

// NewBinding parses abiJSON and prepares every function entry.
func NewBinding(ctx context.Context, address ethtypes.Address0xHex, abiJSON []byte) (*Binding, error) {
	var a abi.ABI
	if err := json.Unmarshal(abiJSON, &a); err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}
	b := &Binding{
		address:   address,
		abi:       a,
		functions: make(map[string]*function),
	}
	for _, e := range a {
		if e.Type != abi.Function || e.Name == "" {
			continue
		}
		fn := &function{entry: e}
		var err error
		fn.selector, err = e.GenerateFunctionSelectorCtx(ctx)
		if err == nil {
			fn.signature, err = e.SignatureCtx(ctx)
		}
		if err == nil {
			fn.inputs, err = e.Inputs.TypeComponentTreeCtx(ctx)
		}
		if err == nil {
			fn.outputs, err = e.Outputs.TypeComponentTreeCtx(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", e.Name, err)
		}
		b.functions[e.Name] = fn
	}
	return b, nil
}

// Address returns the bound contract address.
func (b *Binding) Address() ethtypes.Address0xHex {
	return b.address
}

// ABI returns the parsed ABI.
func (b *Binding) ABI() abi.ABI {
	return b.abi
}

// Pack encodes a call to the named function with positional args.
func (b *Binding) Pack(ctx context.Context, name string, args ...interface{}) (*ethereum.CallMsg, error) {
	fn, ok := b.functions[name]
	if !ok {
		return nil, fmt.Errorf("function %s not in ABI", name)
	}
	if args == nil {
		args = []interface{}{}
	}
	cv, err := fn.inputs.ParseExternalCtx(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn.signature, err)
	}
	encoded, err := cv.EncodeABIDataCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn.signature, err)
	}
	data := make([]byte, len(fn.selector)+len(encoded))
	copy(data, fn.selector)
	copy(data[len(fn.selector):], encoded)

	to := b.address
	return &ethereum.CallMsg{To: &to, Data: data}, nil
}

// call packs, executes and decodes a read into out.
func (b *Binding) call(ctx context.Context, c Caller, name string, out interface{}, args ...interface{}) error {
	msg, err := b.Pack(ctx, name, args...)
	if err != nil {
		return err
	}
	data, err := c.CallContract(ctx, msg)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	fn := b.functions[name]
	cv, err := fn.outputs.DecodeABIDataCtx(ctx, data, 0)
	if err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	jsonData, err := serializer.SerializeJSONCtx(ctx, cv)
	if err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	return nil
}

// uint256 decodes the base-10 strings produced by the ABI serializer.
type uint256 big.Int

func (u *uint256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := (*big.Int)(u).SetString(s, 0); !ok {
		return fmt.Errorf("invalid integer %q", s)
	}
	return nil
}

func (u *uint256) Int() *big.Int {
	if u == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(u))
}

// address decodes an ABI address with or without 0x prefix.
type address ethtypes.Address0xHex

func (a *address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	parsed, err := ethtypes.NewAddress(s)
	if err != nil {
		return err
	}
	*a = address(*parsed)
	return nil
}

func (a address) Address() ethtypes.Address0xHex {
	return ethtypes.Address0xHex(a)
}
