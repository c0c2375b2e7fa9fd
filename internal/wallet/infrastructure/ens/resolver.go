// Package ens resolves an account's primary ENS name on Ethereum mainnet.
package ens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Registry is the ENS registry deployment shared by mainnet and testnets.
var Registry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var ErrNoName = errors.New("ens: no primary name")

const ensABI = `[
  {"type":"function","name":"resolver","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"name","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"addr","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var contractABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ensABI))
	if err != nil {
		panic(err)
	}
	return a
}()

// Caller is the read side of a mainnet node. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Resolver struct {
	log      *slog.Logger
	caller   Caller
	registry common.Address
}

func NewResolver(log *slog.Logger, caller Caller) *Resolver {
	return &Resolver{log: log, caller: caller, registry: Registry}
}

// LookupAddress returns the reverse record of addr. The name is only trusted
// when it resolves forward to addr again.
func (r *Resolver) LookupAddress(ctx context.Context, addr common.Address) (string, error) {
	reverse := Namehash(strings.ToLower(addr.Hex()[2:]) + ".addr.reverse")
	name, err := r.text(ctx, reverse)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrNoName
	}

	forward, err := r.address(ctx, Namehash(name))
	if err != nil {
		return "", err
	}
	if forward != addr {
		r.log.Debug("ens name does not resolve back", "name", name, "account", addr.Hex(), "forward", forward.Hex())
		return "", fmt.Errorf("%w: %s points to %s", ErrNoName, name, forward.Hex())
	}
	return name, nil
}

func (r *Resolver) text(ctx context.Context, node common.Hash) (string, error) {
	out, err := r.resolve(ctx, node, "name")
	if err != nil {
		return "", err
	}
	name, _ := out.(string)
	return name, nil
}

func (r *Resolver) address(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := r.resolve(ctx, node, "addr")
	if err != nil {
		return common.Address{}, err
	}
	a, _ := out.(common.Address)
	return a, nil
}

// resolve looks up the resolver for node in the registry and calls method on it.
func (r *Resolver) resolve(ctx context.Context, node common.Hash, method string) (any, error) {
	out, err := r.call(ctx, r.registry, "resolver", node)
	if err != nil {
		return nil, fmt.Errorf("ens registry: %w", err)
	}
	resolver, _ := out.(common.Address)
	if resolver == (common.Address{}) {
		return nil, ErrNoName
	}
	out, err = r.call(ctx, resolver, method, node)
	if err != nil {
		return nil, fmt.Errorf("ens resolver %s: %w", method, err)
	}
	return out, nil
}

func (r *Resolver) call(ctx context.Context, to common.Address, method string, node common.Hash) (any, error) {
	data, err := contractABI.Pack(method, [32]byte(node))
	if err != nil {
		return nil, err
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return vals[0], nil
}

// Namehash implements the EIP-137 name hash of a dot separated name.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label.Bytes())
	}
	return node
}
