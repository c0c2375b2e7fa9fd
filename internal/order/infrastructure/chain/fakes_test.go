package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	contractAddr = common.HexToAddress("0xB524a7d13A835aDb68c3C41de7a9609A2208a1C7")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type orderRow struct {
	uri       string
	amount    *big.Int
	delivered bool
	burned    bool
}

type fakeBackend struct {
	mu sync.Mutex

	head       uint64
	headErr    error
	transfers  []types.Log
	filterErr  error
	minted     []types.Log
	current    *big.Int
	currentErr error
	balances   map[uint64]int64
	balanceErr map[uint64]bool
	orders     map[uint64]orderRow
	orderErr   map[uint64]bool
	uris       map[uint64]string

	receipts     map[common.Hash]*types.Receipt
	notFoundLeft int

	calls map[string]int

	// gate, when set, holds every balanceOf call until closed. entered gets
	// one signal per held call.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		balances:   map[uint64]int64{},
		balanceErr: map[uint64]bool{},
		orders:     map[uint64]orderRow{},
		orderErr:   map[uint64]bool{},
		uris:       map[uint64]string{},
		receipts:   map[common.Hash]*types.Receipt{},
		calls:      map[string]int{},
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.gate != nil && len(call.Data) >= 4 && string(call.Data[:4]) == string(contractABI.Methods[methodBalanceOf].ID) {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := contractABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	f.calls[m.Name]++

	switch m.Name {
	case methodBalanceOf:
		id := args[1].(*big.Int).Uint64()
		if f.balanceErr[id] {
			return nil, errors.New("execution reverted")
		}
		if args[0].(common.Address) != alice {
			return m.Outputs.Pack(big.NewInt(0))
		}
		return m.Outputs.Pack(big.NewInt(f.balances[id]))
	case methodOrders:
		id := args[0].(*big.Int).Uint64()
		if f.orderErr[id] {
			return nil, errors.New("rpc timeout")
		}
		o := f.orders[id]
		if o.amount == nil {
			o.amount = big.NewInt(0)
		}
		return m.Outputs.Pack(alice, o.uri, o.amount, o.delivered, o.burned)
	case methodURI:
		return m.Outputs.Pack(f.uris[args[0].(*big.Int).Uint64()])
	case methodCurrentTokenID:
		if f.currentErr != nil {
			return nil, f.currentErr
		}
		return m.Outputs.Pack(f.current)
	}
	return nil, errors.New("unexpected call " + m.Name)
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch q.Topics[0][0] {
	case contractABI.Events[eventTransferSingle].ID:
		f.calls["FilterLogs:"+eventTransferSingle]++
		return f.transfers, f.filterErr
	case contractABI.Events[eventOrderMinted].ID:
		f.calls["FilterLogs:"+eventOrderMinted]++
		var out []types.Log
		for _, l := range f.minted {
			if len(q.Topics) > 2 && len(q.Topics[2]) > 0 && l.Topics[2] != q.Topics[2][0] {
				continue
			}
			out = append(out, l)
		}
		return out, f.filterErr
	}
	return nil, errors.New("unexpected filter")
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.notFoundLeft > 0 {
		f.notFoundLeft--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

type sentTx struct {
	to    common.Address
	value *big.Int
	data  []byte
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentTx
	hash    common.Hash
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSender) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	s.mu.Lock()
	s.sent = append(s.sent, sentTx{to: to, value: value, data: data})
	s.mu.Unlock()

	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.hash, s.err
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func tokenTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}

func orderPlacedLog(id uint64, uri string) *types.Log {
	ev := contractABI.Events[eventOrderPlaced]
	data, err := ev.Inputs.NonIndexed().Pack(uri, big.NewInt(1))
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: contractAddr,
		Topics:  []common.Hash{ev.ID, tokenTopic(id), common.BytesToHash(alice.Bytes())},
		Data:    data,
	}
}

func orderMintedLog(id uint64, to common.Address, uri string) types.Log {
	ev := contractABI.Events[eventOrderMinted]
	data, err := ev.Inputs.NonIndexed().Pack(uri)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: contractAddr,
		Topics:  []common.Hash{ev.ID, tokenTopic(id), common.BytesToHash(to.Bytes())},
		Data:    data,
	}
}

func transferLog(id uint64) types.Log {
	ev := contractABI.Events[eventTransferSingle]
	data, err := ev.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(id), big.NewInt(1))
	if err != nil {
		panic(err)
	}
	zero := common.Hash{}
	return types.Log{
		Address: contractAddr,
		Topics:  []common.Hash{ev.ID, zero, zero, common.BytesToHash(alice.Bytes())},
		Data:    data,
	}
}
