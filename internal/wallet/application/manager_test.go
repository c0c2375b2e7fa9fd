package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "0x00000000000000000000000000000000000a11ce"

type fakeProvider struct {
	mu         sync.Mutex
	accounts   []string
	authorized []string
	chainID    uint64
	balance    *big.Int
	switchErrs []error
	addErr     error
	calls      []string
	sent       []sendTxArgs
	handlers   map[domain.ProviderEvent]map[int]func(json.RawMessage)
	seq        int
}

func newFakeProvider(chainID uint64) *fakeProvider {
	return &fakeProvider{
		accounts: []string{alice},
		chainID:  chainID,
		balance:  big.NewInt(1_500_000_000_000_000_000),
		handlers: make(map[domain.ProviderEvent]map[int]func(json.RawMessage)),
	}
}

func assign(result, v any) error {
	if result == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func (f *fakeProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)

	switch method {
	case "eth_requestAccounts":
		return assign(result, f.accounts)
	case "eth_accounts":
		return assign(result, f.authorized)
	case "eth_chainId":
		return assign(result, hexutil.Uint64(f.chainID))
	case "eth_getBalance":
		return assign(result, (*hexutil.Big)(f.balance))
	case "wallet_switchEthereumChain":
		if len(f.switchErrs) > 0 {
			err := f.switchErrs[0]
			f.switchErrs = f.switchErrs[1:]
			if err != nil {
				return err
			}
		}
		p := params[0].(domain.SwitchChainParams)
		id, err := hexutil.DecodeUint64(p.ChainID)
		if err != nil {
			return err
		}
		f.chainID = id
		return nil
	case "wallet_addEthereumChain":
		return f.addErr
	case "eth_sendTransaction":
		f.sent = append(f.sent, params[0].(sendTxArgs))
		return assign(result, common.HexToHash("0xabc"))
	}
	return errors.New("unexpected method " + method)
}

type fakeSub struct {
	f     *fakeProvider
	event domain.ProviderEvent
	id    int
}

func (s fakeSub) Unsubscribe() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.handlers[s.event], s.id)
}

func (f *fakeProvider) Subscribe(event domain.ProviderEvent, handler func(json.RawMessage)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]func(json.RawMessage))
	}
	f.handlers[event][f.seq] = handler
	return fakeSub{f: f, event: event, id: f.seq}
}

func (f *fakeProvider) emit(event domain.ProviderEvent, payload any) {
	raw, _ := json.Marshal(payload)
	f.mu.Lock()
	var hs []func(json.RawMessage)
	for _, h := range f.handlers[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

func (f *fakeProvider) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}
	return n
}

func (f *fakeProvider) methodCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type staticResolver string

func (r staticResolver) LookupAddress(ctx context.Context, addr common.Address) (string, error) {
	return string(r), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(p Provider, expected uint64) *Manager {
	return NewManager(discardLogger(), p, Config{ExpectedChainID: expected})
}

func TestConnect_NoProvider(t *testing.T) {
	m := newManager(nil, 137)

	err := m.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, domain.StatusDisconnected, m.Session().Status)
}

func TestConnect_Success(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)

	require.NoError(t, m.Connect(context.Background()))

	s := m.Session()
	assert.Equal(t, domain.StatusConnected, s.Status)
	assert.Equal(t, alice, s.Account)
	assert.Equal(t, uint64(137), s.ChainID)
	assert.Equal(t, "1.5", s.Balance)
	assert.Equal(t, 2, p.subscriptions())
	assert.Equal(t, common.HexToAddress(alice), m.Account())
	assert.Equal(t, "Polygon", m.Info().Network)

	// second connect is a no-op
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 2, p.subscriptions())
}

func TestConnect_NoAccounts(t *testing.T) {
	p := newFakeProvider(137)
	p.accounts = nil
	m := newManager(p, 137)

	err := m.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoAccountsGranted)
	assert.Equal(t, domain.Disconnected(), m.Session())
	assert.Zero(t, p.subscriptions())
}

func TestConnect_UserRejectsAccounts(t *testing.T) {
	p := &rejectingProvider{}
	m := newManager(p, 137)

	err := m.Connect(context.Background())

	code, ok := domain.ProviderErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUserRejected, code)
	assert.Equal(t, domain.StatusDisconnected, m.Session().Status)
}

type rejectingProvider struct{ fakeProvider }

func (r *rejectingProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	return &domain.ProviderError{Code: domain.CodeUserRejected, Message: "User rejected the request."}
}

func TestConnect_SwitchesNetwork(t *testing.T) {
	p := newFakeProvider(1)
	m := newManager(p, 137)

	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, uint64(137), m.Session().ChainID)
	assert.Contains(t, p.methodCalls(), "wallet_switchEthereumChain")
	assert.NotContains(t, p.methodCalls(), "wallet_addEthereumChain")
}

func TestConnect_AddsUnknownNetworkThenRetries(t *testing.T) {
	p := newFakeProvider(1)
	p.switchErrs = []error{&domain.ProviderError{Code: domain.CodeUnknownChain, Message: "Unrecognized chain ID"}}
	m := newManager(p, 137)

	require.NoError(t, m.Connect(context.Background()))

	calls := p.methodCalls()
	assert.Equal(t, []string{
		"eth_requestAccounts",
		"eth_chainId",
		"wallet_switchEthereumChain",
		"wallet_addEthereumChain",
		"wallet_switchEthereumChain",
		"eth_chainId",
		"eth_getBalance",
	}, calls)
	assert.Equal(t, uint64(137), m.Session().ChainID)
}

func TestConnect_AddNetworkFails(t *testing.T) {
	p := newFakeProvider(1)
	p.switchErrs = []error{&domain.ProviderError{Code: domain.CodeUnknownChain, Message: "Unrecognized chain ID"}}
	p.addErr = &domain.ProviderError{Code: domain.CodeUserRejected, Message: "rejected"}
	m := newManager(p, 137)

	err := m.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrNetworkMismatch)
	assert.Equal(t, domain.StatusDisconnected, m.Session().Status)
	assert.Zero(t, p.subscriptions())
}

func TestConnect_ResolvesNameOnMainnet(t *testing.T) {
	p := newFakeProvider(1)
	m := NewManager(discardLogger(), p, Config{ExpectedChainID: 1, Resolver: staticResolver("alice.eth")})

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, "alice.eth", m.Session().Name)

	p.emit(domain.EventChainChanged, "0x89")

	s := m.Session()
	assert.Equal(t, uint64(137), s.ChainID)
	assert.Empty(t, s.Name, "chain change invalidates the resolved name")
}

func TestDisconnect_Idempotent(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)
	require.NoError(t, m.Connect(context.Background()))

	m.Disconnect()
	m.Disconnect()

	assert.Equal(t, domain.Disconnected(), m.Session())
	assert.Zero(t, p.subscriptions())
	assert.Equal(t, common.Address{}, m.Account())
}

func TestAccountsChanged(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)
	require.NoError(t, m.Connect(context.Background()))

	bob := "0x0000000000000000000000000000000000000b0b"
	p.mu.Lock()
	p.balance = big.NewInt(2_000_000_000_000_000_000)
	p.mu.Unlock()

	p.emit(domain.EventAccountsChanged, []string{bob})

	s := m.Session()
	assert.Equal(t, bob, s.Account)
	assert.Equal(t, "2", s.Balance)

	p.emit(domain.EventAccountsChanged, []string{})

	assert.Equal(t, domain.StatusDisconnected, m.Session().Status)
	assert.Zero(t, p.subscriptions())
}

func TestStaleEventsIgnoredAfterReconnect(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)
	require.NoError(t, m.Connect(context.Background()))

	var stale func(json.RawMessage)
	p.mu.Lock()
	for _, h := range p.handlers[domain.EventChainChanged] {
		stale = h
	}
	p.mu.Unlock()
	require.NotNil(t, stale)

	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))

	stale(json.RawMessage(`"0x1"`))
	assert.Equal(t, uint64(137), m.Session().ChainID)
}

func TestSwitchNetwork_NeverErrors(t *testing.T) {
	p := newFakeProvider(137)
	p.switchErrs = []error{&domain.ProviderError{Code: domain.CodeUserRejected, Message: "no"}}
	m := newManager(p, 137)

	assert.False(t, m.SwitchNetwork(context.Background(), 56))
	assert.True(t, m.SwitchNetwork(context.Background(), 56))
	assert.False(t, newManager(nil, 137).SwitchNetwork(context.Background(), 137))
}

func TestSendTransaction(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)
	to := common.HexToAddress("0xB524a7d13A835aDb68c3C41de7a9609A2208a1C7")

	_, err := m.SendTransaction(context.Background(), to, big.NewInt(1), nil)
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)

	require.NoError(t, m.Connect(context.Background()))
	hash, err := m.SendTransaction(context.Background(), to, big.NewInt(10), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc"), hash)
	require.Len(t, p.sent, 1)
	assert.Equal(t, alice, p.sent[0].From)
	assert.Equal(t, "0xa", p.sent[0].Value.String())

	p.emit(domain.EventChainChanged, "0x1")
	_, err = m.SendTransaction(context.Background(), to, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNetworkMismatch)
}

func TestWatch_ObservesValidTransitions(t *testing.T) {
	p := newFakeProvider(137)
	m := newManager(p, 137)

	var mu sync.Mutex
	statuses := []domain.Status{domain.StatusDisconnected}
	stop := m.Watch(func(s domain.Session) {
		mu.Lock()
		defer mu.Unlock()
		if last := statuses[len(statuses)-1]; last != s.Status {
			statuses = append(statuses, s.Status)
		}
	})

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	p.accounts = nil
	_ = m.Connect(context.Background())
	stop()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(statuses); i++ {
		assert.True(t, domain.CanTransition(statuses[i-1], statuses[i]), "%s -> %s", statuses[i-1], statuses[i])
	}
	assert.Equal(t, []domain.Status{
		domain.StatusDisconnected,
		domain.StatusConnecting,
		domain.StatusConnected,
		domain.StatusDisconnected,
		domain.StatusConnecting,
		domain.StatusDisconnected,
	}, statuses)
}

func TestSessionMovesOnlyAlongTransitionTable(t *testing.T) {
	m := newManager(newFakeProvider(137), 137)

	m.mu.Lock()
	err := m.moveLocked(domain.StatusConnected)
	status := m.session.Status
	m.mu.Unlock()
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusDisconnected, status)

	m.mu.Lock()
	require.NoError(t, m.moveLocked(domain.StatusConnecting))
	require.NoError(t, m.moveLocked(domain.StatusConnected))
	assert.ErrorIs(t, m.moveLocked(domain.StatusConnecting), domain.ErrInvalidTransition)
	m.mu.Unlock()
}

func TestResume(t *testing.T) {
	t.Run("nothing authorized", func(t *testing.T) {
		p := newFakeProvider(137)
		m := newManager(p, 137)

		ok, err := m.Resume(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, m.Connected())
		assert.NotContains(t, p.methodCalls(), "eth_requestAccounts")
	})

	t.Run("already authorized", func(t *testing.T) {
		p := newFakeProvider(137)
		p.authorized = []string{alice}
		m := newManager(p, 137)

		ok, err := m.Resume(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, m.Connected())
		assert.Equal(t, alice, m.Session().Account)
		assert.Equal(t, 2, p.subscriptions())
	})

	t.Run("no provider", func(t *testing.T) {
		ok, err := newManager(nil, 137).Resume(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "0.000000000000000001", FormatEther(big.NewInt(1)))
}
