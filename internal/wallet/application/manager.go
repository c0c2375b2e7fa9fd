package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

type Config struct {
	// ExpectedChainID is the network the storefront trades on. Zero disables
	// the network check.
	ExpectedChainID uint64
	// Networks holds descriptors offered through wallet_addEthereumChain.
	Networks       map[uint64]domain.NetworkDescriptor
	RequestTimeout time.Duration
	Resolver       NameResolver
}

// Manager owns the single wallet session of the process. It is the only
// writer of session state.
type Manager struct {
	log      *slog.Logger
	provider Provider
	cfg      Config

	mu       sync.Mutex
	session  domain.Session
	subs     []Subscription
	gen      uint64
	watchers map[int]func(domain.Session)
	watchSeq int
}

func NewManager(log *slog.Logger, provider Provider, cfg Config) *Manager {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.Networks == nil {
		cfg.Networks = domain.KnownNetworks
	}
	return &Manager{
		log:      log,
		provider: provider,
		cfg:      cfg,
		session:  domain.Disconnected(),
		watchers: make(map[int]func(domain.Session)),
	}
}

func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) Connected() bool {
	return m.Session().Connected()
}

// Account is the active account, or the zero address when not connected.
func (m *Manager) Account() common.Address {
	s := m.Session()
	if !s.Connected() {
		return common.Address{}
	}
	return common.HexToAddress(s.Account)
}

func (m *Manager) Info() domain.Info {
	s := m.Session()
	return domain.Info{
		Address: s.Account,
		Balance: s.Balance,
		Network: domain.NetworkName(s.ChainID),
		Name:    s.Name,
	}
}

// Watch registers fn for session changes. The returned func deregisters it.
func (m *Manager) Watch(fn func(domain.Session)) func() {
	m.mu.Lock()
	m.watchSeq++
	id := m.watchSeq
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(s domain.Session) {
	m.mu.Lock()
	fns := make([]func(domain.Session), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Connect authorizes an account, aligns the network and starts listening for
// provider events. On failure the session is back to disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		return domain.ErrProviderUnavailable
	}

	m.mu.Lock()
	switch m.session.Status {
	case domain.StatusConnected:
		m.mu.Unlock()
		return nil
	case domain.StatusConnecting:
		m.mu.Unlock()
		return domain.ErrConnectInProgress
	}
	if err := m.moveLocked(domain.StatusConnecting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen++
	gen := m.gen
	snapshot := m.session
	m.mu.Unlock()
	m.notify(snapshot)

	next, err := m.establish(ctx)
	if err != nil {
		m.log.Error("wallet connect failed", "err", err)
		m.Disconnect()
		return err
	}

	subs := []Subscription{
		m.provider.Subscribe(domain.EventAccountsChanged, func(raw json.RawMessage) { m.onAccountsChanged(gen, raw) }),
		m.provider.Subscribe(domain.EventChainChanged, func(raw json.RawMessage) { m.onChainChanged(gen, raw) }),
	}

	m.mu.Lock()
	if m.gen != gen || m.moveLocked(next.Status) != nil {
		m.mu.Unlock()
		for _, s := range subs {
			s.Unsubscribe()
		}
		return fmt.Errorf("connect aborted: %w", domain.ErrWalletNotConnected)
	}
	m.session = next
	m.subs = subs
	snapshot = m.session
	m.mu.Unlock()

	m.log.Info("wallet connected", "account", next.Account, "chain_id", next.ChainID)
	m.notify(snapshot)
	return nil
}

func (m *Manager) establish(ctx context.Context) (domain.Session, error) {
	var accounts []string
	if err := m.provider.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return domain.Session{}, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.Session{}, domain.ErrNoAccountsGranted
	}
	account := accounts[0]

	chainID, err := m.chainID(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if want := m.cfg.ExpectedChainID; want != 0 && chainID != want {
		m.log.Info("switching wallet network", "from", chainID, "to", want)
		if err := m.ensureNetwork(ctx, want); err != nil {
			return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrNetworkMismatch, err)
		}
		if chainID, err = m.chainID(ctx); err != nil {
			return domain.Session{}, err
		}
		if chainID != want {
			return domain.Session{}, fmt.Errorf("%w: wallet reports chain %d, want %d", domain.ErrNetworkMismatch, chainID, want)
		}
	}

	balance, err := m.balance(ctx, account)
	if err != nil {
		return domain.Session{}, err
	}

	var name string
	if chainID == 1 && m.cfg.Resolver != nil {
		if n, err := m.cfg.Resolver.LookupAddress(ctx, common.HexToAddress(account)); err == nil {
			name = n
		} else {
			m.log.Warn("name lookup failed", "account", account, "err", err)
		}
	}

	return domain.Session{
		Status:  domain.StatusConnected,
		Account: account,
		ChainID: chainID,
		Balance: balance,
		Name:    name,
	}, nil
}

// moveLocked changes the session status along the transition table. The
// caller holds mu.
func (m *Manager) moveLocked(to domain.Status) error {
	if err := domain.CheckTransition(m.session.Status, to); err != nil {
		return err
	}
	m.session.Status = to
	return nil
}

// Resume reconnects at startup when the wallet has already authorized an
// account, without prompting. It reports whether a session was established.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	if m.provider == nil {
		return false, nil
	}
	var accounts []string
	if err := m.provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return false, fmt.Errorf("read authorized accounts: %w", err)
	}
	if len(accounts) == 0 {
		return false, nil
	}
	if err := m.Connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Disconnect clears the session and releases provider subscriptions. It is
// the single teardown path and is safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.gen++
	was := m.session.Status
	if was != domain.StatusDisconnected {
		if err := m.moveLocked(domain.StatusDisconnected); err != nil {
			m.log.Error("session teardown", "err", err)
		}
	}
	m.session = domain.Disconnected()
	snapshot := m.session
	m.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if was != domain.StatusDisconnected {
		m.log.Info("wallet disconnected")
		m.notify(snapshot)
	}
}

// SwitchNetwork asks the wallet to move to chainID, adding the network first
// when the wallet does not know it.
func (m *Manager) SwitchNetwork(ctx context.Context, chainID uint64) bool {
	if m.provider == nil {
		return false
	}
	if err := m.ensureNetwork(ctx, chainID); err != nil {
		m.log.Warn("network switch failed", "chain_id", chainID, "err", err)
		return false
	}

	if got, err := m.chainID(ctx); err == nil {
		m.setChain(m.currentGen(), got)
	}
	return true
}

func (m *Manager) ensureNetwork(ctx context.Context, chainID uint64) error {
	switchParams := domain.SwitchChainParams{ChainID: domain.HexChainID(chainID)}

	err := m.provider.Request(ctx, nil, "wallet_switchEthereumChain", switchParams)
	if err == nil {
		return nil
	}
	if code, ok := domain.ProviderErrorCode(err); !ok || code != domain.CodeUnknownChain {
		return err
	}

	desc, ok := m.cfg.Networks[chainID]
	if !ok {
		return fmt.Errorf("chain %d unknown to wallet and no descriptor configured: %w", chainID, err)
	}
	if err := m.provider.Request(ctx, nil, "wallet_addEthereumChain", desc.AddChainParams()); err != nil {
		return fmt.Errorf("add chain %d: %w", chainID, err)
	}
	return m.provider.Request(ctx, nil, "wallet_switchEthereumChain", switchParams)
}

type sendTxArgs struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Value *hexutil.Big  `json:"value,omitempty"`
	Data  hexutil.Bytes `json:"data,omitempty"`
}

// SendTransaction submits a transaction signed by the wallet through
// eth_sendTransaction.
func (m *Manager) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	s := m.Session()
	if m.provider == nil {
		return common.Hash{}, domain.ErrProviderUnavailable
	}
	if !s.Connected() {
		return common.Hash{}, domain.ErrWalletNotConnected
	}
	if want := m.cfg.ExpectedChainID; want != 0 && s.ChainID != want {
		return common.Hash{}, fmt.Errorf("%w: on chain %d, want %d", domain.ErrNetworkMismatch, s.ChainID, want)
	}

	args := sendTxArgs{From: s.Account, To: to.Hex(), Data: data}
	if value != nil && value.Sign() > 0 {
		args.Value = (*hexutil.Big)(value)
	}

	var hash common.Hash
	if err := m.provider.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (m *Manager) onAccountsChanged(gen uint64, raw json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		m.log.Warn("bad accountsChanged payload", "err", err)
		return
	}
	if len(accounts) == 0 {
		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if !stale {
			m.Disconnect()
		}
		return
	}

	account := accounts[0]
	m.mu.Lock()
	if gen != m.gen || !m.session.Connected() {
		m.mu.Unlock()
		return
	}
	m.session.Account = account
	snapshot := m.session
	m.mu.Unlock()
	m.notify(snapshot)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()
	balance, err := m.balance(ctx, account)
	if err != nil {
		m.log.Warn("balance refresh failed", "account", account, "err", err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.session.Account != account {
		m.mu.Unlock()
		return
	}
	m.session.Balance = balance
	snapshot = m.session
	m.mu.Unlock()
	m.notify(snapshot)
}

func (m *Manager) onChainChanged(gen uint64, raw json.RawMessage) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		m.log.Warn("bad chainChanged payload", "err", err)
		return
	}
	id, err := hexutil.DecodeUint64(hex)
	if err != nil {
		m.log.Warn("bad chain id", "chain_id", hex, "err", err)
		return
	}
	m.setChain(gen, id)
}

func (m *Manager) setChain(gen, chainID uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.session.Connected() {
		m.mu.Unlock()
		return
	}
	if m.session.ChainID == chainID {
		m.mu.Unlock()
		return
	}
	m.session.ChainID = chainID
	m.session.Name = ""
	snapshot := m.session
	m.mu.Unlock()

	m.log.Info("wallet chain changed", "chain_id", chainID)
	m.notify(snapshot)
}

func (m *Manager) currentGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Manager) chainID(ctx context.Context) (uint64, error) {
	var hex hexutil.Uint64
	if err := m.provider.Request(ctx, &hex, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("read chain id: %w", err)
	}
	return uint64(hex), nil
}

func (m *Manager) balance(ctx context.Context, account string) (string, error) {
	var wei hexutil.Big
	if err := m.provider.Request(ctx, &wei, "eth_getBalance", account, "latest"); err != nil {
		return "", fmt.Errorf("read balance: %w", err)
	}
	return FormatEther((*big.Int)(&wei)), nil
}

// FormatEther renders wei as a decimal ether amount.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}
