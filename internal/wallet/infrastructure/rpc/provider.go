package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/Cartified/internal/wallet/application"
	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

type caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type poller struct {
	stop chan struct{}
	done chan struct{}
}

// Provider adapts a wallet JSON-RPC endpoint to the EIP-1193 shape. Account
// and chain events are derived by polling eth_accounts and eth_chainId while
// at least one subscription is live.
type Provider struct {
	log      *slog.Logger
	c        caller
	interval time.Duration

	mu       sync.Mutex
	handlers map[domain.ProviderEvent]map[uint64]func(json.RawMessage)
	seq      uint64
	running  *poller
	stopped  []chan struct{}
}

func Dial(ctx context.Context, log *slog.Logger, url string, interval time.Duration) (*Provider, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return New(log, c, interval), nil
}

func New(log *slog.Logger, c caller, interval time.Duration) *Provider {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Provider{
		log:      log,
		c:        c,
		interval: interval,
		handlers: make(map[domain.ProviderEvent]map[uint64]func(json.RawMessage)),
	}
}

func (p *Provider) Request(ctx context.Context, result any, method string, params ...any) error {
	return p.c.CallContext(ctx, result, method, params...)
}

type subscription struct {
	p     *Provider
	event domain.ProviderEvent
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.p.remove(s.event, s.id) })
}

func (p *Provider) Subscribe(event domain.ProviderEvent, handler func(json.RawMessage)) application.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[uint64]func(json.RawMessage))
	}
	p.handlers[event][p.seq] = handler

	if p.running == nil {
		p.running = &poller{stop: make(chan struct{}), done: make(chan struct{})}
		go p.poll(p.running)
	}
	return &subscription{p: p, event: event, id: p.seq}
}

func (p *Provider) remove(event domain.ProviderEvent, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.handlers[event], id)
	if p.count() == 0 {
		p.stopLocked()
	}
}

func (p *Provider) count() int {
	n := 0
	for _, hs := range p.handlers {
		n += len(hs)
	}
	return n
}

// stopLocked signals the poller without waiting; Unsubscribe may run on the
// poller goroutine itself.
func (p *Provider) stopLocked() {
	if p.running == nil {
		return
	}
	close(p.running.stop)
	p.stopped = slices.DeleteFunc(p.stopped, exited)
	p.stopped = append(p.stopped, p.running.done)
	p.running = nil
}

func exited(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// Close stops polling, waits for the poller to exit and closes the
// underlying client when it owns one.
func (p *Provider) Close() {
	p.mu.Lock()
	p.handlers = make(map[domain.ProviderEvent]map[uint64]func(json.RawMessage))
	p.stopLocked()
	waits := p.stopped
	p.stopped = nil
	p.mu.Unlock()

	for _, done := range waits {
		<-done
	}
	if c, ok := p.c.(*gethrpc.Client); ok {
		c.Close()
	}
}

func (p *Provider) poll(w *poller) {
	defer close(w.done)

	accounts, chain, _ := p.read()
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			nextAccounts, nextChain, ok := p.read()
			if !ok {
				continue
			}
			if !slices.Equal(accounts, nextAccounts) {
				accounts = nextAccounts
				p.emit(domain.EventAccountsChanged, accounts)
			}
			if chain != nextChain {
				chain = nextChain
				p.emit(domain.EventChainChanged, chain)
			}
		}
	}
}

func (p *Provider) read() ([]string, string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	var accounts []string
	if err := p.c.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		p.log.Debug("poll accounts failed", "err", err)
		return nil, "", false
	}
	var chain string
	if err := p.c.CallContext(ctx, &chain, "eth_chainId"); err != nil {
		p.log.Debug("poll chain id failed", "err", err)
		return nil, "", false
	}
	if accounts == nil {
		accounts = []string{}
	}
	return accounts, chain, true
}

func (p *Provider) emit(event domain.ProviderEvent, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("encode provider event failed", "event", string(event), "err", err)
		return
	}

	p.mu.Lock()
	hs := make([]func(json.RawMessage), 0, len(p.handlers[event]))
	for _, h := range p.handlers[event] {
		hs = append(hs, h)
	}
	p.mu.Unlock()

	for _, h := range hs {
		h(raw)
	}
}
