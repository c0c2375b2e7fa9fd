package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	aliceTx = common.HexToHash("0xaaaa")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWallet struct {
	mu        sync.Mutex
	connected bool
	account   common.Address
}

func (w *fakeWallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *fakeWallet) Account() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return common.Address{}
	}
	return w.account
}

type fakeUploader struct {
	mu       sync.Mutex
	payloads []domain.Payload
	uri      domain.ContentURI
	err      error
	block    chan struct{}
}

func (u *fakeUploader) Upload(_ context.Context, p domain.Payload) (domain.ContentURI, error) {
	u.mu.Lock()
	u.payloads = append(u.payloads, p)
	u.mu.Unlock()
	if u.block != nil {
		<-u.block
	}
	return u.uri, u.err
}

type submit struct {
	uri   string
	price decimal.Decimal
}

type fakeChain struct {
	mu         sync.Mutex
	submits    []submit
	receipt    domain.Receipt
	submitErr  error
	confirms   []uint64
	burns      []uint64
	confirmErr error
	owned      []domain.OrderRecord
	listCalls  int
	listErr    error
	minted     []string
	mintedErr  error

	// confirmGate, when set, holds ConfirmDelivery until closed.
	confirmGate    chan struct{}
	confirmEntered chan struct{}
}

func (c *fakeChain) Address() string { return "0xB524a7d13A835aDb68c3C41de7a9609A2208a1C7" }

func (c *fakeChain) SubmitOrder(_ context.Context, uri string, price decimal.Decimal) (domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits = append(c.submits, submit{uri: uri, price: price})
	return c.receipt, c.submitErr
}

func (c *fakeChain) ConfirmDelivery(_ context.Context, tokenID uint64) (common.Hash, error) {
	if c.confirmGate != nil {
		c.confirmEntered <- struct{}{}
		<-c.confirmGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirms = append(c.confirms, tokenID)
	if c.confirmErr != nil {
		return common.Hash{}, c.confirmErr
	}
	for i := range c.owned {
		if c.owned[i].TokenID == tokenID {
			c.owned[i].Delivered = true
		}
	}
	return aliceTx, nil
}

func (c *fakeChain) BurnOrder(_ context.Context, tokenID uint64) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.burns = append(c.burns, tokenID)
	for i := range c.owned {
		if c.owned[i].TokenID == tokenID {
			c.owned[i].Burned = true
		}
	}
	return aliceTx, nil
}

func (c *fakeChain) listed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

func (c *fakeChain) ListOwned(_ context.Context, owner common.Address) ([]domain.OrderRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if c.listErr != nil {
		return nil, c.listErr
	}
	if owner == (common.Address{}) {
		return []domain.OrderRecord{}, nil
	}
	out := make([]domain.OrderRecord, len(c.owned))
	copy(out, c.owned)
	return out, nil
}

func (c *fakeChain) MintedURIs(context.Context, common.Address) ([]string, error) {
	return c.minted, c.mintedErr
}

type fakeLedger struct {
	mu         sync.Mutex
	purchases  []domain.Purchase
	deliveries []uint64
	burns      []uint64
	err        error
}

func (l *fakeLedger) RecordPurchase(_ context.Context, p domain.Purchase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purchases = append(l.purchases, p)
	return l.err
}

func (l *fakeLedger) RecordDelivery(_ context.Context, tokenID uint64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, tokenID)
	return l.err
}

func (l *fakeLedger) RecordBurn(_ context.Context, tokenID uint64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.burns = append(l.burns, tokenID)
	return l.err
}

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, uri string, v any) error {
	raw, ok := f[uri]
	if !ok {
		return errors.New("gateway timeout")
	}
	return json.Unmarshal([]byte(raw), v)
}
