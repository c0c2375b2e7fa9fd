package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/dmehra2102/Cartified/pkg/inflight"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Backend is the read side of a chain node. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Sender signs and broadcasts transactions, normally through the wallet
// session.
type Sender interface {
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// DefaultMineTimeout is how long a broadcast transaction is waited on.
const DefaultMineTimeout = 5 * time.Minute

type Config struct {
	Address      string
	PollInterval time.Duration
	// Lookback is how many recent blocks are scanned for TransferSingle.
	Lookback     uint64
	SafetyMargin uint64
	DefaultBound uint64
	MaxBound     uint64
	// DeployBlock is where OrderMinted history scans start.
	DeployBlock uint64
	// ScanTimeout bounds one shared ownership scan.
	ScanTimeout time.Duration
	// MineTimeout bounds the receipt wait after a transaction is broadcast.
	// It must stay below the in-flight guard TTL.
	MineTimeout time.Duration
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Lookback == 0 {
		c.Lookback = 5000
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = 5
	}
	if c.DefaultBound == 0 {
		c.DefaultBound = 50
	}
	if c.MaxBound == 0 {
		c.MaxBound = 10000
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 2 * time.Minute
	}
	if c.MineTimeout <= 0 {
		c.MineTimeout = DefaultMineTimeout
	}
}

// Service submits and reads orders on the order-tracking contract.
type Service struct {
	log     *slog.Logger
	backend Backend
	sender  Sender
	guard   inflight.Guard
	cfg     Config
	scans   singleflight.Group
}

func NewService(log *slog.Logger, backend Backend, sender Sender, guard inflight.Guard, cfg Config) *Service {
	cfg.defaults()
	if guard == nil {
		guard = inflight.NewMemory()
	}
	return &Service{log: log, backend: backend, sender: sender, guard: guard, cfg: cfg}
}

func (s *Service) Address() string { return s.cfg.Address }

func (s *Service) contract() (common.Address, error) {
	if !common.IsHexAddress(s.cfg.Address) {
		return common.Address{}, fmt.Errorf("%w: %q", domain.ErrInvalidContractAddress, s.cfg.Address)
	}
	addr := common.HexToAddress(s.cfg.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", domain.ErrInvalidContractAddress)
	}
	return addr, nil
}

// ToWei converts a native amount with at most 18 decimals into wei.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).BigInt()
}

func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

func (s *Service) SubmitOrder(ctx context.Context, uri string, price decimal.Decimal) (domain.Receipt, error) {
	rcpt, err := s.transact(ctx, ToWei(price), methodPlaceOrder, uri)
	if err != nil {
		return domain.Receipt{}, err
	}

	addr, _ := s.contract()
	id, ok := tokenFromLogs(rcpt.Logs, addr, eventOrderPlaced)
	if !ok {
		id, ok = tokenFromLogs(rcpt.Logs, addr, eventOrderMinted)
	}
	if !ok {
		return domain.Receipt{TxHash: rcpt.TxHash}, fmt.Errorf("%w: tx %s", domain.ErrEventNotFound, rcpt.TxHash.Hex())
	}

	s.log.Info("order placed on chain", "tx_hash", rcpt.TxHash.Hex(), "token_id", id)
	return domain.Receipt{TxHash: rcpt.TxHash, TokenID: id}, nil
}

func (s *Service) ConfirmDelivery(ctx context.Context, tokenID uint64) (common.Hash, error) {
	return s.guarded(ctx, "confirm:", tokenID, methodConfirmDelivery)
}

func (s *Service) BurnOrder(ctx context.Context, tokenID uint64) (common.Hash, error) {
	return s.guarded(ctx, "burn:", tokenID, methodBurnOrder)
}

func (s *Service) guarded(ctx context.Context, prefix string, tokenID uint64, method string) (common.Hash, error) {
	key := prefix + s.cfg.Address + ":" + strconv.FormatUint(tokenID, 10)
	ok, err := s.guard.Acquire(ctx, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: acquire guard: %w", domain.ErrTransactionFailed, err)
	}
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: token %d", domain.ErrConfirmationInFlight, tokenID)
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Error("release guard failed", "key", key, "err", err)
		}
	}()

	rcpt, err := s.transact(ctx, nil, method, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Hash{}, err
	}
	s.log.Info("order transaction confirmed", "method", method, "token_id", tokenID, "tx_hash", rcpt.TxHash.Hex())
	return rcpt.TxHash, nil
}

func (s *Service) transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	addr, err := s.contract()
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", domain.ErrTransactionFailed, method, err)
	}

	hash, err := s.sender.SendTransaction(ctx, addr, value, data)
	if err != nil {
		return nil, classify(err)
	}
	s.log.Info("transaction sent", "method", method, "tx_hash", hash.Hex())

	// once broadcast the transaction mines regardless of the caller, so the
	// wait outlives ctx and is bounded by MineTimeout instead
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MineTimeout)
	defer cancel()
	rcpt, err := s.waitMined(waitCtx, hash)
	if err != nil {
		return nil, classify(err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s reverted", domain.ErrTransactionFailed, hash.Hex())
	}
	return rcpt, nil
}

// waitMined polls for the receipt until it exists or ctx ends.
func (s *Service) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()

	for {
		rcpt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil && rcpt != nil {
			if rcpt.TxHash == (common.Hash{}) {
				rcpt.TxHash = hash
			}
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.log.Warn("receipt lookup failed", "tx_hash", hash.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// tokenFromLogs reads the indexed token id of the first matching event.
func tokenFromLogs(logs []*types.Log, addr common.Address, event string) (uint64, bool) {
	id := contractABI.Events[event].ID
	for _, l := range logs {
		if l == nil || l.Address != addr || len(l.Topics) < 2 || l.Topics[0] != id {
			continue
		}
		v := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !v.IsUint64() {
			continue
		}
		return v.Uint64(), true
	}
	return 0, false
}

func (s *Service) call(ctx context.Context, addr common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return contractABI.Unpack(method, out)
}
