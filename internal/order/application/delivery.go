package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/dmehra2102/Cartified/pkg/inflight"
	"github.com/ethereum/go-ethereum/common"
)

type DeliveryConfig struct {
	// Network tags QR payloads for the scanner. Defaults to "polygon".
	Network string
	Now     func() time.Time
	// Guard admits one confirm or burn per token before any chain read.
	// Defaults to a process-local guard.
	Guard inflight.Guard
}

// Delivery tracks the session account's orders and confirms or burns them.
type Delivery struct {
	log    *slog.Logger
	wallet Wallet
	chain  OrderChain
	ledger Ledger
	cfg    DeliveryConfig

	mu      sync.Mutex
	owner   common.Address
	records []domain.OrderRecord
}

func NewDelivery(log *slog.Logger, w Wallet, oc OrderChain, ledger Ledger, cfg DeliveryConfig) *Delivery {
	if cfg.Network == "" {
		cfg.Network = "polygon"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Guard == nil {
		cfg.Guard = inflight.NewMemory()
	}
	return &Delivery{log: log, wallet: w, chain: oc, ledger: ledger, cfg: cfg}
}

// Refresh rescans the chain for the session account. A missing account
// yields an empty list.
func (d *Delivery) Refresh(ctx context.Context) ([]domain.OrderRecord, error) {
	owner := d.wallet.Account()
	records, err := d.chain.ListOwned(ctx, owner)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.owner = owner
	d.records = records
	d.mu.Unlock()
	return slices.Clone(records), nil
}

func (d *Delivery) Records(ctx context.Context) ([]domain.OrderRecord, error) {
	if records, ok := d.cached(); ok {
		return records, nil
	}
	return d.Refresh(ctx)
}

func (d *Delivery) Pending(ctx context.Context) ([]domain.OrderRecord, error) {
	records, err := d.Records(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Pending(records), nil
}

func (d *Delivery) cached() ([]domain.OrderRecord, bool) {
	owner := d.wallet.Account()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.records == nil || d.owner != owner {
		return nil, false
	}
	return slices.Clone(d.records), true
}

func (d *Delivery) lookup(ctx context.Context, tokenID uint64) (domain.OrderRecord, error) {
	records, err := d.Records(ctx)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	for _, r := range records {
		if r.TokenID == tokenID {
			return r, nil
		}
	}
	return domain.OrderRecord{}, fmt.Errorf("%w: token %d", domain.ErrOrderNotFound, tokenID)
}

func (d *Delivery) QR(ctx context.Context, tokenID uint64) (domain.QRPayload, error) {
	rec, err := d.lookup(ctx, tokenID)
	if err != nil {
		return domain.QRPayload{}, err
	}
	if !rec.Pending() {
		return domain.QRPayload{}, fmt.Errorf("%w: token %d", domain.ErrOrderNotPending, tokenID)
	}
	return domain.NewQRPayload(tokenID, d.chain.Address(), d.cfg.Network, d.cfg.Now()), nil
}

// Confirm marks a pending order delivered on chain and refreshes the list.
func (d *Delivery) Confirm(ctx context.Context, tokenID uint64) (string, error) {
	release, err := d.admit(ctx, "delivery:confirm:", tokenID)
	if err != nil {
		return "", err
	}
	defer release()

	rec, err := d.lookup(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if !rec.Pending() {
		return "", fmt.Errorf("%w: token %d", domain.ErrOrderNotPending, tokenID)
	}

	hash, err := d.chain.ConfirmDelivery(ctx, tokenID)
	if err != nil {
		return "", err
	}
	d.mark(tokenID, func(r *domain.OrderRecord) { r.Delivered = true })

	if d.ledger != nil {
		if err := d.ledger.RecordDelivery(context.WithoutCancel(ctx), tokenID, hash.Hex()); err != nil {
			d.log.Error("record delivery failed", "token_id", tokenID, "err", err)
		}
	}
	if _, err := d.Refresh(ctx); err != nil {
		d.log.Warn("refresh after delivery failed", "token_id", tokenID, "err", err)
	}
	return hash.Hex(), nil
}

func (d *Delivery) Burn(ctx context.Context, tokenID uint64) (string, error) {
	release, err := d.admit(ctx, "delivery:burn:", tokenID)
	if err != nil {
		return "", err
	}
	defer release()

	rec, err := d.lookup(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if rec.Burned {
		return "", fmt.Errorf("%w: token %d already burned", domain.ErrInvalidTransition, tokenID)
	}

	hash, err := d.chain.BurnOrder(ctx, tokenID)
	if err != nil {
		return "", err
	}
	d.mark(tokenID, func(r *domain.OrderRecord) { r.Burned = true })

	if d.ledger != nil {
		if err := d.ledger.RecordBurn(context.WithoutCancel(ctx), tokenID, hash.Hex()); err != nil {
			d.log.Error("record burn failed", "token_id", tokenID, "err", err)
		}
	}
	if _, err := d.Refresh(ctx); err != nil {
		d.log.Warn("refresh after burn failed", "token_id", tokenID, "err", err)
	}
	return hash.Hex(), nil
}

// admit takes the per-token guard so a duplicate request is turned away
// before it triggers an ownership scan.
func (d *Delivery) admit(ctx context.Context, prefix string, tokenID uint64) (func(), error) {
	key := prefix + strconv.FormatUint(tokenID, 10)
	ok, err := d.cfg.Guard.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire guard: %w", domain.ErrTransactionFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: token %d", domain.ErrConfirmationInFlight, tokenID)
	}
	return func() {
		if err := d.cfg.Guard.Release(context.WithoutCancel(ctx), key); err != nil {
			d.log.Error("release guard failed", "key", key, "err", err)
		}
	}, nil
}

// mark applies a one-way flag change to the cached record.
func (d *Delivery) mark(tokenID uint64, fn func(*domain.OrderRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.records {
		if d.records[i].TokenID == tokenID {
			fn(&d.records[i])
		}
	}
}
