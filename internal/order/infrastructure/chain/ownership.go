package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ListOwned checks token ids 1..bound and returns the orders held by owner.
// Per-token failures never abort the scan. It fails on a misconfigured
// contract address. It also fails when ctx ends or the shared scan times out,
// so a partial list is never returned as complete.
func (s *Service) ListOwned(ctx context.Context, owner common.Address) ([]domain.OrderRecord, error) {
	addr, err := s.contract()
	if err != nil {
		return nil, err
	}
	if owner == (common.Address{}) || s.backend == nil {
		return []domain.OrderRecord{}, nil
	}

	// the scan is shared by every concurrent caller for owner, so it must not
	// be tied to any one caller's lifetime
	ch := s.scans.DoChan(owner.Hex(), func() (any, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ScanTimeout)
		defer cancel()
		return s.scan(scanCtx, addr, owner)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		records := res.Val.([]domain.OrderRecord)
		out := make([]domain.OrderRecord, len(records))
		copy(out, records)
		return out, nil
	}
}

func (s *Service) scan(ctx context.Context, addr, owner common.Address) ([]domain.OrderRecord, error) {
	bound := s.bound(ctx, addr)
	s.log.Debug("ownership scan", "owner", owner.Hex(), "bound", bound)

	records := []domain.OrderRecord{}
	for id := uint64(1); id <= bound; id++ {
		if err := ctx.Err(); err != nil {
			s.log.Warn("ownership scan interrupted", "owner", owner.Hex(), "at", id, "err", err)
			return nil, fmt.Errorf("ownership scan stopped at token %d: %w", id, err)
		}
		tokenID := new(big.Int).SetUint64(id)

		out, err := s.call(ctx, addr, methodBalanceOf, owner, tokenID)
		if err != nil {
			s.log.Warn("balance read failed", "token_id", id, "err", err)
			continue
		}
		if balance, ok := out[0].(*big.Int); !ok || balance.Sign() == 0 {
			continue
		}

		rec, err := s.order(ctx, addr, tokenID)
		if err != nil {
			s.log.Warn("order details unavailable", "token_id", id, "err", err)
			rec = domain.OrderRecord{TokenID: id, DetailsUnavailable: true}
		}
		records = append(records, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ownership scan stopped: %w", err)
	}
	return records, nil
}

func (s *Service) order(ctx context.Context, addr common.Address, tokenID *big.Int) (domain.OrderRecord, error) {
	out, err := s.call(ctx, addr, methodOrders, tokenID)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	var o struct {
		Buyer     common.Address
		IpfsURI   string
		Amount    *big.Int
		Delivered bool
		Burned    bool
	}
	if err := contractABI.Methods[methodOrders].Outputs.Copy(&o, out); err != nil {
		return domain.OrderRecord{}, err
	}

	rec := domain.OrderRecord{
		TokenID:   tokenID.Uint64(),
		URI:       o.IpfsURI,
		Delivered: o.Delivered,
		Burned:    o.Burned,
		Amount:    FromWei(o.Amount),
	}
	if rec.URI == "" {
		if out, err := s.call(ctx, addr, methodURI, tokenID); err == nil {
			rec.URI, _ = out[0].(string)
		}
	}
	return rec, nil
}

// bound picks the highest token id worth probing: the largest id seen in
// recent TransferSingle logs, else currentTokenId, else DefaultBound. The
// safety margin is added to the first two.
func (s *Service) bound(ctx context.Context, addr common.Address) uint64 {
	n, ok := s.maxTransferred(ctx, addr)
	if !ok {
		n, ok = s.currentTokenID(ctx, addr)
	}
	if !ok {
		return s.cfg.DefaultBound
	}
	return min(n+s.cfg.SafetyMargin, s.cfg.MaxBound)
}

func (s *Service) maxTransferred(ctx context.Context, addr common.Address) (uint64, bool) {
	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		s.log.Warn("block number failed", "err", err)
		return 0, false
	}
	var from uint64
	if head > s.cfg.Lookback {
		from = head - s.cfg.Lookback
	}

	logs, err := s.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{contractABI.Events[eventTransferSingle].ID}},
	})
	if err != nil {
		s.log.Warn("transfer scan failed", "err", err)
		return 0, false
	}

	var highest uint64
	for _, l := range logs {
		vals, err := contractABI.Unpack(eventTransferSingle, l.Data)
		if err != nil || len(vals) < 1 {
			continue
		}
		if id, ok := vals[0].(*big.Int); ok && id.IsUint64() && id.Uint64() > highest {
			highest = id.Uint64()
		}
	}
	return highest, highest > 0
}

func (s *Service) currentTokenID(ctx context.Context, addr common.Address) (uint64, bool) {
	out, err := s.call(ctx, addr, methodCurrentTokenID)
	if err != nil {
		s.log.Warn("currentTokenId failed", "err", err)
		return 0, false
	}
	id, ok := out[0].(*big.Int)
	if !ok || !id.IsUint64() {
		return 0, false
	}
	return id.Uint64(), true
}

// MintedURIs returns the content URIs of every OrderMinted event addressed to
// owner.
func (s *Service) MintedURIs(ctx context.Context, owner common.Address) ([]string, error) {
	addr, err := s.contract()
	if err != nil {
		return nil, err
	}
	logs, err := s.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(s.cfg.DeployBlock),
		Addresses: []common.Address{addr},
		Topics: [][]common.Hash{
			{contractABI.Events[eventOrderMinted].ID},
			nil,
			{common.BytesToHash(owner.Bytes())},
		},
	})
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(logs))
	for _, l := range logs {
		vals, err := contractABI.Unpack(eventOrderMinted, l.Data)
		if err != nil || len(vals) < 1 {
			s.log.Warn("undecodable OrderMinted log", "tx_hash", l.TxHash.Hex(), "err", err)
			continue
		}
		if uri, ok := vals[0].(string); ok && uri != "" {
			uris = append(uris, uri)
		}
	}
	return uris, nil
}
