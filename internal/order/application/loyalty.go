package application

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Loyalty awards one point per unit of fiat spent, read back from the
// metadata of every order minted to the account.
type Loyalty struct {
	log     *slog.Logger
	wallet  Wallet
	chain   OrderChain
	fetcher Fetcher
	workers int
}

func NewLoyalty(log *slog.Logger, w Wallet, oc OrderChain, f Fetcher) *Loyalty {
	return &Loyalty{log: log, wallet: w, chain: oc, fetcher: f, workers: 4}
}

type orderMetadata struct {
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (l *Loyalty) Points(ctx context.Context) (decimal.Decimal, error) {
	owner := l.wallet.Account()
	if owner == (common.Address{}) {
		return decimal.Zero, nil
	}

	uris, err := l.chain.MintedURIs(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}

	totals := make([]decimal.Decimal, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, uri := range uris {
		g.Go(func() error {
			var meta orderMetadata
			if err := l.fetcher.Fetch(gctx, uri, &meta); err != nil {
				l.log.Warn("order metadata unavailable", "uri", uri, "err", err)
				return nil
			}
			totals[i] = meta.TotalPrice
			return nil
		})
	}
	_ = g.Wait()

	return decimal.Sum(decimal.Zero, totals...), nil
}
