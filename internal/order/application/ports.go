package application

import (
	"context"

	cart "github.com/dmehra2102/Cartified/internal/cart/domain"
	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Cart interface {
	Items() []cart.Item
	Empty() bool
	Clear()
}

type Wallet interface {
	Connected() bool
	Account() common.Address
}

type Uploader interface {
	Upload(ctx context.Context, payload domain.Payload) (domain.ContentURI, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, uri string, v any) error
}

type OrderChain interface {
	Address() string
	SubmitOrder(ctx context.Context, uri string, price decimal.Decimal) (domain.Receipt, error)
	ConfirmDelivery(ctx context.Context, tokenID uint64) (common.Hash, error)
	BurnOrder(ctx context.Context, tokenID uint64) (common.Hash, error)
	ListOwned(ctx context.Context, owner common.Address) ([]domain.OrderRecord, error)
	MintedURIs(ctx context.Context, owner common.Address) ([]string, error)
}

// Ledger keeps the local purchase history and queues the matching events.
type Ledger interface {
	RecordPurchase(ctx context.Context, p domain.Purchase) error
	RecordDelivery(ctx context.Context, tokenID uint64, txHash string) error
	RecordBurn(ctx context.Context, tokenID uint64, txHash string) error
}
