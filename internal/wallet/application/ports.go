package application

import (
	"context"
	"encoding/json"

	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Provider is an EIP-1193 style wallet: requests plus account/chain events.
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
	Subscribe(event domain.ProviderEvent, handler func(json.RawMessage)) Subscription
}

type Subscription interface {
	Unsubscribe()
}

type NameResolver interface {
	LookupAddress(ctx context.Context, addr common.Address) (string, error)
}
