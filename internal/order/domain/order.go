package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cart "github.com/dmehra2102/Cartified/internal/cart/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrUnsupportedPayment     = errors.New("unsupported payment method")
	ErrUploadUnauthorized     = errors.New("upload unauthorized")
	ErrUploadFailed           = errors.New("upload failed")
	ErrTransactionFailed      = errors.New("transaction failed")
	ErrTransactionRejected    = errors.New("transaction rejected by user")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrEventNotFound          = errors.New("order event not found in receipt")
	ErrConfirmationInFlight   = errors.New("confirmation already in flight")
	ErrInvalidContractAddress = errors.New("invalid contract address")
	ErrOrderNotPending        = errors.New("order is not pending delivery")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidRate            = errors.New("conversion rate must be positive")
)

type PaymentMethod string

const (
	PaymentETH  PaymentMethod = "eth"
	PaymentUSDC PaymentMethod = "usdc"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentETH, PaymentUSDC:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPayment, s)
}

// NativeDecimals is the precision shown and charged for the native amount.
const NativeDecimals = 6

// NativePrice converts a fiat total at the given rate, rounded half-up to
// NativeDecimals places.
func NativePrice(total, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return total.Div(rate).Round(NativeDecimals), nil
}

type Item struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

// Payload is the order metadata stored off-chain and referenced by the token.
type Payload struct {
	Items         []Item        `json:"items"`
	TotalPrice    json.Number   `json:"totalPrice"`
	Timestamp     string        `json:"timestamp"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	EthPrice      string        `json:"ethPrice"`
	Buyer         string        `json:"buyer"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func NewPayload(items []cart.Item, method PaymentMethod, native decimal.Decimal, buyer string, at time.Time) Payload {
	p := Payload{
		Items:         make([]Item, 0, len(items)),
		TotalPrice:    money(cart.Total(items)),
		Timestamp:     at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		PaymentMethod: method,
		EthPrice:      native.StringFixed(NativeDecimals),
		Buyer:         buyer,
	}
	for _, it := range items {
		p.Items = append(p.Items, Item{
			ID:       it.Product.ID,
			Name:     it.Product.Name,
			Price:    money(it.Product.Price),
			Quantity: it.Quantity,
		})
	}
	return p
}

type ContentURI struct {
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// Purchase is the local ledger entry for a checkout that succeeded on-chain.
type Purchase struct {
	ID            uuid.UUID       `json:"id"`
	Buyer         string          `json:"buyer"`
	TokenID       uint64          `json:"tokenId"`
	TxHash        string          `json:"txHash"`
	ContentURL    string          `json:"contentUrl"`
	Total         decimal.Decimal `json:"total"`
	NativePrice   decimal.Decimal `json:"nativePrice"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Items         []Item          `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func ExplorerTxURL(base, txHash string) string {
	if base == "" || txHash == "" {
		return ""
	}
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/tx/" + txHash
}

// Receipt identifies a mined order transaction and the token it created.
type Receipt struct {
	TxHash  common.Hash
	TokenID uint64
}
