package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Seller struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// CryptoPrice is the listed price in tokens. It is advisory only; checkout
// derives the charged amount from the fiat price.
type CryptoPrice struct {
	ETH  decimal.Decimal `json:"eth"`
	USDC decimal.Decimal `json:"usdc"`
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CryptoPrice *CryptoPrice    `json:"cryptoPrice,omitempty"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category"`
	Seller      Seller          `json:"seller"`
	Rating      float64         `json:"rating"`
	Reviews     int             `json:"reviews"`
	Description string          `json:"description"`
	InStock     int             `json:"inStock"`
	Verified    bool            `json:"isVerified"`
}

type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int) (Product, error)
}
