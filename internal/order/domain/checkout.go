package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrCheckoutBusy      = errors.New("checkout is already processing")
)

type Step string

const (
	StepCart    Step = "cart"
	StepPayment Step = "payment"
	StepConfirm Step = "confirm"
	StepSuccess Step = "success"
)

var steps = map[Step][]Step{
	StepCart:    {StepPayment},
	StepPayment: {StepConfirm, StepCart},
	StepConfirm: {StepSuccess, StepPayment},
}

func CanMove(from, to Step) bool {
	for _, s := range steps[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CheckMove(from, to Step) error {
	if !CanMove(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Previous is the step a backward move leads to, or "" for steps that cannot
// move back.
func (s Step) Previous() Step {
	switch s {
	case StepPayment:
		return StepCart
	case StepConfirm:
		return StepPayment
	}
	return ""
}

// CheckoutState lives for one checkout session.
type CheckoutState struct {
	ID            string          `json:"id"`
	Step          Step            `json:"step"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	NativePrice   decimal.Decimal `json:"nativePrice"`
	ContentURL    string          `json:"contentUrl,omitempty"`
	TxHash        string          `json:"txHash,omitempty"`
	TokenID       uint64          `json:"tokenId,omitempty"`
	ExplorerURL   string          `json:"explorerUrl,omitempty"`
	Processing    bool            `json:"processing"`
}

func NewCheckoutState(id string) CheckoutState {
	return CheckoutState{ID: id, Step: StepCart, PaymentMethod: PaymentETH}
}
