package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cart "github.com/dmehra2102/Cartified/internal/cart/domain"
	"github.com/dmehra2102/Cartified/internal/order/domain"
	wallet "github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutConfig struct {
	// Rate is the fiat price of one native token.
	Rate        decimal.Decimal
	ExplorerURL string
	Now         func() time.Time
}

// Checkout drives one checkout session at a time through
// cart -> payment -> confirm -> success.
type Checkout struct {
	log      *slog.Logger
	cart     Cart
	wallet   Wallet
	uploader Uploader
	chain    OrderChain
	ledger   Ledger
	cfg      CheckoutConfig

	mu         sync.Mutex
	state      domain.CheckoutState
	processing bool
}

func NewCheckout(log *slog.Logger, c Cart, w Wallet, up Uploader, oc OrderChain, ledger Ledger, cfg CheckoutConfig) *Checkout {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Checkout{
		log:      log,
		cart:     c,
		wallet:   w,
		uploader: up,
		chain:    oc,
		ledger:   ledger,
		cfg:      cfg,
		state:    domain.NewCheckoutState(uuid.NewString()),
	}
}

// State returns the session with totals derived from the current cart.
func (c *Checkout) State() domain.CheckoutState {
	c.mu.Lock()
	st := c.state
	st.Processing = c.processing
	c.mu.Unlock()

	if st.Step != domain.StepSuccess {
		st.Total = cart.Total(c.cart.Items())
		st.NativePrice, _ = domain.NativePrice(st.Total, c.cfg.Rate)
	}
	return st
}

// Reset discards the current session and starts a new one at the cart step.
func (c *Checkout) Reset() (domain.CheckoutState, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return domain.CheckoutState{}, domain.ErrCheckoutBusy
	}
	c.state = domain.NewCheckoutState(uuid.NewString())
	c.mu.Unlock()
	return c.State(), nil
}

func (c *Checkout) SelectPayment(method string) error {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return domain.ErrCheckoutBusy
	}
	if c.state.Step == domain.StepSuccess {
		return fmt.Errorf("%w: checkout already completed", domain.ErrInvalidTransition)
	}
	c.state.PaymentMethod = m
	return nil
}

func (c *Checkout) Back() (domain.CheckoutState, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return domain.CheckoutState{}, domain.ErrCheckoutBusy
	}
	to := c.state.Step.Previous()
	if err := domain.CheckMove(c.state.Step, to); err != nil {
		c.mu.Unlock()
		return domain.CheckoutState{}, err
	}
	c.state.Step = to
	c.mu.Unlock()
	return c.State(), nil
}

// Next validates the current step and advances. Leaving confirm uploads the
// order, submits it on chain and clears the cart. Any failure keeps the
// session at confirm with the cart intact.
func (c *Checkout) Next(ctx context.Context) (domain.CheckoutState, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return domain.CheckoutState{}, domain.ErrCheckoutBusy
	}

	if c.state.Step != domain.StepConfirm {
		err := c.advanceLocked()
		c.mu.Unlock()
		if err != nil {
			return domain.CheckoutState{}, err
		}
		return c.State(), nil
	}

	c.processing = true
	st := c.state
	c.mu.Unlock()

	placed, err := c.place(ctx, st)

	c.mu.Lock()
	c.processing = false
	if err == nil {
		c.state = placed
	}
	c.mu.Unlock()
	if err != nil {
		return domain.CheckoutState{}, err
	}
	return c.State(), nil
}

func (c *Checkout) advanceLocked() error {
	switch c.state.Step {
	case domain.StepCart:
		if c.cart.Empty() {
			return domain.ErrEmptyCart
		}
		if !c.wallet.Connected() {
			return wallet.ErrWalletNotConnected
		}
		c.state.Step = domain.StepPayment
	case domain.StepPayment:
		if _, err := domain.ParsePaymentMethod(string(c.state.PaymentMethod)); err != nil {
			return err
		}
		c.state.Step = domain.StepConfirm
	default:
		return fmt.Errorf("%w: %s is final", domain.ErrInvalidTransition, c.state.Step)
	}
	return nil
}

func (c *Checkout) place(ctx context.Context, st domain.CheckoutState) (domain.CheckoutState, error) {
	if !c.wallet.Connected() {
		return st, wallet.ErrWalletNotConnected
	}
	items := c.cart.Items()
	if len(items) == 0 {
		return st, domain.ErrEmptyCart
	}

	total := cart.Total(items)
	native, err := domain.NativePrice(total, c.cfg.Rate)
	if err != nil {
		return st, err
	}
	buyer := c.wallet.Account()
	payload := domain.NewPayload(items, st.PaymentMethod, native, buyer.Hex(), c.cfg.Now())

	uri, err := c.uploader.Upload(ctx, payload)
	if err != nil {
		c.log.Error("order upload failed", "checkout_id", st.ID, "err", err)
		return st, err
	}

	rcpt, err := c.chain.SubmitOrder(ctx, uri.URL, native)
	if err != nil {
		c.log.Error("order submit failed", "checkout_id", st.ID, "content_url", uri.URL, "err", err)
		return st, err
	}

	c.cart.Clear()

	st.Step = domain.StepSuccess
	st.Total = total
	st.NativePrice = native
	st.ContentURL = uri.URL
	st.TxHash = rcpt.TxHash.Hex()
	st.TokenID = rcpt.TokenID
	st.ExplorerURL = domain.ExplorerTxURL(c.cfg.ExplorerURL, st.TxHash)

	purchase := domain.Purchase{
		ID:            uuid.New(),
		Buyer:         buyer.Hex(),
		TokenID:       rcpt.TokenID,
		TxHash:        st.TxHash,
		ContentURL:    uri.URL,
		Total:         total,
		NativePrice:   native,
		PaymentMethod: st.PaymentMethod,
		Items:         payload.Items,
		CreatedAt:     c.cfg.Now().UTC(),
	}
	if c.ledger != nil {
		if err := c.ledger.RecordPurchase(context.WithoutCancel(ctx), purchase); err != nil {
			c.log.Error("record purchase failed", "checkout_id", st.ID, "token_id", rcpt.TokenID, "err", err)
		}
	}

	c.log.Info("checkout complete", "checkout_id", st.ID, "token_id", rcpt.TokenID, "tx_hash", st.TxHash)
	return st, nil
}
