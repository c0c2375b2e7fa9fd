package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	wallet "github.com/dmehra2102/Cartified/internal/wallet/domain"
)

// classify maps a send or wait failure onto the order error taxonomy. Every
// result matches domain.ErrTransactionFailed and wraps the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch code, ok := wallet.ProviderErrorCode(err); {
	case ok && code == wallet.CodeUserRejected:
		kind = domain.ErrTransactionRejected
	case errors.Is(err, wallet.ErrNetworkMismatch):
		kind = wallet.ErrNetworkMismatch
	case strings.Contains(strings.ToLower(err.Error()), "insufficient funds"):
		kind = domain.ErrInsufficientFunds
	}
	if kind == nil || errors.Is(err, kind) {
		return fmt.Errorf("%w: %w", domain.ErrTransactionFailed, err)
	}
	return fmt.Errorf("%w: %w: %w", domain.ErrTransactionFailed, kind, err)
}
