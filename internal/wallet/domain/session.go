package domain

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

type ProviderEvent string

const (
	EventAccountsChanged ProviderEvent = "accountsChanged"
	EventChainChanged    ProviderEvent = "chainChanged"
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	CodeUserRejected = 4001
	CodeUnknownChain = 4902
)

var (
	ErrProviderUnavailable = errors.New("no wallet provider detected")
	ErrNoAccountsGranted   = errors.New("no accounts granted by wallet")
	ErrNetworkMismatch     = errors.New("wallet is on the wrong network")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrConnectInProgress   = errors.New("wallet connection already in progress")
)

var ErrInvalidTransition = errors.New("invalid session transition")

// Session is a snapshot of the wallet connection. Account is empty whenever
// Status is not connected.
type Session struct {
	Status  Status `json:"status"`
	Account string `json:"account"`
	ChainID uint64 `json:"chainId"`
	Balance string `json:"balance"`
	Name    string `json:"name,omitempty"`
}

func Disconnected() Session {
	return Session{Status: StatusDisconnected, Balance: "0"}
}

func (s Session) Connected() bool { return s.Status == StatusConnected }

var transitions = map[Status][]Status{
	StatusDisconnected: {StatusConnecting},
	StatusConnecting:   {StatusConnected, StatusDisconnected},
	StatusConnected:    {StatusDisconnected},
}

// CanTransition reports whether from -> to is a valid session transition.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Info is the display view of a connected wallet.
type Info struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Network string `json:"network"`
	Name    string `json:"name,omitempty"`
}

func NetworkName(chainID uint64) string {
	switch chainID {
	case 1:
		return "Ethereum"
	case 137:
		return "Polygon"
	case 56:
		return "BNB Chain"
	default:
		return "Unknown"
	}
}
