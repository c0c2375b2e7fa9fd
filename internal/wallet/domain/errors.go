package domain

import "errors"

type codedError interface {
	ErrorCode() int
}

// ProviderErrorCode extracts the numeric code from a provider error. It
// matches go-ethereum's rpc.Error as well as any error exposing ErrorCode.
func ProviderErrorCode(err error) (int, bool) {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.ErrorCode(), true
	}
	return 0, false
}

// ProviderError is a coded error returned by a wallet provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string  { return e.Message }
func (e *ProviderError) ErrorCode() int { return e.Code }
