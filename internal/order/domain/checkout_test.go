package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckMove(t *testing.T) {
	all := []Step{StepCart, StepPayment, StepConfirm, StepSuccess}
	allowed := map[[2]Step]bool{
		{StepCart, StepPayment}:    true,
		{StepPayment, StepConfirm}: true,
		{StepConfirm, StepSuccess}: true,
		{StepPayment, StepCart}:    true,
		{StepConfirm, StepPayment}: true,
	}

	for _, from := range all {
		for _, to := range all {
			err := CheckMove(from, to)
			if allowed[[2]Step{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestStepPrevious(t *testing.T) {
	assert.Equal(t, StepCart, StepPayment.Previous())
	assert.Equal(t, StepPayment, StepConfirm.Previous())
	assert.Equal(t, Step(""), StepCart.Previous())
	assert.Equal(t, Step(""), StepSuccess.Previous())
}

func TestPendingRecords(t *testing.T) {
	records := []OrderRecord{
		{TokenID: 1},
		{TokenID: 2, Delivered: true},
		{TokenID: 3, Burned: true},
		{TokenID: 4, DetailsUnavailable: true},
	}
	got := Pending(records)
	assert.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].TokenID)
	assert.Equal(t, uint64(4), got[1].TokenID)
}

func TestQRPayload(t *testing.T) {
	at := time.UnixMilli(1714566600123)
	q := NewQRPayload(7, "0xB524a7d13A835aDb68c3C41de7a9609A2208a1C7", "polygon", at)

	raw, err := q.Encode()
	assert.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "delivery_confirmation",
		"tokenId": "7",
		"contractAddress": "0xB524a7d13A835aDb68c3C41de7a9609A2208a1C7",
		"timestamp": 1714566600123,
		"network": "polygon"
	}`, string(raw))
}
