package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is the on-chain state of one order token.
type OrderRecord struct {
	TokenID   uint64          `json:"tokenId"`
	URI       string          `json:"uri"`
	Delivered bool            `json:"delivered"`
	Burned    bool            `json:"burned"`
	Amount    decimal.Decimal `json:"amount"`
	// DetailsUnavailable marks a record whose balance was found but whose
	// order details could not be read.
	DetailsUnavailable bool `json:"detailsUnavailable,omitempty"`
}

func (r OrderRecord) Pending() bool {
	return !r.Delivered && !r.Burned
}

func Pending(records []OrderRecord) []OrderRecord {
	out := make([]OrderRecord, 0, len(records))
	for _, r := range records {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

const QRTypeDeliveryConfirmation = "delivery_confirmation"

// QRPayload is read by the delivery agent's scanner.
type QRPayload struct {
	Type            string `json:"type"`
	TokenID         string `json:"tokenId"`
	ContractAddress string `json:"contractAddress"`
	Timestamp       int64  `json:"timestamp"`
	Network         string `json:"network"`
}

func NewQRPayload(tokenID uint64, contract, network string, at time.Time) QRPayload {
	return QRPayload{
		Type:            QRTypeDeliveryConfirmation,
		TokenID:         strconv.FormatUint(tokenID, 10),
		ContractAddress: contract,
		Timestamp:       at.UnixMilli(),
		Network:         network,
	}
}

func (q QRPayload) Encode() ([]byte, error) {
	return json.Marshal(q)
}
