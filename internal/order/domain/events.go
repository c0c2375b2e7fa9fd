package domain

const (
	EventOrderPlaced       = "OrderPlaced"
	EventDeliveryConfirmed = "DeliveryConfirmed"
	EventOrderBurned       = "OrderBurned"
)

type OrderPlaced struct {
	PurchaseID    string        `json:"purchaseId"`
	Buyer         string        `json:"buyer"`
	TokenID       uint64        `json:"tokenId"`
	TxHash        string        `json:"txHash"`
	ContentURL    string        `json:"contentUrl"`
	TotalPrice    string        `json:"totalPrice"`
	NativePrice   string        `json:"nativePrice"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

type DeliveryConfirmed struct {
	TokenID uint64 `json:"tokenId"`
	TxHash  string `json:"txHash"`
}

type OrderBurned struct {
	TokenID uint64 `json:"tokenId"`
	TxHash  string `json:"txHash"`
}
