package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// orderABI is the subset of the order-tracking contract this service calls.
const orderABI = `[
  {"type":"function","name":"placeOrder","stateMutability":"payable",
   "inputs":[{"name":"ipfsURI","type":"string"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"confirmDelivery","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burnOrder","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"orders","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"buyer","type":"address"},{"name":"ipfsURI","type":"string"},
              {"name":"amount","type":"uint256"},{"name":"delivered","type":"bool"},
              {"name":"burned","type":"bool"}]},
  {"type":"function","name":"uri","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"currentTokenId","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"OrderPlaced","anonymous":false,
   "inputs":[{"name":"tokenId","type":"uint256","indexed":true},
             {"name":"buyer","type":"address","indexed":true},
             {"name":"ipfsURI","type":"string","indexed":false},
             {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"OrderMinted","anonymous":false,
   "inputs":[{"name":"tokenId","type":"uint256","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"ipfsURI","type":"string","indexed":false}]},
  {"type":"event","name":"TransferSingle","anonymous":false,
   "inputs":[{"name":"operator","type":"address","indexed":true},
             {"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"id","type":"uint256","indexed":false},
             {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"DeliveryConfirmed","anonymous":false,
   "inputs":[{"name":"tokenId","type":"uint256","indexed":true}]}
]`

const (
	methodPlaceOrder      = "placeOrder"
	methodConfirmDelivery = "confirmDelivery"
	methodBurnOrder       = "burnOrder"
	methodBalanceOf       = "balanceOf"
	methodOrders          = "orders"
	methodURI             = "uri"
	methodCurrentTokenID  = "currentTokenId"

	eventOrderPlaced    = "OrderPlaced"
	eventOrderMinted    = "OrderMinted"
	eventTransferSingle = "TransferSingle"
)

var contractABI = mustParseABI(orderABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
