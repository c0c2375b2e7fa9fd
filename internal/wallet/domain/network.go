package domain

import "fmt"

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// NetworkDescriptor is the wallet_addEthereumChain parameter object.
type NetworkDescriptor struct {
	ChainID           uint64         `json:"-" yaml:"chain_id"`
	ChainName         string         `json:"chainName" yaml:"chain_name"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" yaml:"native_currency"`
	RPCURLs           []string       `json:"rpcUrls" yaml:"rpc_urls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls" yaml:"block_explorer_urls"`
}

type addChainParams struct {
	ChainID string `json:"chainId"`
	NetworkDescriptor
}

// AddChainParams renders the descriptor with its hex chain id.
func (n NetworkDescriptor) AddChainParams() any {
	return addChainParams{ChainID: HexChainID(n.ChainID), NetworkDescriptor: n}
}

type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

func HexChainID(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}

// Polygon is the built-in descriptor for Polygon PoS mainnet.
var Polygon = NetworkDescriptor{
	ChainID:   137,
	ChainName: "Polygon Mainnet",
	NativeCurrency: NativeCurrency{
		Name:     "MATIC",
		Symbol:   "MATIC",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://polygon-rpc.com/"},
	BlockExplorerURLs: []string{"https://polygonscan.com/"},
}

var Amoy = NetworkDescriptor{
	ChainID:   80002,
	ChainName: "Polygon Amoy Testnet",
	NativeCurrency: NativeCurrency{
		Name:     "POL",
		Symbol:   "POL",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://rpc-amoy.polygon.technology/"},
	BlockExplorerURLs: []string{"https://amoy.polygonscan.com/"},
}

// KnownNetworks are the descriptors available for wallet_addEthereumChain.
var KnownNetworks = map[uint64]NetworkDescriptor{
	Polygon.ChainID: Polygon,
	Amoy.ChainID:    Amoy,
}
