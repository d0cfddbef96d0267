package types

// Network represents a supported blockchain network
type Network string

// NetworkBase is the only network purchases settle on. The purchase request names
// chain "base" and the Base mainnet USDC contract, so the wallet must be on it too.
const NetworkBase Network = "base"

// ChainConfig holds the USDC deployment for a network.
type ChainConfig struct {
	Network     Network
	ChainID     int64
	USDCAddress string
	Decimals    int
}

// BaseMainnet is the Base mainnet USDC deployment.
var BaseMainnet = ChainConfig{
	Network:     NetworkBase,
	ChainID:     8453,
	USDCAddress: USDCBaseAddress,
	Decimals:    6,
}

// USDCBaseAddress is the token contract the checkout pays with.
const USDCBaseAddress = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

// LookupChain returns the chain configuration for a network.
func LookupChain(n Network) (ChainConfig, bool) {
	switch n {
	case NetworkBase:
		return BaseMainnet, true
	default:
		return ChainConfig{}, false
	}
}

func (n Network) String() string {
	return string(n)
}
