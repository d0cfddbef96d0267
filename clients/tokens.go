package clients

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitwit/x402-checkout/types"
)

var _ TokenLookup = (*TokenRegistry)(nil)

// TokenRegistry is a static token table for a single network.
type TokenRegistry struct {
	network types.Network
	tokens  map[string]types.TokenInfo
}

// NewTokenRegistry returns the known tokens of network.
func NewTokenRegistry(network types.Network) (*TokenRegistry, error) {
	chain, ok := types.LookupChain(network)
	if !ok {
		return nil, &types.ConfigError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}

	return &TokenRegistry{
		network: network,
		tokens: map[string]types.TokenInfo{
			"USDC": {
				Standard: types.TokenStandardERC20,
				Address:  chain.USDCAddress,
				Symbol:   "USDC",
				Decimals: chain.Decimals,
				Name:     "USD Coin",
				ChainID:  strconv.FormatInt(chain.ChainID, 10),
			},
		},
	}, nil
}

// BySymbol looks a token up by its symbol, case-insensitively.
func (r *TokenRegistry) BySymbol(symbol string) (*types.TokenInfo, error) {
	info, ok := r.tokens[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("token %q not known on %s", symbol, r.network)
	}
	return &info, nil
}
