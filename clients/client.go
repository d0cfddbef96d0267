package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/x402-checkout/types"
)

// Buyer places a purchase request with the checkout API.
type Buyer interface {
	Buy(ctx context.Context, req *types.PurchaseRequest) (*types.Order, error)
}

// Wallet is the payer account: its address and the ability to submit
// transactions on the chain it was initialized for.
type Wallet interface {
	Address() common.Address
	ChainID() *big.Int
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
	Close()
}

// TokenLookup resolves token metadata by symbol. Optional; used for diagnostics.
type TokenLookup interface {
	BySymbol(symbol string) (*types.TokenInfo, error)
}

// BalanceReader reads token balances. Optional; used for diagnostics.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}
