package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ProductReference is the 10 character catalog identifier of a marketplace product
// (uppercase letters and digits), e.g. "B08SVZ775L".
type ProductReference string

func (r ProductReference) String() string {
	return string(r)
}

// ProductLocator identifies a purchasable item to the checkout API,
// in the form "<marketplace>:<reference>".
type ProductLocator string

func (l ProductLocator) String() string {
	return string(l)
}

// Payment constants for USDC settlement on Base.
const (
	PaymentMethodBase = "base"
	CurrencyUSDC      = "usdc"
	ChainBase         = "base"
	CountryUS         = "US"
)

// ContactInfo is the buyer contact supplied by the caller.
type ContactInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// PostalAddress is a US shipping address.
type PostalAddress struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Recipient is where and to whom the order is delivered.
type Recipient struct {
	Email           string        `json:"email" validate:"required"`
	PhysicalAddress PostalAddress `json:"physicalAddress" validate:"required"`
}

// Payment describes how the order is paid.
type Payment struct {
	Method       string `json:"method" validate:"required"`
	Currency     string `json:"currency" validate:"required"`
	PayerAddress string `json:"payerAddress" validate:"required,eth_addr"`
	Chain        string `json:"chain" validate:"required"`
	TokenAddress string `json:"tokenAddress" validate:"required,eth_addr"`
}

// LineItem is a single product in an order.
type LineItem struct {
	ProductLocator ProductLocator `json:"productLocator" validate:"required"`
}

// PurchaseRequest is the payload sent to the checkout API.
// It always holds exactly one line item.
type PurchaseRequest struct {
	Recipient Recipient  `json:"recipient" validate:"required"`
	Payment   Payment    `json:"payment" validate:"required"`
	LineItems []LineItem `json:"lineItems" validate:"len=1,dive"`
}

// Locator returns the product locator of the single line item.
func (r *PurchaseRequest) Locator() ProductLocator {
	if len(r.LineItems) == 0 {
		return ""
	}
	return r.LineItems[0].ProductLocator
}

// Order is the checkout API's answer to a purchase request.
type Order struct {
	OrderID string `json:"orderId"`
	Phase   string `json:"phase,omitempty"`

	// PaymentStatus is the settlement state reported by the checkout API.
	PaymentStatus string `json:"paymentStatus,omitempty"`

	// Total is the quoted amount in whole currency units.
	Total    *decimal.Decimal `json:"total,omitempty"`
	Currency string           `json:"currency,omitempty"`

	// TxHash is set when the payment transaction was submitted on-chain.
	TxHash string `json:"txHash,omitempty"`
}

// TokenStandard represents different token standards
type TokenStandard string

const TokenStandardERC20 TokenStandard = "erc20"

// TokenInfo contains information about a payment token
type TokenInfo struct {
	Standard TokenStandard `json:"standard" validate:"required"`
	Address  string        `json:"address,omitempty"` // Contract address for tokens, empty for native
	Symbol   string        `json:"symbol" validate:"required"`
	Decimals int           `json:"decimals" validate:"required"`
	Name     string        `json:"name,omitempty"`
	ChainID  string        `json:"chainId,omitempty"`
}

// CheckoutConfig contains the configuration consumed by the orchestrator.
type CheckoutConfig struct {
	PrivateKey string        `json:"-" validate:"required,hexadecimal"`
	APIKey     string        `json:"-" validate:"required"`
	RPCUrl     string        `json:"rpcUrl" validate:"required,url"`
	BaseURL    string        `json:"baseUrl" validate:"required,url"`
	ChainID    *big.Int      `json:"chainId" validate:"required"`
	Network    Network       `json:"network" validate:"required"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	LogLevel   string        `json:"logLevel,omitempty"`
}

// Validate checks the fields the struct tags cannot express.
func (c *CheckoutConfig) Validate() error {
	chain, ok := LookupChain(c.Network)
	if !ok {
		return fmt.Errorf("unsupported network: %s", c.Network)
	}
	if c.ChainID == nil || c.ChainID.Int64() != chain.ChainID {
		return fmt.Errorf("chain id %v does not match network %s (%d)", c.ChainID, c.Network, chain.ChainID)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}
