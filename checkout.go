// Package checkout buys marketplace products with USDC on Base: it turns a product
// URL and a buyer's shipping details into a purchase request and places it with a
// checkout API, paying from an EVM wallet.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vitwit/x402-checkout/clients"
	"github.com/vitwit/x402-checkout/locator"
	"github.com/vitwit/x402-checkout/logger"
	"github.com/vitwit/x402-checkout/metrics"
	"github.com/vitwit/x402-checkout/purchase"
	"github.com/vitwit/x402-checkout/types"
	"github.com/vitwit/x402-checkout/utils"
)

// Checkout sequences a purchase: locate the product, build the request,
// and place it with the buyer exactly once.
type Checkout struct {
	config *types.CheckoutConfig
	wallet clients.Wallet
	buyer  clients.Buyer

	// optional diagnostics capabilities, nil when absent
	tokens   clients.TokenLookup
	balances clients.BalanceReader

	logger  logger.Logger
	metrics metrics.Recorder
}

// PurchaseInput is the buyer-supplied input of a purchase.
type PurchaseInput struct {
	ProductURL      string
	Contact         types.ContactInfo
	ShippingAddress string
}

// New creates a Checkout from already initialized capabilities.
// Optional capabilities not given as options are taken from the wallet or buyer
// when they implement them.
func New(config *types.CheckoutConfig, wallet clients.Wallet, buyer clients.Buyer, opts ...Option) (*Checkout, error) {
	if config == nil {
		return nil, &types.ConfigError{Code: types.ErrConfigError, Message: "config is required"}
	}
	if wallet == nil || buyer == nil {
		return nil, &types.ConfigError{Code: types.ErrConfigError, Message: "wallet and buyer are required"}
	}

	c := &Checkout{
		config:  config,
		wallet:  wallet,
		buyer:   buyer,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		if tl, ok := buyer.(clients.TokenLookup); ok {
			c.tokens = tl
		}
	}
	if c.balances == nil {
		if br, ok := wallet.(clients.BalanceReader); ok {
			c.balances = br
		}
	}

	return c, nil
}

// Dial initializes the wallet and checkout client described by config.
func Dial(ctx context.Context, config *types.CheckoutConfig, opts ...Option) (*Checkout, error) {
	if config == nil {
		return nil, &types.ConfigError{Code: types.ErrConfigError, Message: "config is required"}
	}
	if err := utils.ValidateStruct(config); err != nil {
		return nil, &types.ConfigError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	if err := config.Validate(); err != nil {
		return nil, &types.ConfigError{Code: types.ErrConfigError, Message: err.Error()}
	}

	wallet, err := clients.InitWallet(ctx, config.PrivateKey, config.RPCUrl, config.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wallet on %s: %w", config.Network, err)
	}

	tokens, err := clients.NewTokenRegistry(config.Network)
	if err != nil {
		wallet.Close()
		return nil, err
	}

	buyer := clients.NewCrossmintClient(config.BaseURL, config.APIKey, wallet,
		clients.WithRequestTimeout(config.Timeout))

	return New(config, wallet, buyer, append([]Option{WithTokenLookup(tokens)}, opts...)...)
}

// Purchase buys the product at in.ProductURL and ships it to in.ShippingAddress.
// The checkout API is called at most once. Its order is returned as is; its error
// keeps its code, message and cause, and a *types.CheckoutError may come back as
// a copy carrying extra Details.
func (c *Checkout) Purchase(ctx context.Context, in PurchaseInput) (*types.Order, error) {
	labels := map[string]string{"chain": c.config.Network.String()}
	c.metrics.IncCounter(metrics.PurchaseAttempt, labels)

	purchaseID := clients.RequestIDFromContext(ctx)
	if purchaseID == "" {
		purchaseID = uuid.NewString()
		ctx = clients.WithRequestID(ctx, purchaseID)
	}
	payer := c.wallet.Address().Hex()

	loc, err := locator.Locate(in.ProductURL)
	if err != nil {
		c.recordFailure(err, labels)
		c.logger.Warn("product locator extraction failed", map[string]any{"purchaseId": purchaseID, "url": in.ProductURL, "error": err})
		return nil, err
	}

	req, err := purchase.BuildPurchaseRequest(in.Contact, in.ShippingAddress, loc, payer)
	if err != nil {
		c.recordFailure(err, labels)
		c.logger.Warn("invalid purchase request", map[string]any{"purchaseId": purchaseID, "locator": loc.String(), "error": err})
		return nil, err
	}

	c.logger.Info("placing order", map[string]any{
		"purchaseId": purchaseID,
		"locator":    loc.String(),
		"payer":      payer,
		"chain":      req.Payment.Chain,
	})

	start := time.Now()
	order, err := c.buyer.Buy(ctx, req)
	c.metrics.ObserveLatency(metrics.CheckoutBuy, time.Since(start), labels)
	if err != nil {
		err = c.enrich(ctx, err, payer)
		c.recordFailure(err, labels)
		c.logger.Error("checkout failed", map[string]any{"purchaseId": purchaseID, "locator": loc.String(), "error": err})
		return nil, err
	}

	c.metrics.IncCounter(metrics.PurchaseSuccess, labels)
	c.logger.Info("order placed", map[string]any{
		"purchaseId": purchaseID,
		"orderId":    order.OrderID,
		"txHash":     order.TxHash,
		"status":     order.PaymentStatus,
	})
	return order, nil
}

// enrich returns err with best-effort token and balance diagnostics added. Only a
// *types.CheckoutError returned directly by the buyer is enriched, and always as a
// copy, so an error value the buyer shares between calls is never written to.
// Lookup failures are logged; err is then returned with whatever was gathered.
func (c *Checkout) enrich(ctx context.Context, err error, payer string) error {
	checkoutErr, ok := err.(*types.CheckoutError)
	if !ok || c.tokens == nil {
		return err
	}

	token, lookupErr := c.tokens.BySymbol("USDC")
	if lookupErr != nil {
		c.logger.Warn("token lookup failed", map[string]any{"error": lookupErr})
		return err
	}
	if addrErr := utils.ValidateEVMAddress(token.Address); addrErr != nil {
		c.logger.Warn("token lookup returned an invalid address", map[string]any{"address": token.Address, "error": addrErr})
		return err
	}

	enriched := checkoutErr.Clone().
		WithDetails("tokenAddress", token.Address).
		WithDetails("tokenDecimals", token.Decimals)

	if c.balances == nil {
		return enriched
	}

	bal, balErr := c.balances.BalanceOf(ctx, common.HexToAddress(token.Address), common.HexToAddress(payer))
	if balErr != nil {
		c.logger.Warn("balance lookup failed", map[string]any{"error": balErr})
		return enriched
	}
	return enriched.WithDetails("payerBalance", utils.FormatAmountFromBigInt(bal, token.Decimals))
}

func (c *Checkout) recordFailure(err error, labels map[string]string) {
	l := map[string]string{"chain": labels["chain"], "reason": ErrorCode(err)}
	c.metrics.IncCounter(metrics.PurchaseFailure, l)
}

// ErrorCode returns the code of a coded error, or "UNKNOWN".
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	var cfgErr *types.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return "UNKNOWN"
}

// Close closes the wallet's RPC connection.
func (c *Checkout) Close() {
	c.wallet.Close()
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":    Version,
		"supported_networks": []string{types.NetworkBase.String()},
		"payment": map[string]string{
			"method":   types.PaymentMethodBase,
			"currency": types.CurrencyUSDC,
			"chain":    types.ChainBase,
		},
		"marketplaces": []string{locator.Marketplace},
	}
}
