package checkout

import (
	"github.com/vitwit/x402-checkout/clients"
	"github.com/vitwit/x402-checkout/logger"
	"github.com/vitwit/x402-checkout/metrics"
)

type Option func(*Checkout)

func WithLogger(l logger.Logger) Option {
	return func(c *Checkout) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Checkout) {
		c.metrics = r
	}
}

// WithTokenLookup sets the token metadata source used to enrich checkout errors.
func WithTokenLookup(t clients.TokenLookup) Option {
	return func(c *Checkout) {
		c.tokens = t
	}
}

// WithBalanceReader sets the balance source used to enrich checkout errors.
func WithBalanceReader(b clients.BalanceReader) Option {
	return func(c *Checkout) {
		c.balances = b
	}
}
