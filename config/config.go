// Package config loads the checkout configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vitwit/x402-checkout/clients"
	"github.com/vitwit/x402-checkout/types"
	"github.com/vitwit/x402-checkout/utils"
)

// Environment variables read by Load.
const (
	EnvPrivateKey = "WALLET_PRIVATE_KEY"
	EnvAPIKey     = "CROSSMINT_API_KEY"
	EnvRPCURL     = "RPC_PROVIDER_URL"
	EnvBaseURL    = "CROSSMINT_BASE_URL"
	EnvNetwork    = "NETWORK"
	EnvChainID    = "CHAIN_ID"
	EnvLogLevel   = "LOG_LEVEL"
	EnvTimeout    = "CHECKOUT_TIMEOUT"
	EnvMetrics    = "METRICS_ADDR"
)

const DefaultTimeout = 60 * time.Second

type Config struct {
	Checkout types.CheckoutConfig

	// MetricsAddr is the listen address of the /metrics endpoint, empty to disable.
	MetricsAddr string
}

// apiSettings are the fields needed to talk to the checkout API without a wallet.
type apiSettings struct {
	APIKey  string `validate:"required"`
	BaseURL string `validate:"required,url"`
}

// Load reads the given .env files (".env" when none are given) and then the
// process environment, and validates everything a purchase needs. A missing
// default .env is ignored; a missing named file is an error. Variables already
// set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	cfg, err := read(files)
	if err != nil {
		return nil, err
	}

	network := cfg.Checkout.Network
	if _, ok := types.LookupChain(network); !ok {
		return nil, &types.ConfigError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}

	if err := utils.ValidateStruct(&cfg.Checkout); err != nil {
		return nil, configError("invalid configuration: %v", err)
	}
	if err := cfg.Checkout.Validate(); err != nil {
		return nil, configError("%v", err)
	}

	return cfg, nil
}

// LoadAPI is Load for commands that only call the checkout API. Wallet and
// chain settings are read but not required.
func LoadAPI(files ...string) (*Config, error) {
	cfg, err := read(files)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateStruct(apiSettings{
		APIKey:  cfg.Checkout.APIKey,
		BaseURL: cfg.Checkout.BaseURL,
	}); err != nil {
		return nil, configError("invalid configuration: %v", err)
	}
	if cfg.Checkout.Timeout < 0 {
		return nil, configError("timeout must not be negative, got %v", cfg.Checkout.Timeout)
	}

	return cfg, nil
}

func read(files []string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, configError("failed to load env file: %v", err)
		}
	}

	network := types.Network(getEnv(EnvNetwork, types.NetworkBase.String()))

	var chainID *big.Int
	if chain, ok := types.LookupChain(network); ok {
		chainID = big.NewInt(chain.ChainID)
	}
	if v := os.Getenv(EnvChainID); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, configError("invalid %s: %q", EnvChainID, v)
		}
		chainID = id
	}

	timeout := DefaultTimeout
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, configError("invalid %s: %v", EnvTimeout, err)
		}
		timeout = d
	}

	return &Config{
		Checkout: types.CheckoutConfig{
			PrivateKey: os.Getenv(EnvPrivateKey),
			APIKey:     os.Getenv(EnvAPIKey),
			RPCUrl:     os.Getenv(EnvRPCURL),
			BaseURL:    getEnv(EnvBaseURL, clients.DefaultCrossmintURL),
			ChainID:    chainID,
			Network:    network,
			Timeout:    timeout,
			LogLevel:   getEnv(EnvLogLevel, "info"),
		},
		MetricsAddr: os.Getenv(EnvMetrics),
	}, nil
}

func configError(format string, args ...any) *types.ConfigError {
	return &types.ConfigError{Code: types.ErrConfigError, Message: fmt.Sprintf(format, args...)}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
