package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	checkout "github.com/vitwit/x402-checkout"
	"github.com/vitwit/x402-checkout/clients"
	"github.com/vitwit/x402-checkout/config"
	"github.com/vitwit/x402-checkout/logger"
	"github.com/vitwit/x402-checkout/metrics"
	"github.com/vitwit/x402-checkout/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "buy":
		err = runBuy(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "version":
		err = printJSON(checkout.GetVersion())
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", checkout.ErrorCode(err), err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("checkout - buy marketplace products with USDC on Base")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  checkout buy [flags]     - Place an order for a product URL")
	fmt.Println("  checkout status [flags]  - Show the state of an order")
	fmt.Println("  checkout version         - Show version information")
	fmt.Println()
	fmt.Println("Configuration is read from the environment and an optional .env file.")
}

func runBuy(args []string) error {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	productURL := fs.String("url", "", "Product URL (required)")
	name := fs.String("name", "", "Buyer name (required)")
	email := fs.String("email", "", "Buyer email (required)")
	address := fs.String("address", "", `Shipping address, "Name, Street, City, State ZIP, Country" (required)`)
	envFile := fs.String("env", "", "Path to a .env file")
	_ = fs.Parse(args)

	if *productURL == "" || *name == "" || *email == "" || *address == "" {
		fmt.Println("Error: --url, --name, --email and --address are required")
		fmt.Println()
		fs.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(config.Load, *envFile)
	if err != nil {
		return err
	}

	log := logger.NewZapLogger(cfg.Checkout.LogLevel)
	defer syncLogger(log)

	opts := []checkout.Option{checkout.WithLogger(log)}
	if cfg.MetricsAddr != "" {
		rec, stop, err := serveMetrics(cfg.MetricsAddr, log)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, checkout.WithMetrics(rec))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := checkout.Dial(ctx, &cfg.Checkout, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	order, err := c.Purchase(ctx, checkout.PurchaseInput{
		ProductURL:      *productURL,
		Contact:         types.ContactInfo{Name: *name, Email: *email},
		ShippingAddress: *address,
	})
	if err != nil {
		var checkoutErr *types.CheckoutError
		if errors.As(err, &checkoutErr) && len(checkoutErr.Details) > 0 {
			_ = printJSON(checkoutErr)
		}
		return err
	}

	return printJSON(order)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	orderID := fs.String("order", "", "Order id (required)")
	envFile := fs.String("env", "", "Path to a .env file")
	_ = fs.Parse(args)

	if *orderID == "" {
		fmt.Println("Error: --order is required")
		fmt.Println()
		fs.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(config.LoadAPI, *envFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// reading an order needs no wallet
	client := clients.NewCrossmintClient(cfg.Checkout.BaseURL, cfg.Checkout.APIKey, nil,
		clients.WithRequestTimeout(cfg.Checkout.Timeout))

	order, err := client.GetOrder(ctx, *orderID)
	if err != nil {
		return err
	}
	return printJSON(order)
}

func loadConfig(load func(...string) (*config.Config, error), envFile string) (*config.Config, error) {
	if envFile != "" {
		return load(envFile)
	}
	return load()
}

// serveMetrics exposes a fresh registry on addr/metrics until stop is called.
func serveMetrics(addr string, log logger.Logger) (metrics.Recorder, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", map[string]any{"addr": addr, "error": err})
		}
	}()
	log.Info("serving metrics", map[string]any{"addr": addr})

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return rec, stop, nil
}

func syncLogger(l logger.Logger) {
	if s, ok := l.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
