package metrics

import "time"

// Event and operation names recorded by the checkout orchestrator.
const (
	PurchaseAttempt = "purchase_attempt"
	PurchaseSuccess = "purchase_success"
	PurchaseFailure = "purchase_failure"
	CheckoutBuy     = "checkout_buy"
)

// Recorder receives counters and latencies. Labels used: "chain", "reason".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
