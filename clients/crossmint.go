package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/x402-checkout/types"
	"github.com/vitwit/x402-checkout/utils"
)

const (
	// DefaultCrossmintURL is the production checkout API.
	DefaultCrossmintURL = "https://www.crossmint.com"

	DefaultRequestTimeout = 60 * time.Second

	ordersPath = "/api/2022-06-09/orders"

	// Order payment statuses reported by the checkout API.
	PaymentStatusInsufficientFunds = "crypto-payer-insufficient-funds"
	PaymentStatusAwaitingPayment   = "awaiting-payment"
	PaymentStatusCompleted         = "completed"

	maxResponseBytes = 1 << 20
	maxErrorBodyLen  = 500

	// RequestIDHeader carries the id correlating a call with the caller's logs.
	RequestIDHeader = "X-Request-ID"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID attaches a request id that checkout API calls made with ctx send
// in RequestIDHeader.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

var _ Buyer = (*CrossmintClient)(nil)

// CrossmintClient is a client for the headless checkout API. Orders whose payment
// is prepared as an on-chain transaction are paid by submitting it from the wallet.
type CrossmintClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	wallet     Wallet

	// timeout bounds each API call whose context has no deadline of its own.
	timeout time.Duration
}

type CrossmintOption func(*CrossmintClient)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) CrossmintOption {
	return func(cc *CrossmintClient) {
		if c != nil {
			cc.httpClient = c
		}
	}
}

// WithRequestTimeout bounds API calls made with a context that has no deadline.
// Zero disables the bound. Defaults to DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) CrossmintOption {
	return func(cc *CrossmintClient) {
		if d >= 0 {
			cc.timeout = d
		}
	}
}

// NewCrossmintClient creates a checkout client. wallet may be nil, in which case
// orders that require an on-chain payment fail with SETTLEMENT_FAILED.
func NewCrossmintClient(baseURL, apiKey string, wallet Wallet, opts ...CrossmintOption) *CrossmintClient {
	if baseURL == "" {
		baseURL = DefaultCrossmintURL
	}

	c := &CrossmintClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		wallet:     wallet,
		timeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createOrderResponse struct {
	ClientSecret string    `json:"clientSecret"`
	Order        orderBody `json:"order"`
}

type orderBody struct {
	OrderID string `json:"orderId"`
	Phase   string `json:"phase"`
	Quote   struct {
		Status     string `json:"status"`
		TotalPrice *struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"totalPrice"`
	} `json:"quote"`
	Payment struct {
		Status        string `json:"status"`
		Currency      string `json:"currency"`
		FailureReason *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"failureReason"`
		Preparation *struct {
			Chain                 string `json:"chain"`
			PayerAddress          string `json:"payerAddress"`
			SerializedTransaction string `json:"serializedTransaction"`
		} `json:"preparation"`
	} `json:"payment"`
}


// Buy creates an order for req and, if the API prepared a payment transaction,
// submits it. The request is sent exactly once.
func (c *CrossmintClient) Buy(ctx context.Context, req *types.PurchaseRequest) (*types.Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchase request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, c.baseURL+ordersPath, body)
	if err != nil {
		return nil, err
	}

	var resp createOrderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, types.NewCheckoutError(types.ErrCheckoutFailed, "failed to decode order response", err)
	}
	if resp.Order.OrderID == "" {
		return nil, types.NewCheckoutError(types.ErrCheckoutFailed, "order response has no order id", nil)
	}

	order, err := toOrder(&resp.Order)
	if err != nil {
		return nil, err
	}

	if resp.Order.Payment.Status == PaymentStatusInsufficientFunds {
		return nil, types.NewCheckoutError(types.ErrInsufficientFunds, "insufficient funds", nil).
			WithDetails("orderId", order.OrderID).
			WithDetails("payerAddress", req.Payment.PayerAddress)
	}

	prep := resp.Order.Payment.Preparation
	if prep == nil || prep.SerializedTransaction == "" {
		return order, nil
	}

	if c.wallet == nil {
		return nil, types.NewCheckoutError(types.ErrSettlementFailed, "order requires an on-chain payment but no wallet is configured", nil).
			WithDetails("orderId", order.OrderID)
	}

	call, err := DecodePreparedTransaction(prep.SerializedTransaction)
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrSettlementFailed, "invalid payment transaction", err).
			WithDetails("orderId", order.OrderID)
	}

	hash, err := c.wallet.SendTransaction(ctx, call.To, call.Value, call.Data)
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrSettlementFailed, "failed to submit payment transaction", err).
			WithDetails("orderId", order.OrderID)
	}

	order.TxHash = hash.Hex()
	return order, nil
}

// GetOrder fetches the current state of an order.
func (c *CrossmintClient) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}

	data, err := c.do(ctx, http.MethodGet, c.baseURL+ordersPath+"/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}

	var body orderBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, types.NewCheckoutError(types.ErrCheckoutFailed, "failed to decode order", err)
	}
	return toOrder(&body)
}

func (c *CrossmintClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	// the caller's deadline wins over the client timeout
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(RequestIDHeader, requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrNetworkError, "checkout API unreachable", err).
			WithDetails("requestId", requestID)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrNetworkError, "failed to read checkout API response", err).
			WithDetails("requestId", requestID)
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, parseErrorResponse(httpResp.StatusCode, data).WithDetails("requestId", requestID)
	}
	return data, nil
}

// parseErrorResponse maps a non-2xx response to a CheckoutError. The message is
// taken from the first known reason field of a JSON body, else from the raw body
// when short, else from the status text.
func parseErrorResponse(status int, data []byte) *types.CheckoutError {
	msg := http.StatusText(status)

	var errBody map[string]any
	if err := json.Unmarshal(data, &errBody); err == nil {
		for _, key := range []string{"message", "error", "errorReason"} {
			if reason, ok := errBody[key].(string); ok && reason != "" {
				msg = reason
				break
			}
		}
	} else if s := strings.TrimSpace(string(data)); s != "" && len(s) < maxErrorBodyLen {
		msg = s
	}

	code := types.ErrCheckoutFailed
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = types.ErrUnauthorized
	case strings.Contains(strings.ToLower(msg), "insufficient"):
		code = types.ErrInsufficientFunds
	}

	e := types.NewCheckoutError(code, msg, nil)
	e.StatusCode = status
	return e
}

func toOrder(body *orderBody) (*types.Order, error) {
	order := &types.Order{
		OrderID:       body.OrderID,
		Phase:         body.Phase,
		PaymentStatus: body.Payment.Status,
		Currency:      body.Payment.Currency,
	}

	if tp := body.Quote.TotalPrice; tp != nil && tp.Amount != "" {
		total, err := utils.ValidateAmount(tp.Amount)
		if err != nil {
			return nil, types.NewCheckoutError(types.ErrCheckoutFailed, "invalid order total", err).
				WithDetails("orderId", body.OrderID)
		}
		order.Total = total
		order.Currency = tp.Currency
	}

	return order, nil
}
