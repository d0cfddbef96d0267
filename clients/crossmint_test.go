package clients

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-checkout/types"
)

type fakeWallet struct {
	calls  int
	to     common.Address
	value  *big.Int
	data   []byte
	hash   common.Hash
	err    error
	closed bool
}

func (f *fakeWallet) Address() common.Address { return common.HexToAddress(testAddress) }
func (f *fakeWallet) ChainID() *big.Int       { return big.NewInt(8453) }
func (f *fakeWallet) Close()                  { f.closed = true }

func (f *fakeWallet) SendTransaction(_ context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	f.calls++
	f.to, f.value, f.data = to, value, data
	return f.hash, f.err
}

func testPurchaseRequest() *types.PurchaseRequest {
	return &types.PurchaseRequest{
		Recipient: types.Recipient{
			Email: "joyce@example.com",
			PhysicalAddress: types.PostalAddress{
				Name:       "Joyce Lee",
				Line1:      "1 SE 3rd Ave",
				City:       "Miami",
				State:      "FL",
				PostalCode: "33131",
				Country:    "US",
			},
		},
		Payment: types.Payment{
			Method:       types.PaymentMethodBase,
			Currency:     types.CurrencyUSDC,
			PayerAddress: testAddress,
			Chain:        types.ChainBase,
			TokenAddress: types.USDCBaseAddress,
		},
		LineItems: []types.LineItem{{ProductLocator: "amazon:B08SVZ775L"}},
	}
}

func orderJSON(status, serializedTx string) map[string]any {
	payment := map[string]any{
		"status":   status,
		"currency": "usdc",
	}
	if serializedTx != "" {
		payment["preparation"] = map[string]any{
			"chain":                 "base",
			"payerAddress":          testAddress,
			"serializedTransaction": serializedTx,
		}
	}
	return map[string]any{
		"orderId": "b2959ca5-65e4-466a-bd26-1bd05cb4f837",
		"phase":   "payment",
		"quote": map[string]any{
			"status":     "valid",
			"totalPrice": map[string]any{"amount": "24.99", "currency": "usdc"},
		},
		"payment": payment,
	}
}

func TestCrossmintClient_Buy(t *testing.T) {
	serialized := unsignedDynamicFeeTx(t, &testTo)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/2022-06-09/orders", r.URL.Path)
		assert.Equal(t, "sk_test", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body types.PurchaseRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, types.ProductLocator("amazon:B08SVZ775L"), body.Locator())
		assert.Equal(t, "usdc", body.Payment.Currency)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"clientSecret": "secret",
			"order":        orderJSON(PaymentStatusAwaitingPayment, serialized),
		})
	}))
	defer server.Close()

	wallet := &fakeWallet{hash: common.HexToHash("0xabc")}
	client := NewCrossmintClient(server.URL+"/", "sk_test", wallet)

	order, err := client.Buy(context.Background(), testPurchaseRequest())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "b2959ca5-65e4-466a-bd26-1bd05cb4f837", order.OrderID)
	assert.Equal(t, "payment", order.Phase)
	assert.Equal(t, PaymentStatusAwaitingPayment, order.PaymentStatus)
	require.NotNil(t, order.Total)
	assert.Equal(t, "24.99", order.Total.String())
	assert.Equal(t, "usdc", order.Currency)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), order.TxHash)

	assert.Equal(t, 1, wallet.calls)
	assert.Equal(t, testTo, wallet.to)
	assert.Equal(t, testData, wallet.data)
}

func TestCrossmintClient_Buy_NoPreparation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"order": orderJSON(PaymentStatusCompleted, "")})
	}))
	defer server.Close()

	wallet := &fakeWallet{}
	order, err := NewCrossmintClient(server.URL, "sk_test", wallet).Buy(context.Background(), testPurchaseRequest())
	require.NoError(t, err)
	assert.Empty(t, order.TxHash)
	assert.Equal(t, 0, wallet.calls)
}

func TestCrossmintClient_Buy_InsufficientFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"order": orderJSON(PaymentStatusInsufficientFunds, "")})
	}))
	defer server.Close()

	wallet := &fakeWallet{}
	_, err := NewCrossmintClient(server.URL, "sk_test", wallet).Buy(context.Background(), testPurchaseRequest())

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrInsufficientFunds, checkoutErr.Code())
	assert.Equal(t, "b2959ca5-65e4-466a-bd26-1bd05cb4f837", checkoutErr.Details["orderId"])
	assert.Equal(t, 0, wallet.calls)
}

func TestCrossmintClient_Buy_APIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":true,"message":"Invalid API key"}`, types.ErrUnauthorized, "Invalid API key"},
		{"forbidden", http.StatusForbidden, ``, types.ErrUnauthorized, "Forbidden"},
		{"insufficient funds", http.StatusBadRequest, `{"error":true,"message":"Insufficient funds for payer"}`, types.ErrInsufficientFunds, "Insufficient funds for payer"},
		{"bad request", http.StatusBadRequest, `{"error":true,"message":"lineItems: invalid product locator"}`, types.ErrCheckoutFailed, "lineItems: invalid product locator"},
		{"plain text", http.StatusInternalServerError, `upstream exploded`, types.ErrCheckoutFailed, "upstream exploded"},
		{"error string", http.StatusBadRequest, `{"error":"payer has insufficient USDC"}`, types.ErrInsufficientFunds, "payer has insufficient USDC"},
		{"error reason", http.StatusUnprocessableEntity, `{"errorReason":"quote expired"}`, types.ErrCheckoutFailed, "quote expired"},
		{"json without reason", http.StatusBadGateway, `{"code":7}`, types.ErrCheckoutFailed, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewCrossmintClient(server.URL, "sk_test", &fakeWallet{}).Buy(context.Background(), testPurchaseRequest())

			var checkoutErr *types.CheckoutError
			require.ErrorAs(t, err, &checkoutErr)
			assert.Equal(t, tt.wantCode, checkoutErr.Code())
			assert.Equal(t, tt.wantMsg, checkoutErr.Message)
			assert.Equal(t, tt.status, checkoutErr.StatusCode)
			// no retries
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}

func TestCrossmintClient_Buy_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewCrossmintClient(url, "sk_test", nil).Buy(context.Background(), testPurchaseRequest())

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrNetworkError, checkoutErr.Code())
	assert.NotNil(t, errors.Unwrap(checkoutErr))
}

func TestCrossmintClient_Buy_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewCrossmintClient(server.URL, "sk_test", nil, WithRequestTimeout(20*time.Millisecond))
	_, err := client.Buy(context.Background(), testPurchaseRequest())

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrNetworkError, checkoutErr.Code())
}

func TestCrossmintClient_Buy_SettlementFailures(t *testing.T) {
	serialized := unsignedDynamicFeeTx(t, &testTo)

	newServer := func(tx string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"order": orderJSON(PaymentStatusAwaitingPayment, tx)})
		}))
	}

	t.Run("no wallet", func(t *testing.T) {
		server := newServer(serialized)
		defer server.Close()

		_, err := NewCrossmintClient(server.URL, "sk_test", nil).Buy(context.Background(), testPurchaseRequest())
		var checkoutErr *types.CheckoutError
		require.ErrorAs(t, err, &checkoutErr)
		assert.Equal(t, types.ErrSettlementFailed, checkoutErr.Code())
	})

	t.Run("bad transaction", func(t *testing.T) {
		server := newServer("0xdeadbeef")
		defer server.Close()

		wallet := &fakeWallet{}
		_, err := NewCrossmintClient(server.URL, "sk_test", wallet).Buy(context.Background(), testPurchaseRequest())
		var checkoutErr *types.CheckoutError
		require.ErrorAs(t, err, &checkoutErr)
		assert.Equal(t, types.ErrSettlementFailed, checkoutErr.Code())
		assert.Equal(t, 0, wallet.calls)
	})

	t.Run("send fails", func(t *testing.T) {
		server := newServer(serialized)
		defer server.Close()

		sendErr := errors.New("insufficient funds for gas * price + value")
		wallet := &fakeWallet{err: sendErr}
		_, err := NewCrossmintClient(server.URL, "sk_test", wallet).Buy(context.Background(), testPurchaseRequest())

		var checkoutErr *types.CheckoutError
		require.ErrorAs(t, err, &checkoutErr)
		assert.Equal(t, types.ErrSettlementFailed, checkoutErr.Code())
		assert.ErrorIs(t, err, sendErr)
		assert.Equal(t, 1, wallet.calls)
	})
}

func TestCrossmintClient_GetOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/2022-06-09/orders/order-1", r.URL.Path)
		assert.Equal(t, "sk_test", r.Header.Get("X-API-KEY"))

		body := orderJSON(PaymentStatusCompleted, "")
		body["orderId"] = "order-1"
		body["phase"] = "delivery"
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewCrossmintClient(server.URL, "sk_test", nil)
	order, err := client.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.OrderID)
	assert.Equal(t, "delivery", order.Phase)
	assert.Equal(t, PaymentStatusCompleted, order.PaymentStatus)

	_, err = client.GetOrder(context.Background(), "")
	assert.Error(t, err)
}

func TestCrossmintClient_Buy_MissingOrderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order":{}}`))
	}))
	defer server.Close()

	_, err := NewCrossmintClient(server.URL, "sk_test", nil).Buy(context.Background(), testPurchaseRequest())
	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrCheckoutFailed, checkoutErr.Code())
}

func TestNewCrossmintClient_Defaults(t *testing.T) {
	c := NewCrossmintClient("", "key", nil)
	assert.Equal(t, DefaultCrossmintURL, c.baseURL)
	assert.Same(t, http.DefaultClient, c.httpClient)
	assert.Equal(t, DefaultRequestTimeout, c.timeout)

	custom := &http.Client{}
	c = NewCrossmintClient("https://staging.crossmint.com/", "key", nil, WithHTTPClient(custom))
	assert.Equal(t, "https://staging.crossmint.com", c.baseURL)
	assert.Same(t, custom, c.httpClient)
}

func TestCrossmintClient_RequestID(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"message":"bad locator"}`))
	}))
	defer server.Close()

	client := NewCrossmintClient(server.URL, "sk_test", nil)

	ctx := WithRequestID(context.Background(), "purchase-42")
	_, err := client.Buy(ctx, testPurchaseRequest())

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, "purchase-42", checkoutErr.Details["requestId"])

	// generated when the context carries none
	_, err = client.GetOrder(context.Background(), "order-1")
	require.ErrorAs(t, err, &checkoutErr)

	require.Len(t, got, 2)
	assert.Equal(t, "purchase-42", got[0])
	assert.Len(t, got[1], 36)
	assert.Equal(t, got[1], checkoutErr.Details["requestId"])
}

func TestCrossmintClient_CallerDeadlineWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		body := orderJSON(PaymentStatusCompleted, "")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewCrossmintClient(server.URL, "sk_test", nil, WithRequestTimeout(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	order, err := client.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, order.PaymentStatus)
}

func TestCrossmintClient_TruncatedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte(`{"orderId":`))
	}))
	defer server.Close()

	ctx := WithRequestID(context.Background(), "purchase-7")
	_, err := NewCrossmintClient(server.URL, "sk_test", nil).GetOrder(ctx, "order-1")

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrNetworkError, checkoutErr.Code())
	assert.Equal(t, "purchase-7", checkoutErr.Details["requestId"])
}

func TestCrossmintClient_InvalidTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := orderJSON(PaymentStatusCompleted, "")
		body["quote"] = map[string]any{"totalPrice": map[string]any{"amount": "-3.00", "currency": "usdc"}}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	_, err := NewCrossmintClient(server.URL, "sk_test", nil).GetOrder(context.Background(), "order-1")

	var checkoutErr *types.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, types.ErrCheckoutFailed, checkoutErr.Code())
	assert.Equal(t, "invalid order total", checkoutErr.Message)
}
