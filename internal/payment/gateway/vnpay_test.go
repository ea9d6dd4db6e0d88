package gateway

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealerhub/internal/config"
)

func newTestGateway() *VNPay {
	g := NewVNPay(config.VNPayConfig{
		TmnCode:    "DEALER01",
		HashSecret: "SECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/payments/vnpay/return",
		Locale:     "vn",
	})
	g.now = func() time.Time { return time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC) }
	return g
}

func TestCreatePaymentURL(t *testing.T) {
	g := newTestGateway()

	raw, err := g.CreatePaymentURL(context.Background(), PaymentRequest{
		Reference: "order-1_deposit_01HZX",
		Amount:    decimal.NewFromInt(50_000_000),
		OrderInfo: "Deposit for order order-1",
		ClientIP:  "10.0.0.1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?"))

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "5000000000", q.Get("vnp_Amount"))
	assert.Equal(t, "order-1_deposit_01HZX", q.Get("vnp_TxnRef"))
	assert.Equal(t, "DEALER01", q.Get("vnp_TmnCode"))
	assert.Equal(t, "20260301080000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301081500", q.Get("vnp_ExpireDate"))
	assert.Len(t, q.Get("vnp_SecureHash"), 128)
}

func TestCreatePaymentURL_NotConfigured(t *testing.T) {
	g := NewVNPay(config.VNPayConfig{PayURL: "https://example.test"})

	_, err := g.CreatePaymentURL(context.Background(), PaymentRequest{Reference: "r", Amount: decimal.NewFromInt(1)})

	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreatePaymentURL_NonPositiveAmount(t *testing.T) {
	g := newTestGateway()

	_, err := g.CreatePaymentURL(context.Background(), PaymentRequest{Reference: "r", Amount: decimal.Zero})

	assert.Error(t, err)
}

// signedReturn simulates the query the gateway appends to the return URL.
func signedReturn(g *VNPay, params map[string]string) url.Values {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("vnp_SecureHash", g.sign(canonicalQuery(values)))
	values.Set("vnp_SecureHashType", "HmacSHA512")
	return values
}

func TestVerifyReturn(t *testing.T) {
	g := newTestGateway()

	tests := []struct {
		name    string
		code    string
		status  string
		success bool
	}{
		{"success", "00", "00", true},
		{"customer cancelled", "24", "02", false},
		{"success code with failed status", "00", "02", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := signedReturn(g, map[string]string{
				"vnp_TxnRef":            "order-1_final_01HZX",
				"vnp_Amount":            "45000000000",
				"vnp_ResponseCode":      tt.code,
				"vnp_TransactionStatus": tt.status,
				"vnp_OrderInfo":         "Final payment for order order-1",
			})

			result, err := g.VerifyReturn(values)

			require.NoError(t, err)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, "order-1_final_01HZX", result.Reference)
			assert.True(t, result.Amount.Equal(decimal.NewFromInt(450_000_000)))
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestVerifyReturn_TamperedQuery(t *testing.T) {
	g := newTestGateway()
	values := signedReturn(g, map[string]string{
		"vnp_TxnRef":       "order-1_final_01HZX",
		"vnp_Amount":       "100",
		"vnp_ResponseCode": "00",
	})
	values.Set("vnp_Amount", "999999")

	_, err := g.VerifyReturn(values)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyReturn_MissingHash(t *testing.T) {
	g := newTestGateway()

	_, err := g.VerifyReturn(url.Values{"vnp_TxnRef": {"x"}})

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyReturn_UppercaseHash(t *testing.T) {
	g := newTestGateway()
	values := signedReturn(g, map[string]string{
		"vnp_TxnRef":       "order-1_final_01HZX",
		"vnp_Amount":       "100",
		"vnp_ResponseCode": "00",
	})
	values.Set("vnp_SecureHash", strings.ToUpper(values.Get("vnp_SecureHash")))

	_, err := g.VerifyReturn(values)

	assert.NoError(t, err)
}
