package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealerhub/internal/config"
)

const (
	vnpVersion     = "2.1.0"
	vnpCommand     = "pay"
	vnpCurrency    = "VND"
	vnpOrderType   = "other"
	vnpDateLayout  = "20060102150405"
	vnpSuccessCode = "00"
	paymentTimeout = 15 * time.Minute
)

var (
	ErrNotConfigured    = errors.New("vnpay: merchant code or hash secret not configured")
	ErrInvalidSignature = errors.New("vnpay: invalid secure hash")
)

// VNPay timestamps are always expressed in Vietnam time.
var vietnam = time.FixedZone("ICT", 7*60*60)

type PaymentRequest struct {
	Reference string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
}

// ReturnResult is a verified gateway outcome from a return or IPN query.
type ReturnResult struct {
	Reference    string
	Success      bool
	ResponseCode string
	Message      string
	Amount       decimal.Decimal
}

type VNPay struct {
	cfg config.VNPayConfig
	now func() time.Time
}

func NewVNPay(cfg config.VNPayConfig) *VNPay {
	return &VNPay{cfg: cfg, now: time.Now}
}

// CreatePaymentURL builds the signed redirect for the hosted payment page.
func (g *VNPay) CreatePaymentURL(ctx context.Context, req PaymentRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.cfg.TmnCode == "" || g.cfg.HashSecret == "" {
		return "", ErrNotConfigured
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("vnpay: amount must be positive, got %s", req.Amount)
	}

	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	created := g.now().In(vietnam)

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommand)
	params.Set("vnp_TmnCode", g.cfg.TmnCode)
	// amount is sent in hundredths of a dong
	params.Set("vnp_Amount", req.Amount.Mul(decimal.NewFromInt(100)).Truncate(0).String())
	params.Set("vnp_CurrCode", vnpCurrency)
	params.Set("vnp_TxnRef", req.Reference)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", vnpOrderType)
	params.Set("vnp_Locale", g.cfg.Locale)
	params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", created.Format(vnpDateLayout))
	params.Set("vnp_ExpireDate", created.Add(paymentTimeout).Format(vnpDateLayout))

	query := canonicalQuery(params)
	return g.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + g.sign(query), nil
}

// VerifyReturn checks the secure hash of a gateway return and decodes it.
func (g *VNPay) VerifyReturn(values url.Values) (*ReturnResult, error) {
	received := values.Get("vnp_SecureHash")
	if received == "" {
		return nil, ErrInvalidSignature
	}

	signed := url.Values{}
	for key, vals := range values {
		if !strings.HasPrefix(key, "vnp_") || key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		signed[key] = vals
	}

	expected := g.sign(canonicalQuery(signed))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return nil, ErrInvalidSignature
	}

	amount, err := decimal.NewFromString(values.Get("vnp_Amount"))
	if err != nil {
		return nil, fmt.Errorf("vnpay: parsing amount: %w", err)
	}

	code := values.Get("vnp_ResponseCode")
	status := values.Get("vnp_TransactionStatus")
	return &ReturnResult{
		Reference:    values.Get("vnp_TxnRef"),
		Success:      code == vnpSuccessCode && (status == "" || status == vnpSuccessCode),
		ResponseCode: code,
		Message:      responseMessage(code),
		Amount:       amount.Div(decimal.NewFromInt(100)),
	}, nil
}

func (g *VNPay) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery encodes params sorted by key, skipping empty values.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if params.Get(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}

func responseMessage(code string) string {
	switch code {
	case "00":
		return "transaction successful"
	case "07":
		return "transaction deducted but flagged as suspicious"
	case "09":
		return "card or account not registered for internet banking"
	case "10":
		return "card or account verification failed too many times"
	case "11":
		return "payment window expired"
	case "12":
		return "card or account is locked"
	case "24":
		return "customer cancelled the transaction"
	case "51":
		return "insufficient balance"
	case "65":
		return "daily transaction limit exceeded"
	case "75":
		return "bank under maintenance"
	default:
		return "transaction failed with code " + code
	}
}
