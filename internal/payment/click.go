package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
)

// ClickGateway holds the merchant credentials for the Click provider and
// implements its checkout URL and webhook signature contract.
type ClickGateway struct {
	ServiceID  int64
	MerchantID string
	SecretKey  string
	AllowedIPs []string
}

func NewClickGateway(serviceID int64, merchantID, secretKey string, allowedIPs []string) *ClickGateway {
	return &ClickGateway{
		ServiceID:  serviceID,
		MerchantID: merchantID,
		SecretKey:  secretKey,
		AllowedIPs: allowedIPs,
	}
}

func (g *ClickGateway) CheckoutURL(paymentID string, amount float64, returnURL string) string {
	q := url.Values{}
	q.Set("service_id", strconv.FormatInt(g.ServiceID, 10))
	q.Set("merchant_id", g.MerchantID)
	q.Set("amount", formatAmount(amount))
	q.Set("transaction_param", paymentID)
	if returnURL != "" {
		q.Set("return_url", returnURL)
	}
	return "https://my.click.uz/services/pay?" + q.Encode()
}

// VerifySign checks the md5 signature Click attaches to every webhook:
// md5(click_trans_id + service_id + secret + merchant_trans_id + amount +
// action + sign_time).
func (g *ClickGateway) VerifySign(n ClickNotification) bool {
	payload := fmt.Sprintf("%d%d%s%s%s%d%s",
		n.ClickTransID,
		n.ServiceID,
		g.SecretKey,
		n.MerchantTransID,
		formatAmount(n.Amount),
		n.Action,
		n.SignTime,
	)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:]) == n.SignString
}

// AllowedSource checks the webhook source against the configured CIDR
// allowlist. An empty allowlist admits everything, for development setups
// behind a tunnel.
func (g *ClickGateway) AllowedSource(ip string) bool {
	if len(g.AllowedIPs) == 0 {
		return true
	}
	return IsAllowedIP(ip, g.AllowedIPs)
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
