package payment

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

// PaymeGateway implements the Paycom merchant contract: basic-auth webhook
// authentication and the base64 checkout link. Amounts cross the wire in
// tiyin (1/100 of a som).
type PaymeGateway struct {
	MerchantID string
	SecretKey  string
}

func NewPaymeGateway(merchantID, secretKey string) *PaymeGateway {
	return &PaymeGateway{MerchantID: merchantID, SecretKey: secretKey}
}

func (g *PaymeGateway) CheckoutURL(paymentID string, amount float64) string {
	params := fmt.Sprintf("m=%s;ac.subscription_id=%s;a=%d",
		g.MerchantID, paymentID, ToTiyin(amount))
	return "https://checkout.paycom.uz/" + base64.StdEncoding.EncodeToString([]byte(params))
}

// VerifyAuth checks the Authorization header of an inbound webhook.
// Paycom authenticates as "Paycom:<merchant key>" over HTTP Basic.
func (g *PaymeGateway) VerifyAuth(header string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	want := "Paycom:" + g.SecretKey
	return subtle.ConstantTimeCompare(decoded, []byte(want)) == 1
}

func ToTiyin(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromTiyin(amount float64) float64 {
	return amount / 100
}
