package payment

const (
	ProviderClick = "click"
	ProviderPayme = "payme"
)

// Click webhook actions and result codes.
const (
	ClickActionPrepare  = 0
	ClickActionComplete = 1

	ClickOK                     = 0
	ClickErrSign                = -1
	ClickErrIncorrectAmount     = -2
	ClickErrTransactionNotFound = -5
	ClickErrInternal            = -9
)

type ClickNotification struct {
	ClickTransID    int64   `json:"click_trans_id" form:"click_trans_id"`
	ServiceID       int64   `json:"service_id" form:"service_id"`
	ClickPaydocID   int64   `json:"click_paydoc_id" form:"click_paydoc_id"`
	MerchantTransID string  `json:"merchant_trans_id" form:"merchant_trans_id"`
	Amount          float64 `json:"amount" form:"amount"`
	Action          int     `json:"action" form:"action"`
	Error           int     `json:"error" form:"error"`
	ErrorNote       string  `json:"error_note" form:"error_note"`
	SignTime        string  `json:"sign_time" form:"sign_time"`
	SignString      string  `json:"sign_string" form:"sign_string"`
}

type ClickResponse struct {
	ClickTransID    int64  `json:"click_trans_id"`
	MerchantTransID string `json:"merchant_trans_id"`
	Error           int    `json:"error"`
	ErrorNote       string `json:"error_note"`
}

// Payme speaks JSON-RPC over a single endpoint.
const (
	PaymeCheckPerform = "CheckPerformTransaction"
	PaymeCreate       = "CreateTransaction"
	PaymePerform      = "PerformTransaction"
	PaymeCancel       = "CancelTransaction"
)

type PaymeRequest struct {
	Method string      `json:"method"`
	Params PaymeParams `json:"params"`
}

type PaymeParams struct {
	ID      string        `json:"id,omitempty"`
	Time    int64         `json:"time,omitempty"`
	Amount  float64       `json:"amount,omitempty"`
	Account *PaymeAccount `json:"account,omitempty"`
	Reason  int           `json:"reason,omitempty"`
}

// Account carries our payment reference; Payme calls the field
// subscription_id because that is how the merchant cabinet is configured.
type PaymeAccount struct {
	SubscriptionID string `json:"subscription_id"`
}

type PaymeResponse struct {
	Result any         `json:"result,omitempty"`
	Error  *PaymeError `json:"error,omitempty"`
}

type PaymeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
