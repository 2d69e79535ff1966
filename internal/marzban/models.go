package marzban

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

type CreateUserRequest struct {
	Username  string         `json:"username"`
	Proxies   map[string]any `json:"proxies"`
	Expire    int64          `json:"expire"` // unix seconds, 0 = never
	DataLimit int64          `json:"data_limit"`
	Status    string         `json:"status"`
}

type UserResponse struct {
	Username        string         `json:"username"`
	Proxies         map[string]any `json:"proxies"`
	Expire          int64          `json:"expire"`
	DataLimit       int64          `json:"data_limit"`
	Status          string         `json:"status"`
	UsedTraffic     int64          `json:"used_traffic"`
	CreatedAt       string         `json:"created_at"`
	Links           []string       `json:"links"`
	SubscriptionURL string         `json:"subscription_url"`
}

type modifyUserRequest struct {
	Status string `json:"status"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
