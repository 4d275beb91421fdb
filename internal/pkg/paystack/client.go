package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://api.paystack.co"

var ErrNotConfigured = errors.New("paystack is not configured")

// InitializeRequest transaction/initialize 请求体，金额单位为 kobo
type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Transaction 初始化后的交易
type Transaction struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient 使用 secret key 作为 Bearer token 的 Paystack 客户端
func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: secretKey, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 15 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

// Configured 是否配置了 secret key
func (c *Client) Configured() bool {
	return c != nil && c.secretKey != ""
}

// SecretKey webhook 签名使用同一个 secret key
func (c *Client) SecretKey() string {
	return c.secretKey
}

// InitializeTransaction 创建交易并返回支付页地址
func (c *Client) InitializeTransaction(ctx context.Context, req *InitializeRequest) (*Transaction, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call paystack: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack api error: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("paystack api error: status %d: %s", resp.StatusCode, env.Message)
	}

	var tx Transaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode paystack transaction: %w", err)
	}
	if tx.AuthorizationURL == "" || tx.Reference == "" {
		return nil, errors.New("paystack response missing authorization url")
	}
	return &tx, nil
}
