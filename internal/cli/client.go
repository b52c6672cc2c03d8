package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rupeeverse/internal/auth"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Sync(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/sync", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) PlayerState(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/player-state", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) StarterStatus(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/player-state/starter-status", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) ClaimStarter(ctx context.Context, accessToken, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/player-state/claim-starter", accessToken, map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) Consistency(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/player-state/consistency", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) CreateBankAccount(ctx context.Context, accessToken, accountHolder string, initialDeposit float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bank-account/create", accessToken, map[string]any{
		"accountHolder":  accountHolder,
		"initialDeposit": initialDeposit,
	}, &out, idem)
	return out, err
}

func (c *Client) BankAccount(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/bank-account", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Deposit(ctx context.Context, accessToken string, amount float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bank-account/deposit", accessToken, map[string]any{
		"amount": amount,
	}, &out, idem)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, accessToken string, amount float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bank-account/withdraw", accessToken, map[string]any{
		"amount": amount,
	}, &out, idem)
	return out, err
}

func (c *Client) ListFixedDeposits(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/fixed-deposits", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) CreateFixedDeposit(ctx context.Context, accessToken string, amount float64, durationDays int, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/fixed-deposits", accessToken, map[string]any{
		"amount":   amount,
		"duration": durationDays,
	}, &out, idem)
	return out, err
}

func (c *Client) ClaimFixedDeposit(ctx context.Context, accessToken, depositID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/fixed-deposits/"+url.PathEscape(depositID)+"/claim", accessToken, map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) Portfolio(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stock-portfolio", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) StockTransactions(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stock-transactions", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) BuyStock(ctx context.Context, accessToken, stockID, stockName string, quantity int64, price float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/stock-portfolio/buy", accessToken, map[string]any{
		"stockId":   stockID,
		"stockName": stockName,
		"quantity":  quantity,
		"price":     price,
	}, &out, idem)
	return out, err
}

func (c *Client) SellStock(ctx context.Context, accessToken, stockID string, quantity int64, price float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/stock-portfolio/sell", accessToken, map[string]any{
		"stockId":  stockID,
		"quantity": quantity,
		"price":    price,
	}, &out, idem)
	return out, err
}

// Do replays an arbitrary queued command against the API.
func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, accessToken, body, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("api status %d: %s", resp.StatusCode, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
