// backend/src/brokers/publicapi/client.go
package publicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"golang.org/x/time/rate"
)

const optionSuffix = "-OPTION"

// Client talks to the Public.com user API gateway. It only fetches data;
// the engine never places or modifies trades.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	secret          string
	validityMinutes int
	pageSize        int
	limiter         *rate.Limiter
}

// NewClient creates a broker client. The limiter keeps the periodic refresh
// from hammering the gateway when a force update overlaps a scheduled one.
func NewClient(baseURL, secret string, validityMinutes, pageSize int) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		baseURL:         strings.TrimRight(baseURL, "/"),
		secret:          secret,
		validityMinutes: validityMinutes,
		pageSize:        pageSize,
		limiter:         rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// AccessToken exchanges the long-lived personal secret for a short-lived
// bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"secret":            c.secret,
		"validityInMinutes": c.validityMinutes,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/userapiauthservice/personal/access-tokens", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("broker returned an empty access token")
	}
	return out.AccessToken, nil
}

// AccountID returns the brokerage account id, preferring accounts of type
// BROKERAGE and falling back to the first account listed.
func (c *Client) AccountID(ctx context.Context, token string) (string, error) {
	req, err := c.newGet(ctx, token, "/userapigateway/trading/account", nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Accounts []struct {
			AccountID   string `json:"accountId"`
			AccountType string `json:"accountType"`
		} `json:"accounts"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("fetching accounts: %w", err)
	}
	if len(out.Accounts) == 0 {
		return "", fmt.Errorf("broker returned no accounts")
	}
	for _, acc := range out.Accounts {
		if acc.AccountType == "BROKERAGE" {
			return acc.AccountID, nil
		}
	}
	return out.Accounts[0].AccountID, nil
}

// historyRecord is the wire shape of one history transaction. NetAmount
// arrives as either a JSON number or a quoted string depending on gateway
// version, so it is decoded leniently.
type historyRecord struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	SubType     string      `json:"subType"`
	Description string      `json:"description"`
	Symbol      string      `json:"symbol"`
	Quantity    json.Number `json:"quantity"`
	NetAmount   json.Number `json:"netAmount"`
	Timestamp   time.Time   `json:"timestamp"`
}

// History fetches the transaction history between start and end.
func (c *Client) History(ctx context.Context, token, accountID string, start, end time.Time) ([]models.RawTrade, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("end", end.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := c.newGet(ctx, token, "/userapigateway/trading/"+accountID+"/history", params)
	if err != nil {
		return nil, err
	}

	var out struct {
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	trades := make([]models.RawTrade, 0, len(out.Transactions))
	for _, raw := range out.Transactions {
		var rec historyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.L.Warn("Skipping undecodable history record", "error", err)
			continue
		}
		qty, _ := rec.Quantity.Float64()
		net, _ := rec.NetAmount.Float64()
		trades = append(trades, models.RawTrade{
			TradeID:     rec.ID,
			Type:        rec.Type,
			SubType:     rec.SubType,
			Description: rec.Description,
			Symbol:      rec.Symbol,
			Quantity:    qty,
			NetAmount:   net,
			Timestamp:   rec.Timestamp,
			Source:      "public",
			RawJSON:     string(raw),
		})
	}
	return trades, nil
}

// Portfolio fetches the current open positions, used to keep option groups
// Open while any of their contracts is still held.
func (c *Client) Portfolio(ctx context.Context, token, accountID string) ([]models.PortfolioPosition, error) {
	req, err := c.newGet(ctx, token, "/userapigateway/trading/"+accountID+"/portfolio/v2", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Positions []struct {
			Instrument struct {
				Symbol string `json:"symbol"`
			} `json:"instrument"`
		} `json:"positions"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("fetching portfolio: %w", err)
	}

	positions := make([]models.PortfolioPosition, 0, len(out.Positions))
	for _, pos := range out.Positions {
		symbol := pos.Instrument.Symbol
		if symbol == "" {
			continue
		}
		isOption := strings.Contains(symbol, optionSuffix)
		positions = append(positions, models.PortfolioPosition{
			Symbol:   strings.ReplaceAll(symbol, optionSuffix, ""),
			IsOption: isOption,
		})
	}
	return positions, nil
}

func (c *Client) newGet(ctx context.Context, token, path string, params url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker API returned %s for %s", resp.Status, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
