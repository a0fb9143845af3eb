// Package oracle предоставляет клиент внешнего источника цен на подарки.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client инкапсулирует HTTP-взаимодействие с источником цен.
type Client struct {
	feedURL    string
	httpClient *http.Client
}

// GiftPrice описывает минимальную цену подарка в TON.
type GiftPrice struct {
	GiftName string          `json:"gift_name"`
	PriceTON decimal.Decimal `json:"price_ton"`
}

// NewClient создаёт HTTP-клиент для обращения к источнику цен по указанному адресу.
func NewClient(feedURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		feedURL: strings.TrimRight(feedURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetGiftPrices запрашивает текущие цены подарков. При ответе 429 возвращает код и паузу из Retry-After.
func (c *Client) GetGiftPrices(ctx context.Context) ([]GiftPrice, int, time.Duration, error) {
	if c == nil || c.feedURL == "" {
		return nil, 0, 0, fmt.Errorf("price feed client not configured")
	}

	url := c.feedURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var prices []GiftPrice
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return prices, resp.StatusCode, 0, nil
}

// FetchWithRetry повторяет запрос после паузы, которую назначил источник ответом 429, не более attempts раз.
func (c *Client) FetchWithRetry(ctx context.Context, attempts int) ([]GiftPrice, error) {
	for i := 0; ; i++ {
		prices, code, retryAfter, err := c.GetGiftPrices(ctx)
		if err != nil {
			return nil, err
		}
		if code != http.StatusTooManyRequests {
			return prices, nil
		}
		if i+1 >= attempts {
			return nil, fmt.Errorf("price feed rate limited after %d attempts", attempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}
