// Package inventory mirrors the shop's product catalog and stock levels from
// the Kontur.Market API into the local database.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.kontur.ru/market/v1"

type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a catalog item. Raw keeps the full upstream object for the
// storefront, which renders fields we do not model.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	GroupID   string          `json:"groupId"`
	Unit      string          `json:"unit"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	Raw       json.RawMessage `json:"-"`
}

func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	if err := json.Unmarshal(b, (*plain)(p)); err != nil {
		return err
	}
	p.Raw = append(p.Raw[:0], b...)
	return nil
}

type Rest struct {
	ProductID string          `json:"productId"`
	Rest      decimal.Decimal `json:"rest"`
}

type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

// Client calls the Kontur.Market REST API with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// listResponse covers both envelopes the API uses for collections.
type listResponse[T any] struct {
	Items   []T `json:"items"`
	Results []T `json:"results"`
}

func (l listResponse[T]) all() []T {
	if len(l.Results) > 0 {
		return l.Results
	}
	return l.Items
}

func (c *Client) Shops(ctx context.Context) ([]Shop, error) {
	var resp listResponse[Shop]
	if err := c.get(ctx, "/shops", &resp); err != nil {
		return nil, err
	}
	return resp.all(), nil
}

func (c *Client) Products(ctx context.Context, shopID string) ([]Product, error) {
	var resp listResponse[Product]
	if err := c.get(ctx, "/shops/"+url.PathEscape(shopID)+"/products", &resp); err != nil {
		return nil, err
	}
	return resp.all(), nil
}

func (c *Client) Rests(ctx context.Context, shopID string) ([]Rest, error) {
	var resp listResponse[Rest]
	if err := c.get(ctx, "/shops/"+url.PathEscape(shopID)+"/product-rests", &resp); err != nil {
		return nil, err
	}
	return resp.all(), nil
}

func (c *Client) Groups(ctx context.Context, shopID string) ([]Group, error) {
	var resp listResponse[Group]
	if err := c.get(ctx, "/shops/"+url.PathEscape(shopID)+"/product-groups", &resp); err != nil {
		return nil, err
	}
	return resp.all(), nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Kontur-Apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("kontur call")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
