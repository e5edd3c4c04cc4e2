// Package shopify fetches historical orders from the storefront Admin API
// for backfill runs. Live traffic arrives over webhooks; this client only
// pages through past orders.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/services"
)

const (
	apiVersion     = "2024-04"
	pageSize       = 250
	defaultTimeout = 30 * time.Second
)

// OrderClientDeps carries the Admin API connection settings.
type OrderClientDeps struct {
	ShopDomain  string
	AccessToken string
	HTTPClient  *http.Client
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// OrderClient pages through the shop's order history.
type OrderClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     func(context.Context, string, map[string]any)
}

// NewOrderClient validates the connection settings and builds a client.
func NewOrderClient(deps OrderClientDeps) (*OrderClient, error) {
	shop := strings.TrimSpace(deps.ShopDomain)
	if shop == "" {
		return nil, errors.New("shopify: shop domain is required")
	}
	if deps.AccessToken == "" {
		return nil, errors.New("shopify: access token is required")
	}
	if !strings.Contains(shop, "://") {
		shop = "https://" + shop
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &OrderClient{
		baseURL:    strings.TrimRight(shop, "/"),
		token:      deps.AccessToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

var _ services.OrderSource = (*OrderClient)(nil)

// FetchOrders streams orders created inside [from, to) to the callback,
// following page_info cursors until the window is exhausted.
func (c *OrderClient) FetchOrders(ctx context.Context, from time.Time, to time.Time, fn func(domain.Order) error) error {
	query := url.Values{}
	query.Set("status", "any")
	query.Set("limit", fmt.Sprintf("%d", pageSize))
	query.Set("created_at_min", from.UTC().Format(time.RFC3339))
	query.Set("created_at_max", to.UTC().Format(time.RFC3339))

	endpoint := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", c.baseURL, apiVersion, query.Encode())

	for endpoint != "" {
		orders, next, err := c.fetchPage(ctx, endpoint)
		if err != nil {
			return err
		}
		for _, order := range orders {
			if err := fn(order); err != nil {
				return err
			}
		}
		endpoint = next
	}
	return nil
}

func (c *OrderClient) fetchPage(ctx context.Context, endpoint string) ([]domain.Order, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("shopify: build request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("shopify: fetch orders: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, "", fmt.Errorf("shopify: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger(ctx, "shopify.fetch_failed", map[string]any{
			"status": resp.StatusCode,
		})
		return nil, "", fmt.Errorf("shopify: fetch orders: status %d", resp.StatusCode)
	}

	var envelope struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", fmt.Errorf("shopify: decode orders: %w", err)
	}

	return envelope.Orders, nextPageURL(resp.Header.Get("Link")), nil
}

// nextPageURL extracts the rel="next" cursor from a Link header, empty when
// the window has no further pages.
func nextPageURL(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if !strings.Contains(section[1], `rel="next"`) {
			continue
		}
		link := strings.TrimSpace(section[0])
		link = strings.TrimPrefix(link, "<")
		link = strings.TrimSuffix(link, ">")
		return link
	}
	return ""
}
