package erpnext

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/storebridge/erpsync/internal/services"
)

var (
	_ services.Catalog         = (*Client)(nil)
	_ services.PriceList       = (*Client)(nil)
	_ services.HolidayCalendar = (*Client)(nil)
)

// ItemBySKU fetches the item master entry whose code matches the storefront SKU.
func (c *Client) ItemBySKU(ctx context.Context, sku string) (services.CatalogItem, error) {
	var envelope struct {
		Data struct {
			ItemCode    string `json:"item_code"`
			ItemName    string `json:"item_name"`
			Description string `json:"description"`
			StockUOM    string `json:"stock_uom"`
			Disabled    int    `json:"disabled"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath("Item", sku), nil, nil, &envelope); err != nil {
		return services.CatalogItem{}, err
	}
	if envelope.Data.Disabled != 0 {
		return services.CatalogItem{}, &Error{StatusCode: http.StatusNotFound, Message: "item disabled: " + sku}
	}
	return services.CatalogItem{
		Code:        envelope.Data.ItemCode,
		Name:        envelope.Data.ItemName,
		Description: envelope.Data.Description,
		StockUOM:    envelope.Data.StockUOM,
	}, nil
}

// PriceListRate returns the selling rate for the item on the given price
// list, or 0 when no entry exists.
func (c *Client) PriceListRate(ctx context.Context, itemCode string, priceList string) (float64, error) {
	query, err := listQuery(
		[][3]string{
			{"item_code", "=", itemCode},
			{"price_list", "=", priceList},
			{"selling", "=", "1"},
		},
		[]string{"price_list_rate"},
		1,
	)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Data []struct {
			PriceListRate float64 `json:"price_list_rate"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath("Item Price", ""), query, nil, &envelope); err != nil {
		return 0, err
	}
	if len(envelope.Data) == 0 {
		return 0, nil
	}
	return envelope.Data[0].PriceListRate, nil
}

const holidayCacheTTL = time.Hour

// holidayCache keeps the deployment's holiday list in memory; the list
// changes rarely and is consulted on every delivery date calculation.
type holidayCache struct {
	mu        sync.Mutex
	dates     map[string]struct{}
	fetchedAt time.Time
}

// IsHoliday reports whether the date appears on the configured holiday list.
// Without a configured list every day is a working day.
func (c *Client) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	if c.holidayList == "" {
		return false, nil
	}

	dates, err := c.holidayDates(ctx)
	if err != nil {
		return false, err
	}

	_, ok := dates[date.Format(frappeDateLayout)]
	return ok, nil
}

func (c *Client) holidayDates(ctx context.Context) (map[string]struct{}, error) {
	c.holidays.mu.Lock()
	defer c.holidays.mu.Unlock()

	if c.holidays.dates != nil && time.Since(c.holidays.fetchedAt) < holidayCacheTTL {
		return c.holidays.dates, nil
	}

	var envelope struct {
		Data struct {
			Holidays []struct {
				HolidayDate string `json:"holiday_date"`
			} `json:"holidays"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath("Holiday List", c.holidayList), nil, nil, &envelope); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, &Error{StatusCode: http.StatusNotFound, Message: "holiday list not found: " + c.holidayList}
		}
		return nil, err
	}

	dates := make(map[string]struct{}, len(envelope.Data.Holidays))
	for _, holiday := range envelope.Data.Holidays {
		dates[holiday.HolidayDate] = struct{}{}
	}

	c.holidays.dates = dates
	c.holidays.fetchedAt = time.Now()
	return dates, nil
}
