package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
)

func TestOrderClient_FetchOrdersPagination(t *testing.T) {
	var requests []string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		if token := r.Header.Get("X-Shopify-Access-Token"); token != "shpat_test" {
			t.Errorf("access token header = %q", token)
		}

		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2024-04/orders.json?limit=250&page_info=cursor2>; rel="next"`, srv.URL))
			_, _ = w.Write([]byte(`{"orders":[{"id":5001,"name":"#1042"},{"id":5002,"name":"#1043"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"orders":[{"id":5003,"name":"#1044"}]}`))
	}))
	defer srv.Close()

	client, err := NewOrderClient(OrderClientDeps{
		ShopDomain:  srv.URL,
		AccessToken: "shpat_test",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewOrderClient error: %v", err)
	}

	var seen []int64
	err = client.FetchOrders(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		func(order domain.Order) error {
			seen = append(seen, order.ID)
			return nil
		})
	if err != nil {
		t.Fatalf("FetchOrders error: %v", err)
	}

	if len(seen) != 3 || seen[0] != 5001 || seen[2] != 5003 {
		t.Fatalf("seen = %v", seen)
	}
	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2 pages", len(requests))
	}
}

func TestOrderClient_FetchOrdersCallbackStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"id":1},{"id":2},{"id":3}]}`))
	}))
	defer srv.Close()

	client, err := NewOrderClient(OrderClientDeps{ShopDomain: srv.URL, AccessToken: "shpat_test", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewOrderClient error: %v", err)
	}

	calls := 0
	err = client.FetchOrders(context.Background(), time.Time{}, time.Now(), func(domain.Order) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("stop here")
		}
		return nil
	})
	if err == nil || err.Error() != "stop here" {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestOrderClient_FetchOrdersServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewOrderClient(OrderClientDeps{ShopDomain: srv.URL, AccessToken: "shpat_test", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewOrderClient error: %v", err)
	}

	err = client.FetchOrders(context.Background(), time.Time{}, time.Now(), func(domain.Order) error { return nil })
	if err == nil {
		t.Fatalf("expected error on server failure")
	}
}

func TestNextPageURL(t *testing.T) {
	header := `<https://shop.example.com/admin/api/2024-04/orders.json?page_info=prev>; rel="previous", <https://shop.example.com/admin/api/2024-04/orders.json?page_info=next>; rel="next"`
	if got := nextPageURL(header); got != "https://shop.example.com/admin/api/2024-04/orders.json?page_info=next" {
		t.Fatalf("next url = %q", got)
	}
	if got := nextPageURL(`<https://x>; rel="previous"`); got != "" {
		t.Fatalf("expected empty next url, got %q", got)
	}
	if got := nextPageURL(""); got != "" {
		t.Fatalf("expected empty next url for empty header, got %q", got)
	}
}
