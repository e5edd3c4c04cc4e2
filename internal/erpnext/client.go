// Package erpnext is a Frappe/ERPNext REST client scoped to what the sync
// pipeline needs: resource CRUD on sales documents, catalog lookups, and the
// holiday calendar.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storebridge/erpsync/internal/repositories"
)

const defaultTimeout = 30 * time.Second

// Error describes a failed ERP API call with the categorisation services
// rely on to tell "absent" from "broken".
type Error struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("erpnext: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("erpnext: request failed (status %d)", e.StatusCode)
}

// IsNotFound reports whether the resource does not exist.
func (e *Error) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsConflict reports whether the write conflicted with existing state.
func (e *Error) IsConflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusPreconditionFailed
}

// IsUnavailable reports whether the ERP endpoint is temporarily unreachable.
func (e *Error) IsUnavailable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

var _ repositories.RepositoryError = (*Error)(nil)

// ClientDeps carries the connection settings for a Frappe deployment.
type ClientDeps struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	HolidayList string
	HTTPClient  *http.Client
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Client talks to one ERPNext deployment. Safe for concurrent use.
type Client struct {
	baseURL     string
	authToken   string
	holidayList string
	httpClient  *http.Client
	logger      func(context.Context, string, map[string]any)

	holidays holidayCache
}

// NewClient validates the connection settings and builds a client.
func NewClient(deps ClientDeps) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("erpnext: base url is required")
	}
	if deps.APIKey == "" || deps.APISecret == "" {
		return nil, errors.New("erpnext: api key and secret are required")
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Client{
		baseURL:     base,
		authToken:   "token " + deps.APIKey + ":" + deps.APISecret,
		holidayList: strings.TrimSpace(deps.HolidayList),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// do executes one API call and decodes the response body into out when
// non-nil. Frappe wraps resource responses in a "data" envelope; callers
// pass a struct with a Data field shaped accordingly.
func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erpnext: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("erpnext: build request: %w", err)
	}
	req.Header.Set("Authorization", c.authToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("erpnext: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
			ExcType string `json:"exc_type"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			if envelope.Message != "" {
				apiErr.Message = envelope.Message
			} else if envelope.ExcType != "" {
				apiErr.Message = envelope.ExcType
			}
		}
		c.logger(ctx, "erpnext.request_failed", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("erpnext: decode response: %w", err)
	}
	return nil
}

func resourcePath(doctype string, name string) string {
	path := "/api/resource/" + url.PathEscape(doctype)
	if name != "" {
		path += "/" + url.PathEscape(name)
	}
	return path
}

// listQuery builds the filters/fields query parameters for a resource listing.
func listQuery(filters [][3]string, fields []string, limit int) (url.Values, error) {
	query := url.Values{}

	if len(filters) > 0 {
		encoded := make([][]any, 0, len(filters))
		for _, f := range filters {
			encoded = append(encoded, []any{f[0], f[1], f[2]})
		}
		raw, err := json.Marshal(encoded)
		if err != nil {
			return nil, fmt.Errorf("erpnext: encode filters: %w", err)
		}
		query.Set("filters", string(raw))
	}

	if len(fields) > 0 {
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("erpnext: encode fields: %w", err)
		}
		query.Set("fields", string(raw))
	}

	if limit > 0 {
		query.Set("limit_page_length", fmt.Sprintf("%d", limit))
	}

	return query, nil
}
