package erpnext

import (
	"context"
	"fmt"
	"net/http"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/services"
)

// Custom fields linking ERP documents back to the storefront.
const (
	fieldOrderID    = "shopify_order_id"
	fieldOrderNo    = "shopify_order_number"
	fieldCustomerID = "shopify_customer_id"
	fieldStatus     = "shopify_status"
)

// Frappe document workflow states.
const (
	docstatusSubmitted = 1
)

const frappeDateLayout = "2006-01-02"

var _ services.DocumentStore = (*Client)(nil)

type documentRow struct {
	Name      string `json:"name"`
	Docstatus int    `json:"docstatus"`
	Status    string `json:"status"`
}

// findOne returns the first document of the doctype whose storefront id
// matches, or a not-found Error.
func (c *Client) findOne(ctx context.Context, doctype string, externalID string) (documentRow, error) {
	query, err := listQuery(
		[][3]string{{fieldOrderID, "=", externalID}},
		[]string{"name", "docstatus", "status"},
		1,
	)
	if err != nil {
		return documentRow{}, err
	}

	var envelope struct {
		Data []documentRow `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath(doctype, ""), query, nil, &envelope); err != nil {
		return documentRow{}, err
	}
	if len(envelope.Data) == 0 {
		return documentRow{}, &Error{StatusCode: http.StatusNotFound, Message: doctype + " not found for order " + externalID}
	}
	return envelope.Data[0], nil
}

// FindCustomer resolves the ERP customer linked to a storefront customer id.
func (c *Client) FindCustomer(ctx context.Context, externalID string) (string, error) {
	query, err := listQuery(
		[][3]string{{fieldCustomerID, "=", externalID}},
		[]string{"name"},
		1,
	)
	if err != nil {
		return "", err
	}

	var envelope struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath("Customer", ""), query, nil, &envelope); err != nil {
		return "", err
	}
	if len(envelope.Data) == 0 {
		return "", &Error{StatusCode: http.StatusNotFound, Message: "customer not found: " + externalID}
	}
	return envelope.Data[0].Name, nil
}

// FindSalesOrder looks up the sales order linked to a storefront order id.
func (c *Client) FindSalesOrder(ctx context.Context, externalID string) (services.SalesOrderRef, error) {
	row, err := c.findOne(ctx, services.DoctypeSalesOrder, externalID)
	if err != nil {
		return services.SalesOrderRef{}, err
	}
	return services.SalesOrderRef{
		Name:      row.Name,
		Submitted: row.Docstatus == docstatusSubmitted,
		Status:    row.Status,
	}, nil
}

type salesOrderItemPayload struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name,omitempty"`
	Description    string  `json:"description,omitempty"`
	Rate           float64 `json:"rate"`
	PriceListRate  float64 `json:"price_list_rate,omitempty"`
	Qty            int     `json:"qty"`
	DeliveryDate   string  `json:"delivery_date"`
	StockUOM       string  `json:"stock_uom,omitempty"`
	Warehouse      string  `json:"warehouse,omitempty"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
}

type salesTaxPayload struct {
	ChargeType  string  `json:"charge_type"`
	AccountHead string  `json:"account_head"`
	Description string  `json:"description,omitempty"`
	TaxAmount   float64 `json:"tax_amount"`
	CostCenter  string  `json:"cost_center,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
}

type salesOrderPayload struct {
	NamingSeries     string                  `json:"naming_series,omitempty"`
	OrderID          string                  `json:"shopify_order_id"`
	OrderNumber      string                  `json:"shopify_order_number,omitempty"`
	Customer         string                  `json:"customer"`
	Company          string                  `json:"company,omitempty"`
	TransactionDate  string                  `json:"transaction_date"`
	DeliveryDate     string                  `json:"delivery_date"`
	ShippingMethod   string                  `json:"shopify_shipping_method,omitempty"`
	SellingPriceList string                  `json:"selling_price_list,omitempty"`
	Items            []salesOrderItemPayload `json:"items"`
	Taxes            []salesTaxPayload       `json:"taxes,omitempty"`
}

// CreateSalesOrder posts a draft sales order and returns its ERP reference.
func (c *Client) CreateSalesOrder(ctx context.Context, draft domain.SalesOrderDraft) (services.SalesOrderRef, error) {
	payload := salesOrderPayload{
		NamingSeries:     draft.NamingSeries,
		OrderID:          draft.ExternalOrderID,
		OrderNumber:      draft.ExternalOrderNumber,
		Customer:         draft.Customer,
		Company:          draft.Company,
		TransactionDate:  draft.TransactionDate.Format(frappeDateLayout),
		DeliveryDate:     draft.DeliveryDate.Format(frappeDateLayout),
		ShippingMethod:   draft.ShippingMethod,
		SellingPriceList: draft.SellingPriceList,
	}

	for _, item := range draft.Items {
		payload.Items = append(payload.Items, salesOrderItemPayload{
			ItemCode:       item.ItemCode,
			ItemName:       item.ItemName,
			Description:    item.Description,
			Rate:           item.Rate,
			PriceListRate:  item.ReportedRate,
			Qty:            item.Quantity,
			DeliveryDate:   item.DeliveryDate.Format(frappeDateLayout),
			StockUOM:       item.StockUOM,
			Warehouse:      item.Warehouse,
			DiscountAmount: item.DiscountPerUnit,
		})
	}
	for _, tax := range draft.Taxes {
		payload.Taxes = append(payload.Taxes, salesTaxPayload{
			ChargeType:  tax.ChargeType,
			AccountHead: tax.AccountHead,
			Description: tax.Description,
			TaxAmount:   tax.TaxAmount,
			CostCenter:  tax.CostCenter,
			Rate:        tax.RatePercent,
		})
	}

	var envelope struct {
		Data documentRow `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, resourcePath(services.DoctypeSalesOrder, ""), nil, payload, &envelope); err != nil {
		return services.SalesOrderRef{}, err
	}
	return services.SalesOrderRef{
		Name:      envelope.Data.Name,
		Submitted: envelope.Data.Docstatus == docstatusSubmitted,
		Status:    envelope.Data.Status,
	}, nil
}

// SubmitSalesOrder moves the draft into the submitted workflow state.
func (c *Client) SubmitSalesOrder(ctx context.Context, name string) error {
	body := map[string]any{"docstatus": 1}
	return c.do(ctx, http.MethodPut, resourcePath(services.DoctypeSalesOrder, name), nil, body, nil)
}

// CancelSalesOrder cancels a submitted sales order.
func (c *Client) CancelSalesOrder(ctx context.Context, name string) error {
	body := map[string]any{"docstatus": 2}
	return c.do(ctx, http.MethodPut, resourcePath(services.DoctypeSalesOrder, name), nil, body, nil)
}

// AddOrderComment attaches a comment to a sales order.
func (c *Client) AddOrderComment(ctx context.Context, name string, text string) error {
	body := map[string]any{
		"comment_type":      "Comment",
		"reference_doctype": services.DoctypeSalesOrder,
		"reference_name":    name,
		"content":           text,
	}
	return c.do(ctx, http.MethodPost, resourcePath("Comment", ""), nil, body, nil)
}

// SetDocumentStatus records the storefront status on a linked document.
func (c *Client) SetDocumentStatus(ctx context.Context, doctype string, name string, status string) error {
	body := map[string]any{fieldStatus: status}
	return c.do(ctx, http.MethodPut, resourcePath(doctype, name), nil, body, nil)
}

// FindSalesInvoice returns the invoice linked to a storefront order id.
func (c *Client) FindSalesInvoice(ctx context.Context, externalID string) (string, error) {
	row, err := c.findOne(ctx, services.DoctypeSalesInvoice, externalID)
	if err != nil {
		return "", err
	}
	return row.Name, nil
}

// ListDeliveryNotes returns all delivery notes linked to a storefront order id.
func (c *Client) ListDeliveryNotes(ctx context.Context, externalID string) ([]string, error) {
	query, err := listQuery(
		[][3]string{{fieldOrderID, "=", externalID}},
		[]string{"name"},
		0,
	)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, resourcePath(services.DoctypeDeliveryNote, ""), query, nil, &envelope); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(envelope.Data))
	for _, row := range envelope.Data {
		names = append(names, row.Name)
	}
	return names, nil
}

// CreateSalesInvoice raises an invoice from a submitted sales order using
// the server-side mapping, then submits it.
func (c *Client) CreateSalesInvoice(ctx context.Context, orderName string, externalID string) (string, error) {
	var mapped struct {
		Message map[string]any `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/method/erpnext.selling.doctype.sales_order.sales_order.make_sales_invoice",
		nil, map[string]any{"source_name": orderName}, &mapped)
	if err != nil {
		return "", err
	}
	if mapped.Message == nil {
		return "", fmt.Errorf("erpnext: empty invoice mapping for %s", orderName)
	}

	mapped.Message[fieldOrderID] = externalID
	mapped.Message["docstatus"] = 1
	mapped.Message["posting_date"] = time.Now().UTC().Format(frappeDateLayout)

	var envelope struct {
		Data documentRow `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, resourcePath(services.DoctypeSalesInvoice, ""), nil, mapped.Message, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.Name, nil
}
