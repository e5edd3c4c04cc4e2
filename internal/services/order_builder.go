package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
	"github.com/storebridge/erpsync/internal/repositories"
)

// bundleDelimiter joins the component SKUs of a bundle product sold as one
// storefront line.
const bundleDelimiter = "+"

// chargeTypeActual is the ERP charge type for pre-computed tax amounts.
const chargeTypeActual = "Actual"

// ErrOrderBuilderInvalidInput signals order data the builder cannot prorate,
// such as a line with zero quantity.
var ErrOrderBuilderInvalidInput = errors.New("order builder: invalid input")

// OrderBuilder turns a storefront order payload into normalized item and tax
// rows ready to attach to a sales order draft. Bundle SKUs are split into
// their components, missing catalog items degrade the whole order to an empty
// item list, and shipping charges become either synthetic items or ledger
// rows depending on settings.
type OrderBuilder struct {
	catalog   Catalog
	priceList PriceList
	schedule  *DeliverySchedule
	engine    *ReconciliationEngine
	resolver  *TaxAccountResolver
	settings  domain.SyncSettings
	logger    func(context.Context, string, map[string]any)
}

// OrderBuilderDeps enumerates collaborators required to construct the builder.
type OrderBuilderDeps struct {
	Catalog   Catalog
	PriceList PriceList
	Schedule  *DeliverySchedule
	Engine    *ReconciliationEngine
	Resolver  *TaxAccountResolver
	Settings  domain.SyncSettings
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderBuilder wires dependencies into an OrderBuilder.
func NewOrderBuilder(deps OrderBuilderDeps) (*OrderBuilder, error) {
	if deps.Catalog == nil {
		return nil, errors.New("order builder: catalog is required")
	}
	if deps.PriceList == nil {
		return nil, errors.New("order builder: price list is required")
	}
	if deps.Schedule == nil {
		return nil, errors.New("order builder: delivery schedule is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("order builder: reconciliation engine is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("order builder: tax account resolver is required")
	}
	if err := deps.Settings.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &OrderBuilder{
		catalog:   deps.Catalog,
		priceList: deps.PriceList,
		schedule:  deps.Schedule,
		engine:    deps.Engine,
		resolver:  deps.Resolver,
		settings:  deps.Settings,
		logger:    logger,
	}, nil
}

// BuildItemsResult is the item list for one order, or the SKUs that blocked
// it. MissingSKUs non-empty means the order must not be partially created.
type BuildItemsResult struct {
	Items       []domain.OrderItem
	MissingSKUs []string
}

// BuildItems expands the order's line items into sales-order rows. A SKU
// containing the bundle delimiter is split into one row per component, each
// priced from its own price-list entry; single-SKU lines keep the paid price
// with discount (and tax, when prices are tax inclusive) backed out per unit.
// Any SKU without a catalog entry voids the whole item list.
func (b *OrderBuilder) BuildItems(ctx context.Context, order domain.Order) (BuildItemsResult, error) {
	deliveryDate, err := b.schedule.NextWorkingDay(ctx, time.Time{}, false)
	if err != nil {
		return BuildItemsResult{}, err
	}

	var items []domain.OrderItem
	var missing []string

	for _, line := range order.LineItems {
		if line.Quantity <= 0 {
			return BuildItemsResult{}, fmt.Errorf("%w: line %q has quantity %d", ErrOrderBuilderInvalidInput, line.SKU, line.Quantity)
		}

		skus := splitBundleSKU(line.SKU)
		if len(skus) == 0 {
			return BuildItemsResult{}, fmt.Errorf("%w: line %d has no sku", ErrOrderBuilderInvalidInput, line.ID)
		}
		bundle := len(skus) > 1

		for _, sku := range skus {
			entry, err := b.catalog.ItemBySKU(ctx, sku)
			if err != nil {
				if isRepoNotFound(err) {
					missing = append(missing, sku)
					continue
				}
				return BuildItemsResult{}, fmt.Errorf("order builder: catalog lookup %q: %w", sku, err)
			}

			var rate float64
			if bundle {
				rate, err = b.priceList.PriceListRate(ctx, entry.Code, b.settings.SellingPriceList)
				if err != nil {
					return BuildItemsResult{}, fmt.Errorf("order builder: price list lookup %q: %w", entry.Code, err)
				}
			} else {
				rate = perUnitRate(line, order.TaxesIncluded)
			}

			itemName := entry.Name
			if bundle {
				itemName = "Product Bundle > " + line.SKU
			}
			if itemName == "" {
				itemName = entry.Code
			}

			uom := entry.StockUOM
			if uom == "" {
				uom = "Nos"
			}

			items = append(items, domain.OrderItem{
				ItemCode:        entry.Code,
				ItemName:        itemName,
				Description:     entry.Description,
				Rate:            rate,
				ReportedRate:    line.Price.Float64(),
				Quantity:        line.Quantity,
				DeliveryDate:    deliveryDate,
				StockUOM:        uom,
				Warehouse:       b.settings.Warehouse,
				DiscountPerUnit: line.TotalDiscount() / float64(line.Quantity),
			})
		}
	}

	if len(missing) > 0 {
		b.logger(ctx, "order_items_missing", map[string]any{
			"orderId": order.ExternalID(),
			"skus":    missing,
		})
		return BuildItemsResult{MissingSKUs: missing}, nil
	}

	return BuildItemsResult{Items: items}, nil
}

// BuildCharges produces the tax rows for an order and folds shipping charges
// in, either as synthetic items appended to the given item list or as further
// ledger rows. The possibly extended item list and the tax rows are returned.
func (b *OrderBuilder) BuildCharges(ctx context.Context, order domain.Order, items []domain.OrderItem) ([]domain.OrderItem, []domain.TaxCharge, error) {
	// Shipping charges carry their own tax lines; their amounts follow the
	// same whole-order rate policy as order-level taxes.
	taxLines := make([]domain.TaxLine, 0, len(order.TaxLines))
	taxLines = append(taxLines, order.TaxLines...)
	for _, line := range order.ShippingLines {
		taxLines = append(taxLines, line.TaxLines...)
	}

	taxTotals, err := b.engine.Taxes(order.LineItems, order.ShippingLines, taxLines)
	if err != nil {
		return nil, nil, err
	}

	var taxes []domain.TaxCharge

	for _, tax := range order.TaxLines {
		// Zero-rate lines stay in the engine's map but get no ledger row.
		if tax.Rate == 0 {
			continue
		}
		head, err := b.resolver.AccountHead(tax.Title, ChargeTypeSalesTax, &order)
		if err != nil {
			return nil, nil, err
		}
		taxes = append(taxes, domain.TaxCharge{
			ChargeType:  chargeTypeActual,
			AccountHead: head,
			Description: b.taxDescription(tax),
			TaxAmount:   taxTotals[tax.Title],
			CostCenter:  b.settings.CostCenter,
			RatePercent: tax.Rate * 100,
		})
	}

	shippingAsItem := b.settings.ShippingAsItem && b.settings.ShippingItem != ""

	for _, line := range order.ShippingLines {
		if line.Price.Float64() != 0 {
			amount := line.Price.Float64() - line.TotalDiscount()
			if order.TaxesIncluded {
				amount -= line.TotalTax()
			}

			if shippingAsItem {
				items = append(items, domain.OrderItem{
					ItemCode:     b.settings.ShippingItem,
					Rate:         amount,
					ReportedRate: line.Price.Float64(),
					Quantity:     1,
					DeliveryDate: b.shippingDeliveryDate(ctx, items),
					StockUOM:     "Nos",
					Warehouse:    b.settings.Warehouse,
				})
			} else {
				head, err := b.resolver.AccountHead(line.Title, ChargeTypeShipping, nil)
				if err != nil {
					return nil, nil, err
				}
				description := b.resolver.Description(line.Title)
				if description == "" {
					description = line.Title
				}
				taxes = append(taxes, domain.TaxCharge{
					ChargeType:  chargeTypeActual,
					AccountHead: head,
					Description: description,
					TaxAmount:   amount,
					CostCenter:  b.settings.CostCenter,
				})
			}
		}

		// Taxes carried on the shipping charge itself have no address
		// context of their own.
		for _, tax := range line.TaxLines {
			if tax.Rate == 0 {
				continue
			}
			head, err := b.resolver.AccountHead(tax.Title, ChargeTypeSalesTax, nil)
			if err != nil {
				return nil, nil, err
			}
			taxes = append(taxes, domain.TaxCharge{
				ChargeType:  chargeTypeActual,
				AccountHead: head,
				Description: b.taxDescription(tax),
				TaxAmount:   taxTotals[tax.Title],
				CostCenter:  b.settings.CostCenter,
				RatePercent: tax.Rate * 100,
			})
		}
	}

	if b.settings.ConsolidateTaxes {
		taxes = ConsolidateTaxes(taxes)
	}

	return items, taxes, nil
}

func (b *OrderBuilder) taxDescription(tax domain.TaxLine) string {
	if description := b.resolver.Description(tax.Title); description != "" {
		return description
	}
	return fmt.Sprintf("%s - %.2f%%", tax.Title, tax.Rate*100)
}

func (b *OrderBuilder) shippingDeliveryDate(ctx context.Context, items []domain.OrderItem) time.Time {
	if len(items) > 0 {
		return items[len(items)-1].DeliveryDate
	}
	if scheduled, err := b.schedule.NextWorkingDay(ctx, time.Time{}, false); err == nil {
		return scheduled
	}
	return time.Time{}
}

// ConsolidateTaxes merges tax rows sharing an account head into one row per
// account, summing amounts and keeping the first description and cost center.
// First-seen order is preserved.
func ConsolidateTaxes(taxes []domain.TaxCharge) []domain.TaxCharge {
	if len(taxes) <= 1 {
		return taxes
	}

	byAccount := make(map[string]int, len(taxes))
	consolidated := make([]domain.TaxCharge, 0, len(taxes))

	for _, tax := range taxes {
		if idx, ok := byAccount[tax.AccountHead]; ok {
			consolidated[idx].TaxAmount += tax.TaxAmount
			continue
		}
		byAccount[tax.AccountHead] = len(consolidated)
		merged := tax
		merged.RatePercent = 0
		consolidated = append(consolidated, merged)
	}

	return consolidated
}

// perUnitRate backs the per-unit discount, and the per-unit tax when prices
// are tax inclusive, out of the paid unit price. Callers guarantee a positive
// quantity.
func perUnitRate(line domain.LineItem, taxesInclusive bool) float64 {
	price := line.Price.Float64()
	quantity := float64(line.Quantity)

	if !taxesInclusive {
		return price - line.TotalDiscount()/quantity
	}
	return price - (line.TotalTax()+line.TotalDiscount())/quantity
}

func splitBundleSKU(sku string) []string {
	parts := strings.Split(sku, bundleDelimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
