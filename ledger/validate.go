/*
validate.go - Line-item and amount validation

PURPOSE:
  Turns client-supplied item lists into normalized LineItems and checks the
  record-level amount invariants before anything is persisted.

TWO ENTRY POINTS, DELIBERATELY ASYMMETRIC:
  NormalizeItems       (create path)  - a missing or mismatching item total is
                                        silently recomputed as price*quantity
  NormalizeItemsStrict (update path)  - every item must carry a total, and a
                                        total off by more than the tolerance is
                                        a hard ValidationError

  The asymmetry is inherited behavior: creation is lenient and derives, full
  record replacement is strict. Both paths must stay distinct.

CATALOG FILL:
  An item may reference a catalog product by ID. Missing name/price/unit are
  then filled from the catalog. The price is copied, not referenced: catalog
  price changes never touch historical records.

SEE ALSO:
  - records.go: calls these before persisting
  - errors.go:  ValidationError carries the offending item index
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// ItemInput is a candidate line item as supplied by a client. Pointer fields
// distinguish "absent" from zero.
type ItemInput struct {
	ProductID string   `json:"productId,omitempty"`
	Name      string   `json:"name,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Total     *float64 `json:"total,omitempty"`
	Custom    bool     `json:"custom,omitempty"`
}

// CatalogLookup resolves catalog products for item fill. Implemented by the
// persistence Store.
type CatalogLookup interface {
	ProductByID(ctx context.Context, storeID StoreID, id ProductID) (*Product, error)
}

// =============================================================================
// ITEM NORMALIZATION
// =============================================================================

// NormalizeItems validates and normalizes items for record creation. The item
// total is recomputed from price*quantity whenever it is absent, negative, or
// off by more than MoneyTolerance.
func NormalizeItems(ctx context.Context, catalog CatalogLookup, storeID StoreID, inputs []ItemInput) ([]LineItem, error) {
	return normalizeItems(ctx, catalog, storeID, inputs, false)
}

// NormalizeItemsStrict validates items for full-record replacement. Every item
// must carry name, price, quantity and total; a total that does not equal
// price*quantity within MoneyTolerance is rejected, never recomputed.
func NormalizeItemsStrict(ctx context.Context, catalog CatalogLookup, storeID StoreID, inputs []ItemInput) ([]LineItem, error) {
	return normalizeItems(ctx, catalog, storeID, inputs, true)
}

func normalizeItems(ctx context.Context, catalog CatalogLookup, storeID StoreID, inputs []ItemInput, strict bool) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, validationf("items", "at least one item is required")
	}

	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		item, err := normalizeItem(ctx, catalog, storeID, in, i, strict)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func normalizeItem(ctx context.Context, catalog CatalogLookup, storeID StoreID, in ItemInput, idx int, strict bool) (LineItem, error) {
	name := in.Name
	unit := in.Unit
	price := in.Price

	// Catalog fill: an item referencing a product by ID inherits any missing
	// name/price/unit from the catalog snapshot.
	if in.ProductID != "" && catalog != nil {
		product, err := catalog.ProductByID(ctx, storeID, ProductID(in.ProductID))
		if err != nil {
			return LineItem{}, err
		}
		if name == "" {
			name = product.Name
		}
		if unit == "" {
			unit = product.Unit
		}
		if price == nil {
			p := product.Price.Float64()
			price = &p
		}
	}

	if name == "" {
		return LineItem{}, itemErrorf(idx, "missing name")
	}
	if price == nil || *price < 0 {
		return LineItem{}, itemErrorf(idx, "invalid price")
	}
	if in.Quantity == nil || *in.Quantity <= 0 {
		return LineItem{}, itemErrorf(idx, "invalid quantity")
	}
	if unit == "" {
		return LineItem{}, itemErrorf(idx, "missing unit")
	}

	priceM := NewMoney(*price)
	quantity := decimal.NewFromFloat(*in.Quantity)
	expected := priceM.Mul(quantity)

	total := expected
	if in.Total != nil && *in.Total >= 0 {
		supplied := NewMoney(*in.Total)
		if supplied.EqualsWithin(expected) {
			total = supplied
		} else if strict {
			return LineItem{}, itemErrorf(idx, "total %s does not match price*quantity", supplied)
		}
		// lenient path: mismatching total is recomputed
	} else if strict {
		return LineItem{}, itemErrorf(idx, "missing total")
	}

	return LineItem{
		Name:     name,
		Price:    priceM,
		Quantity: quantity,
		Unit:     unit,
		Total:    total,
		Custom:   in.Custom,
	}, nil
}

// =============================================================================
// RECORD-LEVEL INVARIANTS
// =============================================================================

// ValidateTotals checks the two amount equalities:
//
//	totalAmount == sum(items[i].Total)
//	paidAmount + dueAmount == totalAmount
//
// both within MoneyTolerance, plus non-negativity of every monetary field.
// The returned error names which equality failed.
func ValidateTotals(items []LineItem, total, paid, due Money) error {
	if total.IsNegative() {
		return validationf("totalAmount", "must be non-negative")
	}
	if paid.IsNegative() {
		return validationf("paidAmount", "must be non-negative")
	}
	if due.IsNegative() {
		return validationf("dueAmount", "must be non-negative")
	}

	sum := ZeroMoney()
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	if !total.EqualsWithin(sum) {
		return validationf("totalAmount", "does not match sum of items (%s != %s)", total, sum)
	}
	if !paid.Add(due).EqualsWithin(total) {
		return validationf("paidAmount", "paid + due must equal total (%s + %s != %s)", paid, due, total)
	}
	return nil
}

// ValidateStatus checks membership in {paid, partial, due}.
func ValidateStatus(s Status) error {
	if !ValidStatus(s) {
		return validationf("status", "must be one of: paid, partial, due")
	}
	return nil
}
