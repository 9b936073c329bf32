package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmart/ledger-engine/ledger"
	"github.com/buildmart/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func f(v float64) *float64 { return &v }

// newCatalog returns a memory store pre-loaded with a Cement product for the
// catalog-fill tests.
func newCatalog(t *testing.T, storeID ledger.StoreID) (*store.Memory, ledger.ProductID) {
	t.Helper()
	mem := store.NewMemory()
	p := ledger.Product{
		ID:        "prod-cement",
		StoreID:   storeID,
		Name:      "Cement",
		Category:  "Cement",
		Unit:      "bag",
		Price:     ledger.NewMoney(300),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, mem.SaveProduct(context.Background(), p))
	return mem, p.ID
}

func fullItem(name string, price, qty, total float64, unit string) ledger.ItemInput {
	return ledger.ItemInput{Name: name, Price: f(price), Quantity: f(qty), Unit: unit, Total: f(total)}
}

// =============================================================================
// LENIENT NORMALIZATION (CREATE PATH)
// =============================================================================

func TestNormalizeItems_EmptyList_Rejected(t *testing.T) {
	// GIVEN: No items at all
	// WHEN: Normalizing for creation
	// THEN: Rejected with a validation error on "items"

	_, err := ledger.NormalizeItems(context.Background(), nil, "store-1", nil)

	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "items", vErr.Field)
}

func TestNormalizeItems_MissingTotal_Computed(t *testing.T) {
	// GIVEN: An item with price and quantity but no total
	// WHEN: Normalizing for creation
	// THEN: Total is computed as price * quantity

	in := []ledger.ItemInput{{Name: "Sand", Price: f(150), Quantity: f(4), Unit: "cft"}}

	items, err := ledger.NormalizeItems(context.Background(), nil, "store-1", in)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Total.EqualsWithin(ledger.NewMoney(600)),
		"total should be 150*4, got %s", items[0].Total)
}

func TestNormalizeItems_MismatchingTotal_Recomputed(t *testing.T) {
	// GIVEN: An item whose client-supplied total is off by more than a cent
	// WHEN: Normalizing for creation (lenient path)
	// THEN: The bad total is silently replaced with price * quantity

	in := []ledger.ItemInput{fullItem("Sand", 150, 4, 9999, "cft")}

	items, err := ledger.NormalizeItems(context.Background(), nil, "store-1", in)

	require.NoError(t, err)
	assert.True(t, items[0].Total.EqualsWithin(ledger.NewMoney(600)),
		"mismatching total should be recomputed, got %s", items[0].Total)
}

func TestNormalizeItems_TotalWithinTolerance_Kept(t *testing.T) {
	// GIVEN: A client total that drifted by under a cent from price*quantity
	// WHEN: Normalizing for creation
	// THEN: The supplied total is kept as-is

	in := []ledger.ItemInput{fullItem("Sand", 150, 4, 600.004, "cft")}

	items, err := ledger.NormalizeItems(context.Background(), nil, "store-1", in)

	require.NoError(t, err)
	assert.Equal(t, "600.004", items[0].Total.String())
}

func TestNormalizeItems_FieldErrors(t *testing.T) {
	// GIVEN: Items each missing one required field
	// WHEN: Normalizing for creation
	// THEN: Each is rejected with an item-scoped validation error naming the defect

	cases := []struct {
		name string
		item ledger.ItemInput
		want string
	}{
		{"missing name", ledger.ItemInput{Price: f(10), Quantity: f(1), Unit: "pc"}, "missing name"},
		{"missing price", ledger.ItemInput{Name: "Brick", Quantity: f(1), Unit: "pc"}, "invalid price"},
		{"negative price", ledger.ItemInput{Name: "Brick", Price: f(-1), Quantity: f(1), Unit: "pc"}, "invalid price"},
		{"missing quantity", ledger.ItemInput{Name: "Brick", Price: f(10), Unit: "pc"}, "invalid quantity"},
		{"zero quantity", ledger.ItemInput{Name: "Brick", Price: f(10), Quantity: f(0), Unit: "pc"}, "invalid quantity"},
		{"missing unit", ledger.ItemInput{Name: "Brick", Price: f(10), Quantity: f(1)}, "missing unit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.NormalizeItems(context.Background(), nil, "store-1", []ledger.ItemInput{tc.item})

			require.Error(t, err)
			var vErr *ledger.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, 0, vErr.Index, "error should carry the item index")
			assert.Contains(t, vErr.Message, tc.want)
		})
	}
}

func TestNormalizeItems_SecondItemBad_IndexReported(t *testing.T) {
	// GIVEN: Two items, the second missing its unit
	// WHEN: Normalizing
	// THEN: The error reports index 1

	in := []ledger.ItemInput{
		fullItem("Sand", 150, 4, 600, "cft"),
		{Name: "Brick", Price: f(12), Quantity: f(100)},
	}

	_, err := ledger.NormalizeItems(context.Background(), nil, "store-1", in)

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, vErr.Index)
}

// =============================================================================
// CATALOG FILL
// =============================================================================

func TestNormalizeItems_CatalogFill(t *testing.T) {
	// GIVEN: An item referencing a catalog product, carrying only a quantity
	// WHEN: Normalizing with the catalog available
	// THEN: Name, price and unit come from the catalog; total is computed

	catalog, productID := newCatalog(t, "store-1")
	in := []ledger.ItemInput{{ProductID: string(productID), Quantity: f(2)}}

	items, err := ledger.NormalizeItems(context.Background(), catalog, "store-1", in)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cement", items[0].Name)
	assert.Equal(t, "bag", items[0].Unit)
	assert.True(t, items[0].Price.EqualsWithin(ledger.NewMoney(300)))
	assert.True(t, items[0].Total.EqualsWithin(ledger.NewMoney(600)))
}

func TestNormalizeItems_CatalogFill_ExplicitFieldsWin(t *testing.T) {
	// GIVEN: An item referencing a catalog product but carrying its own price
	// WHEN: Normalizing
	// THEN: The explicit price wins over the catalog price

	catalog, productID := newCatalog(t, "store-1")
	in := []ledger.ItemInput{{ProductID: string(productID), Price: f(280), Quantity: f(2)}}

	items, err := ledger.NormalizeItems(context.Background(), catalog, "store-1", in)

	require.NoError(t, err)
	assert.True(t, items[0].Price.EqualsWithin(ledger.NewMoney(280)))
	assert.True(t, items[0].Total.EqualsWithin(ledger.NewMoney(560)))
}

func TestNormalizeItems_CatalogFill_UnknownProduct(t *testing.T) {
	// GIVEN: An item referencing a product ID the store does not have
	// WHEN: Normalizing
	// THEN: The catalog lookup failure surfaces as not-found

	catalog, _ := newCatalog(t, "store-1")
	in := []ledger.ItemInput{{ProductID: "no-such-product", Quantity: f(2)}}

	_, err := ledger.NormalizeItems(context.Background(), catalog, "store-1", in)

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestNormalizeItems_CatalogFill_CrossStore(t *testing.T) {
	// GIVEN: An item referencing a product that belongs to ANOTHER store
	// WHEN: Normalizing under a different store ID
	// THEN: The product is invisible; not-found

	catalog, productID := newCatalog(t, "store-1")
	in := []ledger.ItemInput{{ProductID: string(productID), Quantity: f(2)}}

	_, err := ledger.NormalizeItems(context.Background(), catalog, "store-2", in)

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// STRICT NORMALIZATION (UPDATE PATH)
// =============================================================================

func TestNormalizeItemsStrict_MissingTotal_Rejected(t *testing.T) {
	// GIVEN: An item without a total
	// WHEN: Normalizing strictly (full record replacement)
	// THEN: Rejected; the update path never derives a total

	in := []ledger.ItemInput{{Name: "Sand", Price: f(150), Quantity: f(4), Unit: "cft"}}

	_, err := ledger.NormalizeItemsStrict(context.Background(), nil, "store-1", in)

	require.Error(t, err)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "missing total")
}

func TestNormalizeItemsStrict_MismatchingTotal_Rejected(t *testing.T) {
	// GIVEN: An item whose total does not equal price*quantity
	// WHEN: Normalizing strictly
	// THEN: Rejected, never recomputed

	in := []ledger.ItemInput{fullItem("Sand", 150, 4, 650, "cft")}

	_, err := ledger.NormalizeItemsStrict(context.Background(), nil, "store-1", in)

	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

func TestNormalizeItemsStrict_ConsistentItem_Accepted(t *testing.T) {
	// GIVEN: A fully specified, internally consistent item
	// WHEN: Normalizing strictly
	// THEN: Accepted unchanged

	in := []ledger.ItemInput{fullItem("Sand", 150, 4, 600, "cft")}

	items, err := ledger.NormalizeItemsStrict(context.Background(), nil, "store-1", in)

	require.NoError(t, err)
	assert.True(t, items[0].Total.EqualsWithin(ledger.NewMoney(600)))
}

// =============================================================================
// RECORD-LEVEL AMOUNT INVARIANTS
// =============================================================================

func TestValidateTotals_ItemSumMismatch(t *testing.T) {
	// GIVEN: Items summing to 600 but a record total of 700
	// WHEN: Validating the record amounts
	// THEN: Rejected naming totalAmount

	items := []ledger.LineItem{{Name: "Sand", Total: ledger.NewMoney(600)}}

	err := ledger.ValidateTotals(items, ledger.NewMoney(700), ledger.NewMoney(700), ledger.ZeroMoney())

	require.Error(t, err)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "totalAmount", vErr.Field)
}

func TestValidateTotals_PaidPlusDueMismatch(t *testing.T) {
	// GIVEN: paid + due that does not add up to the total
	// WHEN: Validating
	// THEN: Rejected naming paidAmount

	items := []ledger.LineItem{{Name: "Sand", Total: ledger.NewMoney(600)}}

	err := ledger.ValidateTotals(items, ledger.NewMoney(600), ledger.NewMoney(100), ledger.NewMoney(100))

	require.Error(t, err)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "paidAmount", vErr.Field)
}

func TestValidateTotals_ToleranceBoundary(t *testing.T) {
	// GIVEN: Amounts off by exactly one cent vs. off by two cents
	// WHEN: Validating
	// THEN: One cent passes, two cents fails

	items := []ledger.LineItem{{Name: "Sand", Total: ledger.NewMoney(600)}}

	err := ledger.ValidateTotals(items, ledger.NewMoney(600.01), ledger.NewMoney(600.01), ledger.ZeroMoney())
	assert.NoError(t, err, "one cent of drift is within tolerance")

	err = ledger.ValidateTotals(items, ledger.NewMoney(600.02), ledger.NewMoney(600.02), ledger.ZeroMoney())
	assert.Error(t, err, "two cents of drift is outside tolerance")
}

func TestValidateTotals_NegativeAmounts(t *testing.T) {
	// GIVEN: A negative monetary field
	// WHEN: Validating
	// THEN: Rejected before any equality check

	items := []ledger.LineItem{{Name: "Sand", Total: ledger.NewMoney(600)}}

	err := ledger.ValidateTotals(items, ledger.NewMoney(600), ledger.NewMoney(-10), ledger.NewMoney(610))

	require.Error(t, err)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "paidAmount", vErr.Field)
}

func TestValidateStatus(t *testing.T) {
	// GIVEN: Each member of the status set, plus an outsider
	// WHEN: Validating
	// THEN: Members pass, the outsider fails

	for _, s := range []ledger.Status{ledger.StatusPaid, ledger.StatusPartial, ledger.StatusDue} {
		assert.NoError(t, ledger.ValidateStatus(s))
	}
	assert.Error(t, ledger.ValidateStatus(ledger.Status("overdue")))
}

func TestDeriveStatus(t *testing.T) {
	// GIVEN: Various paid/total combinations
	// WHEN: Deriving status
	// THEN: Full payment is paid, partial payment is partial, nothing paid is due

	total := ledger.NewMoney(1200)

	assert.Equal(t, ledger.StatusPaid, ledger.DeriveStatus(total, ledger.NewMoney(1200)))
	assert.Equal(t, ledger.StatusPaid, ledger.DeriveStatus(total, ledger.NewMoney(1500)), "overpayment is still paid")
	assert.Equal(t, ledger.StatusPartial, ledger.DeriveStatus(total, ledger.NewMoney(700)))
	assert.Equal(t, ledger.StatusDue, ledger.DeriveStatus(total, ledger.ZeroMoney()))
}
