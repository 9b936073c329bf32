package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmart/ledger-engine/ledger"
	"github.com/buildmart/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCustomer(id, phone string) ledger.Customer {
	return ledger.Customer{
		ID:        ledger.CustomerID(id),
		StoreID:   "store-1",
		Name:      "Rahim Traders",
		Phone:     phone,
		Address:   "Mirpur 10, Dhaka",
		CreatedAt: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
}

func testRecord(id string, kind ledger.RecordKind, counterparty string, createdAt time.Time) ledger.Record {
	return ledger.Record{
		ID:             ledger.RecordID(id),
		StoreID:        "store-1",
		Kind:           kind,
		CounterpartyID: counterparty,
		Items: []ledger.LineItem{
			{Name: "Cement", Price: ledger.NewMoney(300), Quantity: decimal.NewFromInt(2), Unit: "bag", Total: ledger.NewMoney(600)},
			{Name: "Sand", Price: ledger.NewMoney(150), Quantity: decimal.NewFromInt(4), Unit: "cft", Total: ledger.NewMoney(600)},
		},
		TotalAmount: ledger.NewMoney(1200),
		PaidAmount:  ledger.NewMoney(700),
		DueAmount:   ledger.NewMoney(500),
		Status:      ledger.StatusPartial,
		CreatedBy:   "user-1",
		CreatedAt:   createdAt,
	}
}

// =============================================================================
// SHOPS
// =============================================================================

func TestSQLite_ShopRoundTrip(t *testing.T) {
	// GIVEN: A saved shop
	// WHEN: Looking it up by its owner
	// THEN: All fields survive the round trip

	store := newTestStore(t)
	ctx := context.Background()

	shop := ledger.Shop{
		ID: "store-1", UserID: "user-1", Name: "BuildMart",
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveShop(ctx, shop))

	got, err := store.ShopByUser(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, shop.ID, got.ID)
	assert.Equal(t, shop.Name, got.Name)
	assert.True(t, got.CreatedAt.Equal(shop.CreatedAt))
}

func TestSQLite_ShopByUser_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ShopByUser(context.Background(), "nobody")

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestSQLite_CustomerLifecycle(t *testing.T) {
	// GIVEN: A saved customer
	// WHEN: Reading, updating, and deleting
	// THEN: Each step observes the previous one

	store := newTestStore(t)
	ctx := context.Background()
	c := testCustomer("cust-1", "01711111111")

	require.NoError(t, store.SaveCustomer(ctx, c))

	got, err := store.CustomerByID(ctx, "store-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.True(t, got.CreatedAt.Equal(c.CreatedAt))

	got.Address = "Uttara, Dhaka"
	require.NoError(t, store.UpdateCustomer(ctx, *got))
	got, err = store.CustomerByID(ctx, "store-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Uttara, Dhaka", got.Address)

	require.NoError(t, store.DeleteCustomer(ctx, "store-1", "cust-1"))
	_, err = store.CustomerByID(ctx, "store-1", "cust-1")
	assert.True(t, ledger.IsNotFound(err))
}

func TestSQLite_CustomerDuplicatePhone(t *testing.T) {
	// GIVEN: A registered phone number
	// WHEN: Saving a second customer with the same phone, even in another store
	// THEN: The UNIQUE constraint surfaces as the duplicate-phone sentinel

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, testCustomer("cust-1", "01711111111")))

	dup := testCustomer("cust-2", "01711111111")
	dup.StoreID = "store-2"
	err := store.SaveCustomer(ctx, dup)

	assert.ErrorIs(t, err, ledger.ErrDuplicatePhone)
}

func TestSQLite_CustomerSearch(t *testing.T) {
	// GIVEN: Two customers
	// WHEN: Searching by a name fragment and by a phone fragment
	// THEN: Case-insensitive substring match on either field

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, testCustomer("cust-1", "01711111111")))
	karim := testCustomer("cust-2", "01822222222")
	karim.Name = "Karim Bricks"
	require.NoError(t, store.SaveCustomer(ctx, karim))

	byName, err := store.ListCustomers(ctx, "store-1", "karim")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Karim Bricks", byName[0].Name)

	byPhone, err := store.ListCustomers(ctx, "store-1", "0171")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Rahim Traders", byPhone[0].Name)
}

func TestSQLite_CountCustomers_Windowed(t *testing.T) {
	// GIVEN: Customers created in different months
	// WHEN: Counting with and without a window
	// THEN: The window restricts by created_at

	store := newTestStore(t)
	ctx := context.Background()

	old := testCustomer("cust-1", "01711111111")
	old.CreatedAt = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCustomer(ctx, old))
	recent := testCustomer("cust-2", "01822222222")
	recent.CreatedAt = time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCustomer(ctx, recent))

	all, err := store.CountCustomers(ctx, "store-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	june := ledger.Window{
		Start: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 30, 23, 59, 59, 999_000_000, time.UTC),
	}
	windowed, err := store.CountCustomers(ctx, "store-1", &june)
	require.NoError(t, err)
	assert.Equal(t, 1, windowed)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestSQLite_ProductRoundTrip_DecimalFidelity(t *testing.T) {
	// GIVEN: A product with fractional price and stock
	// WHEN: Round-tripping through TEXT columns
	// THEN: The decimal values come back exact

	store := newTestStore(t)
	ctx := context.Background()

	p := ledger.Product{
		ID: "prod-1", StoreID: "store-1", Name: "Rod", Category: "Steel", Unit: "kg",
		Price:         ledger.NewMoney(95.75),
		StockQuantity: decimal.NewFromFloat(1250.5),
		MinStockLevel: decimal.NewFromInt(100),
		Description:   "60 grade",
		CreatedAt:     time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveProduct(ctx, p))

	got, err := store.ProductByID(ctx, "store-1", "prod-1")

	require.NoError(t, err)
	assert.Equal(t, "95.75", got.Price.String())
	assert.True(t, got.StockQuantity.Equal(decimal.NewFromFloat(1250.5)))
	assert.Equal(t, "60 grade", got.Description)
}

func TestSQLite_ListProducts_PriceRange(t *testing.T) {
	// GIVEN: Products at 100, 300 and 500
	// WHEN: Filtering 200..400
	// THEN: Numeric comparison works despite TEXT storage

	store := newTestStore(t)
	ctx := context.Background()
	for i, price := range []float64{100, 300, 500} {
		require.NoError(t, store.SaveProduct(ctx, ledger.Product{
			ID:      ledger.ProductID(fmt.Sprintf("prod-%d", i)),
			StoreID: "store-1", Name: fmt.Sprintf("P%d", i), Category: "Misc", Unit: "pc",
			Price:     ledger.NewMoney(price),
			CreatedAt: time.Now().UTC(),
		}))
	}

	min, max := 200.0, 400.0
	got, err := store.ListProducts(ctx, ledger.ProductQuery{StoreID: "store-1", MinPrice: &min, MaxPrice: &max})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.EqualsWithin(ledger.NewMoney(300)))
}

func TestSQLite_ListProducts_Pagination(t *testing.T) {
	// GIVEN: 25 products
	// WHEN: Paging with the default limit
	// THEN: 20 then 5

	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.SaveProduct(ctx, ledger.Product{
			ID:      ledger.ProductID(fmt.Sprintf("prod-%02d", i)),
			StoreID: "store-1", Name: fmt.Sprintf("Product %02d", i), Category: "Misc", Unit: "pc",
			Price:     ledger.NewMoney(10),
			CreatedAt: time.Now().UTC(),
		}))
	}

	page1, err := store.ListProducts(ctx, ledger.ProductQuery{StoreID: "store-1"})
	require.NoError(t, err)
	assert.Len(t, page1, 20)

	page2, err := store.ListProducts(ctx, ledger.ProductQuery{StoreID: "store-1", Page: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 5)
}

// =============================================================================
// RECORDS
// =============================================================================

func TestSQLite_RecordRoundTrip(t *testing.T) {
	// GIVEN: A two-item partial sale
	// WHEN: Round-tripping through the items_json document
	// THEN: Items, amounts, status and timestamp all survive

	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, time.June, 17, 14, 30, 45, 123_000_000, time.UTC)
	rec := testRecord("rec-1", ledger.KindSale, "cust-1", created)

	require.NoError(t, store.SaveRecord(ctx, rec))
	got, err := store.RecordByID(ctx, "store-1", "rec-1")

	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Cement", got.Items[0].Name)
	assert.True(t, got.Items[0].Price.EqualsWithin(ledger.NewMoney(300)))
	assert.True(t, got.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, got.TotalAmount.EqualsWithin(ledger.NewMoney(1200)))
	assert.True(t, got.DueAmount.EqualsWithin(ledger.NewMoney(500)))
	assert.Equal(t, ledger.StatusPartial, got.Status)
	assert.True(t, got.CreatedAt.Equal(created), "millisecond timestamps survive")
}

func TestSQLite_RecordCrossStore_NotFound(t *testing.T) {
	// GIVEN: A record under store-1
	// WHEN: Reading it scoped to store-2
	// THEN: Not-found; tenancy filters every query

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRecord(ctx, testRecord("rec-1", ledger.KindSale, "cust-1", time.Now().UTC())))

	_, err := store.RecordByID(ctx, "store-2", "rec-1")

	assert.True(t, ledger.IsNotFound(err))
}

func TestSQLite_ListRecords_FiltersAndOrder(t *testing.T) {
	// GIVEN: Sales and buyings across three days
	// WHEN: Querying by kind, status, counterparty and window
	// THEN: Each filter applies; results come back newest first

	store := newTestStore(t)
	ctx := context.Background()

	jun15 := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	jun16 := time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC)
	jun17 := time.Date(2025, time.June, 17, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRecord(ctx, testRecord("sale-1", ledger.KindSale, "cust-1", jun15)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("sale-2", ledger.KindSale, "cust-2", jun17)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("buy-1", ledger.KindBuying, "sup-1", jun16)))

	sales, err := store.ListRecords(ctx, ledger.RecordQuery{StoreID: "store-1", Kind: ledger.KindSale})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, ledger.RecordID("sale-2"), sales[0].ID, "newest first")
	assert.Equal(t, ledger.RecordID("sale-1"), sales[1].ID)

	byCounterparty, err := store.ListRecords(ctx, ledger.RecordQuery{StoreID: "store-1", CounterpartyID: "cust-1"})
	require.NoError(t, err)
	require.Len(t, byCounterparty, 1)

	byStatus, err := store.ListRecords(ctx, ledger.RecordQuery{StoreID: "store-1", Status: ledger.StatusPaid})
	require.NoError(t, err)
	assert.Empty(t, byStatus, "everything seeded is partial")

	window := ledger.Window{
		Start: time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 16, 23, 59, 59, 999_000_000, time.UTC),
	}
	windowed, err := store.ListRecords(ctx, ledger.RecordQuery{StoreID: "store-1", Window: &window})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, ledger.RecordID("buy-1"), windowed[0].ID)
}

func TestSQLite_DeleteRecordsByCounterparty(t *testing.T) {
	// GIVEN: Two sales for one customer and a buying for a supplier
	// WHEN: Deleting the customer's sales
	// THEN: Only those two go; the buying is untouched

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveRecord(ctx, testRecord("sale-1", ledger.KindSale, "cust-1", now)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("sale-2", ledger.KindSale, "cust-1", now)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("buy-1", ledger.KindBuying, "sup-1", now)))

	require.NoError(t, store.DeleteRecordsByCounterparty(ctx, "store-1", ledger.KindSale, "cust-1"))

	remaining, err := store.ListRecords(ctx, ledger.RecordQuery{StoreID: "store-1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ledger.RecordID("buy-1"), remaining[0].ID)
}

func TestSQLite_UpdateRecord_Unknown(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateRecord(context.Background(), testRecord("ghost", ledger.KindSale, "cust-1", time.Now().UTC()))

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A customer and their sale
	// WHEN: A transaction deletes both and then fails
	// THEN: Both are back after the rollback

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, testCustomer("cust-1", "01711111111")))
	require.NoError(t, store.SaveRecord(ctx, testRecord("sale-1", ledger.KindSale, "cust-1", time.Now().UTC())))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeleteRecordsByCounterparty(ctx, "store-1", ledger.KindSale, "cust-1"); err != nil {
			return err
		}
		if err := tx.DeleteCustomer(ctx, "store-1", "cust-1"); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	_, err = store.CustomerByID(ctx, "store-1", "cust-1")
	assert.NoError(t, err, "customer should survive the rollback")
	_, err = store.RecordByID(ctx, "store-1", "sale-1")
	assert.NoError(t, err, "sale should survive the rollback")
}

func TestSQLite_WithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: A transaction writes a customer and reads it back before commit
	// THEN: The read sees the write; reads inside the tx run on the tx

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SaveCustomer(ctx, testCustomer("cust-1", "01711111111")); err != nil {
			return err
		}
		got, err := tx.CustomerByID(ctx, "store-1", "cust-1")
		if err != nil {
			return err
		}
		if got.Name != "Rahim Traders" {
			return fmt.Errorf("unexpected name %q", got.Name)
		}
		return nil
	})

	require.NoError(t, err)
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	// GIVEN: A customer
	// WHEN: A transaction deletes them and succeeds
	// THEN: The delete sticks

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, testCustomer("cust-1", "01711111111")))

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		return tx.DeleteCustomer(ctx, "store-1", "cust-1")
	})

	require.NoError(t, err)
	_, err = store.CustomerByID(ctx, "store-1", "cust-1")
	assert.True(t, ledger.IsNotFound(err))
}
