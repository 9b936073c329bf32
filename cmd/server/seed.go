package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buildmart/ledger-engine/api"
	"github.com/buildmart/ledger-engine/ledger"
)

// seedDemoStore loads a small building-materials dataset: one store, a few
// customers and suppliers, a product catalog and a handful of sales and
// buyings in mixed payment states. Returns a token for the demo user.
func seedDemoStore(ctx context.Context, store ledger.TxStore, h *api.Handler, secret string) (string, error) {
	userID := ledger.UserID(uuid.NewString())
	shop := ledger.Shop{
		ID:        ledger.StoreID(uuid.NewString()),
		UserID:    userID,
		Name:      "BuildMart Demo",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveShop(ctx, shop); err != nil {
		return "", fmt.Errorf("save shop: %w", err)
	}

	svc := h.Service

	customers := []ledger.PartyInput{
		{Name: "Rahim Traders", Phone: "01711000001", Address: "Station Road"},
		{Name: "Karim Constructions", Phone: "01711000002", Address: "Port Area"},
		{Name: "City Builders", Phone: "01711000003", Address: "New Market"},
	}
	var customerIDs []ledger.CustomerID
	for _, in := range customers {
		c, err := svc.CreateCustomer(ctx, shop.ID, in)
		if err != nil {
			return "", fmt.Errorf("seed customer: %w", err)
		}
		customerIDs = append(customerIDs, c.ID)
	}

	suppliers := []ledger.PartyInput{
		{Name: "National Cement", Phone: "01822000001", Address: "Industrial Zone"},
		{Name: "Delta Sand & Stone", Phone: "01822000002", Address: "River Ghat"},
	}
	var supplierIDs []ledger.SupplierID
	for _, in := range suppliers {
		s, err := svc.CreateSupplier(ctx, shop.ID, in)
		if err != nil {
			return "", fmt.Errorf("seed supplier: %w", err)
		}
		supplierIDs = append(supplierIDs, s.ID)
	}

	products := []ledger.ProductInput{
		{Name: "Cement", Category: "Binder", Unit: "bag", Price: 300, StockQuantity: 500, MinStockLevel: 50},
		{Name: "Sand", Category: "Aggregate", Unit: "cft", Price: 150, StockQuantity: 1200, MinStockLevel: 100},
		{Name: "Brick", Category: "Masonry", Unit: "pc", Price: 12, StockQuantity: 10000, MinStockLevel: 1000},
		{Name: "Rod", Category: "Steel", Unit: "kg", Price: 95, StockQuantity: 3000, MinStockLevel: 200},
	}
	var productIDs []ledger.ProductID
	for _, in := range products {
		p, err := svc.CreateProduct(ctx, shop.ID, in)
		if err != nil {
			return "", fmt.Errorf("seed product: %w", err)
		}
		productIDs = append(productIDs, p.ID)
	}

	identity := ledger.Identity{UserID: userID, StoreID: shop.ID}
	qty := func(f float64) *float64 { return &f }

	sales := []ledger.RecordInput{
		{
			CounterpartyID: string(customerIDs[0]),
			Items: []ledger.ItemInput{
				{ProductID: string(productIDs[0]), Quantity: qty(2)},
				{ProductID: string(productIDs[1]), Quantity: qty(4)},
			},
			TotalAmount: 1200, PaidAmount: 700, DueAmount: 500,
			Status: ledger.StatusPartial,
		},
		{
			CounterpartyID: string(customerIDs[1]),
			Items: []ledger.ItemInput{
				{ProductID: string(productIDs[2]), Quantity: qty(500)},
			},
			TotalAmount: 6000, PaidAmount: 6000, DueAmount: 0,
			Status: ledger.StatusPaid,
		},
		{
			CounterpartyID: string(customerIDs[2]),
			Items: []ledger.ItemInput{
				{ProductID: string(productIDs[3]), Quantity: qty(100)},
			},
			TotalAmount: 9500, PaidAmount: 0, DueAmount: 9500,
			Status: ledger.StatusDue,
		},
	}
	for _, in := range sales {
		if _, err := svc.CreateSale(ctx, identity, in); err != nil {
			return "", fmt.Errorf("seed sale: %w", err)
		}
	}

	buyings := []ledger.RecordInput{
		{
			CounterpartyID: string(supplierIDs[0]),
			Items: []ledger.ItemInput{
				{Name: "Cement (bulk)", Price: qty(280), Quantity: qty(100), Unit: "bag", Custom: true},
			},
			TotalAmount: 28000, PaidAmount: 20000, DueAmount: 8000,
			Status: ledger.StatusPartial,
		},
		{
			CounterpartyID: string(supplierIDs[1]),
			Items: []ledger.ItemInput{
				{Name: "Sand (truck)", Price: qty(9000), Quantity: qty(2), Unit: "truck", Custom: true},
			},
			TotalAmount: 18000, PaidAmount: 18000, DueAmount: 0,
			Status: ledger.StatusPaid,
		},
	}
	for _, in := range buyings {
		if _, err := svc.CreateBuying(ctx, identity, in); err != nil {
			return "", fmt.Errorf("seed buying: %w", err)
		}
	}

	return api.MintToken(secret, userID, 24*time.Hour)
}
