/*
records.go - Ledger record operations

PURPOSE:
  The write side of the engine: creating sales and buyings, patching records,
  recording payments, and the master-data lifecycle including the customer
  cascade delete.

CONSISTENCY RULES:
  - Creation validates counterparty existence, normalizes items (lenient
    total recompute), checks the amount invariants, and trusts the caller's
    status after a membership check.
  - A patch that includes items revalidates them strictly and recomputes
    totalAmount from the items, overwriting whatever total the client sent.
  - A patch without items revalidates paid/due against the stored total.
  - RecordPayment is the only amount mutation outside a patch: paid grows by
    the payment, due floors at zero, status is derived. It is NOT idempotent;
    a duplicate call double-counts. Retry suppression belongs at the edge.

CASCADE ASYMMETRY (inherited, documented, intentional):
  Deleting a customer deletes all of their sales first, transactionally.
  Deleting a supplier leaves its buying records orphaned.

SEE ALSO:
  - validate.go: item/amount validation used here
  - metrics.go:  the read side
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service executes ledger mutations against a transactional store.
type Service struct {
	store TxStore

	// Now is the clock used for CreatedAt stamps. Overridable in tests.
	Now func() time.Time
}

func NewService(store TxStore) *Service {
	return &Service{store: store, Now: time.Now}
}

// RecordInput is the payload for creating a sale or buying.
type RecordInput struct {
	CounterpartyID string
	Items          []ItemInput
	TotalAmount    float64
	PaidAmount     float64
	DueAmount      float64
	Status         Status
}

// RecordPatch carries a partial update. Only whitelisted fields exist here;
// nil means "leave unchanged".
type RecordPatch struct {
	Items       []ItemInput // nil = no item change; empty slice = invalid
	HasItems    bool
	TotalAmount *float64
	PaidAmount  *float64
	DueAmount   *float64
	Status      *Status
}

// =============================================================================
// CREATE
// =============================================================================

// CreateSale validates and persists a sale for the identity's store. The
// customer must exist under that store.
func (s *Service) CreateSale(ctx context.Context, id Identity, in RecordInput) (*Record, error) {
	if _, err := s.store.CustomerByID(ctx, id.StoreID, CustomerID(in.CounterpartyID)); err != nil {
		return nil, internal("lookup customer", err)
	}
	return s.createRecord(ctx, id, KindSale, in)
}

// CreateBuying validates and persists a purchase for the identity's store.
// The supplier must exist under that store.
func (s *Service) CreateBuying(ctx context.Context, id Identity, in RecordInput) (*Record, error) {
	if _, err := s.store.SupplierByID(ctx, id.StoreID, SupplierID(in.CounterpartyID)); err != nil {
		return nil, internal("lookup supplier", err)
	}
	return s.createRecord(ctx, id, KindBuying, in)
}

func (s *Service) createRecord(ctx context.Context, id Identity, kind RecordKind, in RecordInput) (*Record, error) {
	items, err := NormalizeItems(ctx, s.store, id.StoreID, in.Items)
	if err != nil {
		return nil, internal("normalize items", err)
	}

	total := NewMoney(in.TotalAmount)
	paid := NewMoney(in.PaidAmount)
	due := NewMoney(in.DueAmount)

	if err := ValidateTotals(items, total, paid, due); err != nil {
		return nil, err
	}
	// Status is caller-supplied at creation; only membership is checked.
	if err := ValidateStatus(in.Status); err != nil {
		return nil, err
	}

	rec := Record{
		ID:             RecordID(uuid.NewString()),
		StoreID:        id.StoreID,
		Kind:           kind,
		CounterpartyID: in.CounterpartyID,
		Items:          items,
		TotalAmount:    total,
		PaidAmount:     paid,
		DueAmount:      due,
		Status:         in.Status,
		CreatedBy:      id.UserID,
		CreatedAt:      s.Now().UTC(),
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return nil, internal("save record", err)
	}
	return &rec, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateRecord applies a whitelisted patch to a record scoped to storeID.
//
// When the patch carries items, they are validated strictly (a mismatching
// item total rejects) and totalAmount is recomputed from the items, ignoring
// any client-supplied total. Without items, paid/due are revalidated against
// the stored total.
func (s *Service) UpdateRecord(ctx context.Context, storeID StoreID, recordID RecordID, patch RecordPatch) (*Record, error) {
	rec, err := s.store.RecordByID(ctx, storeID, recordID)
	if err != nil {
		return nil, internal("lookup record", err)
	}

	if patch.HasItems {
		items, err := NormalizeItemsStrict(ctx, s.store, storeID, patch.Items)
		if err != nil {
			return nil, internal("normalize items", err)
		}
		rec.Items = items
		rec.TotalAmount = rec.ItemsTotal() // overwrites any client total
	} else if patch.TotalAmount != nil {
		rec.TotalAmount = NewMoney(*patch.TotalAmount)
	}

	if patch.PaidAmount != nil {
		rec.PaidAmount = NewMoney(*patch.PaidAmount)
	}
	if patch.DueAmount != nil {
		rec.DueAmount = NewMoney(*patch.DueAmount)
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}

	if err := ValidateTotals(rec.Items, rec.TotalAmount, rec.PaidAmount, rec.DueAmount); err != nil {
		return nil, err
	}
	if err := ValidateStatus(rec.Status); err != nil {
		return nil, err
	}

	if err := s.store.UpdateRecord(ctx, *rec); err != nil {
		return nil, internal("update record", err)
	}
	return rec, nil
}

// RecordPayment applies an additional payment to a record. The amount must be
// positive; due floors at zero and status is derived from the new amounts.
// Duplicate submissions double-count: callers must suppress retries.
func (s *Service) RecordPayment(ctx context.Context, storeID StoreID, recordID RecordID, amount float64) (*Record, error) {
	if amount <= 0 {
		return nil, validationf("amount", "payment must be greater than zero")
	}

	rec, err := s.store.RecordByID(ctx, storeID, recordID)
	if err != nil {
		return nil, internal("lookup record", err)
	}

	rec.PaidAmount = rec.PaidAmount.Add(NewMoney(amount))
	rec.DueAmount = rec.TotalAmount.Sub(rec.PaidAmount).Max(ZeroMoney())
	rec.Status = DeriveStatus(rec.TotalAmount, rec.PaidAmount)

	if err := s.store.UpdateRecord(ctx, *rec); err != nil {
		return nil, internal("update record", err)
	}
	return rec, nil
}

// DeleteRecord removes a single sale or buying scoped to storeID.
func (s *Service) DeleteRecord(ctx context.Context, storeID StoreID, recordID RecordID) error {
	return internal("delete record", s.store.DeleteRecord(ctx, storeID, recordID))
}

// =============================================================================
// RECORD QUERIES
// =============================================================================

// SalesByCustomer returns the customer's sales, newest first. The customer
// must exist under the store.
func (s *Service) SalesByCustomer(ctx context.Context, storeID StoreID, customerID CustomerID) ([]Record, error) {
	if _, err := s.store.CustomerByID(ctx, storeID, customerID); err != nil {
		return nil, internal("lookup customer", err)
	}
	recs, err := s.store.ListRecords(ctx, RecordQuery{
		StoreID: storeID, Kind: KindSale, CounterpartyID: string(customerID),
	})
	return recs, internal("list sales", err)
}

// BuyingsBySupplier returns the supplier's purchases, newest first.
func (s *Service) BuyingsBySupplier(ctx context.Context, storeID StoreID, supplierID SupplierID) ([]Record, error) {
	if _, err := s.store.SupplierByID(ctx, storeID, supplierID); err != nil {
		return nil, internal("lookup supplier", err)
	}
	recs, err := s.store.ListRecords(ctx, RecordQuery{
		StoreID: storeID, Kind: KindBuying, CounterpartyID: string(supplierID),
	})
	return recs, internal("list buyings", err)
}

// ListRecords returns records matching the query, newest first.
func (s *Service) ListRecords(ctx context.Context, q RecordQuery) ([]Record, error) {
	recs, err := s.store.ListRecords(ctx, q)
	return recs, internal("list records", err)
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

// PartyInput is the payload for creating or updating a customer or supplier.
type PartyInput struct {
	Name    string
	Phone   string
	Address string
}

// CreateCustomer registers a customer under the store. Phone numbers are
// unique across the system.
func (s *Service) CreateCustomer(ctx context.Context, storeID StoreID, in PartyInput) (*Customer, error) {
	if err := validateParty(in); err != nil {
		return nil, err
	}
	c := Customer{
		ID:        CustomerID(uuid.NewString()),
		StoreID:   storeID,
		Name:      in.Name,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: s.Now().UTC(),
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return nil, internal("save customer", err)
	}
	return &c, nil
}

// UpdateCustomer replaces the customer's contact fields.
func (s *Service) UpdateCustomer(ctx context.Context, storeID StoreID, id CustomerID, in PartyInput) (*Customer, error) {
	if err := validateParty(in); err != nil {
		return nil, err
	}
	c, err := s.store.CustomerByID(ctx, storeID, id)
	if err != nil {
		return nil, internal("lookup customer", err)
	}
	c.Name, c.Phone, c.Address = in.Name, in.Phone, in.Address
	if err := s.store.UpdateCustomer(ctx, *c); err != nil {
		return nil, internal("update customer", err)
	}
	return c, nil
}

// DeleteCustomer removes the customer AND every sale referencing them, inside
// one storage transaction: if the sales cannot be deleted the customer
// survives. Silent orphaning is worse than a failed delete.
func (s *Service) DeleteCustomer(ctx context.Context, storeID StoreID, id CustomerID) error {
	if _, err := s.store.CustomerByID(ctx, storeID, id); err != nil {
		return internal("lookup customer", err)
	}
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.DeleteRecordsByCounterparty(ctx, storeID, KindSale, string(id)); err != nil {
			return err
		}
		return tx.DeleteCustomer(ctx, storeID, id)
	})
	return internal("delete customer", err)
}

// CreateSupplier registers a supplier under the store.
func (s *Service) CreateSupplier(ctx context.Context, storeID StoreID, in PartyInput) (*Supplier, error) {
	if err := validateParty(in); err != nil {
		return nil, err
	}
	sup := Supplier{
		ID:        SupplierID(uuid.NewString()),
		StoreID:   storeID,
		Name:      in.Name,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: s.Now().UTC(),
	}
	if err := s.store.SaveSupplier(ctx, sup); err != nil {
		return nil, internal("save supplier", err)
	}
	return &sup, nil
}

// UpdateSupplier replaces the supplier's contact fields.
func (s *Service) UpdateSupplier(ctx context.Context, storeID StoreID, id SupplierID, in PartyInput) (*Supplier, error) {
	if err := validateParty(in); err != nil {
		return nil, err
	}
	sup, err := s.store.SupplierByID(ctx, storeID, id)
	if err != nil {
		return nil, internal("lookup supplier", err)
	}
	sup.Name, sup.Phone, sup.Address = in.Name, in.Phone, in.Address
	if err := s.store.UpdateSupplier(ctx, *sup); err != nil {
		return nil, internal("update supplier", err)
	}
	return sup, nil
}

// DeleteSupplier removes the supplier only. Buying records keep their
// supplierId and become orphans. Asymmetric with DeleteCustomer on purpose:
// this mirrors the system's documented behavior and is not silently "fixed".
func (s *Service) DeleteSupplier(ctx context.Context, storeID StoreID, id SupplierID) error {
	if _, err := s.store.SupplierByID(ctx, storeID, id); err != nil {
		return internal("lookup supplier", err)
	}
	return internal("delete supplier", s.store.DeleteSupplier(ctx, storeID, id))
}

func validateParty(in PartyInput) error {
	if in.Name == "" {
		return validationf("name", "is required")
	}
	if in.Phone == "" {
		return validationf("phone", "is required")
	}
	if in.Address == "" {
		return validationf("address", "is required")
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductInput is the payload for creating or updating a catalog product.
type ProductInput struct {
	Name          string
	Category      string
	Unit          string
	Price         float64
	StockQuantity float64
	MinStockLevel float64
	Description   string
}

// CreateProduct adds a product to the store's catalog.
func (s *Service) CreateProduct(ctx context.Context, storeID StoreID, in ProductInput) (*Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	p := newProduct(storeID, in)
	p.CreatedAt = s.Now().UTC()
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return nil, internal("save product", err)
	}
	return &p, nil
}

// UpdateProduct replaces a catalog product's fields. Historical records are
// unaffected: line items snapshot price at transaction time.
func (s *Service) UpdateProduct(ctx context.Context, storeID StoreID, id ProductID, in ProductInput) (*Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	existing, err := s.store.ProductByID(ctx, storeID, id)
	if err != nil {
		return nil, internal("lookup product", err)
	}
	p := newProduct(storeID, in)
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, internal("update product", err)
	}
	return &p, nil
}

// ListProducts returns catalog products matching the query's filters,
// paginated.
func (s *Service) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	products, err := s.store.ListProducts(ctx, q)
	return products, internal("list products", err)
}

// DeleteProduct removes a catalog product. Records referencing it keep their
// snapshots.
func (s *Service) DeleteProduct(ctx context.Context, storeID StoreID, id ProductID) error {
	return internal("delete product", s.store.DeleteProduct(ctx, storeID, id))
}

func newProduct(storeID StoreID, in ProductInput) Product {
	return Product{
		ID:            ProductID(uuid.NewString()),
		StoreID:       storeID,
		Name:          in.Name,
		Category:      in.Category,
		Unit:          in.Unit,
		Price:         NewMoney(in.Price),
		StockQuantity: decimalFromFloat(in.StockQuantity),
		MinStockLevel: decimalFromFloat(in.MinStockLevel),
		Description:   in.Description,
	}
}

func validateProduct(in ProductInput) error {
	switch {
	case in.Name == "":
		return validationf("name", "is required")
	case in.Category == "":
		return validationf("category", "is required")
	case in.Unit == "":
		return validationf("unit", "is required")
	case in.Price < 0:
		return validationf("price", "must be non-negative")
	case in.StockQuantity < 0:
		return validationf("stockQuantity", "must be non-negative")
	case in.MinStockLevel < 0:
		return validationf("minStockLevel", "must be non-negative")
	}
	return nil
}
