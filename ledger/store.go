/*
store.go - Persistence interface for ledger data

PURPOSE:
  Defines the boundary between the engine and the database. Implementations
  exist for SQLite (store/sqlite) and in-memory (ledger/store). Every query is
  store-scoped: an entity that exists under another store is reported as
  NotFound, never leaked.

ERROR CONTRACT:
  - *ByID lookups return a *NotFoundError when the entity is missing or
    belongs to a different store.
  - SaveCustomer / SaveSupplier return ErrDuplicatePhone on a phone-number
    uniqueness violation.
  - Everything else is an implementation-level error; the engine wraps it as
    InternalError before it reaches a caller.

TRANSACTIONS:
  TxStore.WithTx runs a function against a transactional view of the store.
  The cascade delete (customer + their sales) depends on it: either both
  deletions land or neither does.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - ledger/store/memory.go: in-memory implementation for tests
*/
package ledger

import "context"

// =============================================================================
// QUERY TYPES
// =============================================================================

// RecordQuery filters ledger records. Zero values mean "any"; Window nil
// means all time. Results are ordered newest first.
type RecordQuery struct {
	StoreID        StoreID
	Kind           RecordKind
	CounterpartyID string
	Status         Status
	Window         *Window
}

// ProductQuery filters the product catalog. Category "All" (or empty) matches
// everything. Page is 1-based; Limit <= 0 selects a default of 20.
type ProductQuery struct {
	StoreID  StoreID
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
	MinStock *float64
	MaxStock *float64
	Page     int
	Limit    int
}

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store is the persistence interface the engine runs against.
type Store interface {
	CatalogLookup

	// Tenancy
	SaveShop(ctx context.Context, s Shop) error
	ShopByUser(ctx context.Context, userID UserID) (*Shop, error)

	// Customers
	SaveCustomer(ctx context.Context, c Customer) error
	UpdateCustomer(ctx context.Context, c Customer) error
	CustomerByID(ctx context.Context, storeID StoreID, id CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context, storeID StoreID, search string) ([]Customer, error)
	DeleteCustomer(ctx context.Context, storeID StoreID, id CustomerID) error
	CountCustomers(ctx context.Context, storeID StoreID, w *Window) (int, error)

	// Suppliers
	SaveSupplier(ctx context.Context, s Supplier) error
	UpdateSupplier(ctx context.Context, s Supplier) error
	SupplierByID(ctx context.Context, storeID StoreID, id SupplierID) (*Supplier, error)
	ListSuppliers(ctx context.Context, storeID StoreID, search string) ([]Supplier, error)
	DeleteSupplier(ctx context.Context, storeID StoreID, id SupplierID) error
	CountSuppliers(ctx context.Context, storeID StoreID, w *Window) (int, error)

	// Products (ProductByID comes from CatalogLookup)
	SaveProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	DeleteProduct(ctx context.Context, storeID StoreID, id ProductID) error

	// Ledger records
	SaveRecord(ctx context.Context, r Record) error
	RecordByID(ctx context.Context, storeID StoreID, id RecordID) (*Record, error)
	UpdateRecord(ctx context.Context, r Record) error
	DeleteRecord(ctx context.Context, storeID StoreID, id RecordID) error
	DeleteRecordsByCounterparty(ctx context.Context, storeID StoreID, kind RecordKind, counterpartyID string) error
	ListRecords(ctx context.Context, q RecordQuery) ([]Record, error)
}

// TxStore extends Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
