/*
Package sqlite provides a SQLite-backed implementation of the ledger storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  shops:     One row per store (tenant); linked to its owning user
  customers: Buyers; phone number is unique
  suppliers: Vendors; phone number is unique
  products:  Catalog entries with decimal prices and stock levels
  records:   Sales and buyings; line items stored as a JSON document

MONEY ENCODING:
  All monetary columns are TEXT holding exact decimal strings. They are parsed
  back through shopspring/decimal so a round trip never loses precision. SQL
  range filters CAST to REAL, which is fine for filtering.

TIMESTAMPS:
  Stored as fixed-width UTC strings with millisecond precision so that
  lexicographic comparison in SQL matches chronological order. Window
  filtering happens entirely in SQL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL
  (Write-Ahead Logging) so readers don't block each other.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/buildmart/ledger-engine/ledger"
)

// timeLayout is RFC3339 with fixed three-digit milliseconds. The fixed width
// keeps string comparison in SQL consistent with time ordering.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shops (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		address TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_store
		ON customers(store_id);

	CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		address TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_suppliers_store
		ON suppliers(store_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		unit TEXT,
		price TEXT NOT NULL,
		stock_quantity TEXT NOT NULL,
		min_stock_level TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_store
		ON products(store_id);
	CREATE INDEX IF NOT EXISTS idx_products_store_category
		ON products(store_id, category);

	-- Sales and buyings share one table, discriminated by kind.
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		counterparty_id TEXT NOT NULL,
		items_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		due_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: dashboard reductions filter by store+kind within a window.
	CREATE INDEX IF NOT EXISTS idx_records_store_kind_date
		ON records(store_id, kind, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_records_counterparty
		ON records(store_id, counterparty_id);
	CREATE INDEX IF NOT EXISTS idx_records_status
		ON records(store_id, kind, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TENANCY
// =============================================================================

func (s *Store) SaveShop(ctx context.Context, shop ledger.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveShop(ctx, s.db, shop)
}

func saveShop(ctx context.Context, db dbtx, shop ledger.Shop) error {
	query := `
		INSERT INTO shops (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
	`
	_, err := db.ExecContext(ctx, query,
		string(shop.ID), string(shop.UserID), shop.Name, formatTime(shop.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

func (s *Store) ShopByUser(ctx context.Context, userID ledger.UserID) (*ledger.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return shopByUser(ctx, s.db, userID)
}

func shopByUser(ctx context.Context, db dbtx, userID ledger.UserID) (*ledger.Shop, error) {
	var (
		shop      ledger.Shop
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, name, created_at FROM shops WHERE user_id = ?",
		string(userID),
	).Scan(&shop.ID, &shop.UserID, &shop.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "store", ID: string(userID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	shop.CreatedAt = parseTime(createdAt)
	return &shop, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCustomer(ctx, s.db, c)
}

func saveCustomer(ctx context.Context, db dbtx, c ledger.Customer) error {
	query := `
		INSERT INTO customers (id, store_id, name, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address
	`
	_, err := db.ExecContext(ctx, query,
		string(c.ID), string(c.StoreID), c.Name, c.Phone, c.Address, formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c ledger.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCustomer(ctx, s.db, c)
}

func updateCustomer(ctx context.Context, db dbtx, c ledger.Customer) error {
	query := `
		UPDATE customers SET name = ?, phone = ?, address = ?
		WHERE id = ? AND store_id = ?
	`
	res, err := db.ExecContext(ctx, query,
		c.Name, c.Phone, c.Address, string(c.ID), string(c.StoreID))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return requireRow(res, "customer", string(c.ID))
}

func (s *Store) CustomerByID(ctx context.Context, storeID ledger.StoreID, id ledger.CustomerID) (*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return customerByID(ctx, s.db, storeID, id)
}

func customerByID(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.CustomerID) (*ledger.Customer, error) {
	var (
		c         ledger.Customer
		address   sql.NullString
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, store_id, name, phone, address, created_at FROM customers WHERE id = ? AND store_id = ?",
		string(id), string(storeID),
	).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "customer", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	c.Address = address.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, storeID ledger.StoreID, search string) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCustomers(ctx, s.db, storeID, search)
}

func listCustomers(ctx context.Context, db dbtx, storeID ledger.StoreID, search string) ([]ledger.Customer, error) {
	query := "SELECT id, store_id, name, phone, address, created_at FROM customers WHERE store_id = ?"
	args := []any{string(storeID)}
	if search != "" {
		query += " AND (name LIKE ? COLLATE NOCASE OR phone LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []ledger.Customer
	for rows.Next() {
		var (
			c         ledger.Customer
			address   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &address, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.Address = address.String
		c.CreatedAt = parseTime(createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) DeleteCustomer(ctx context.Context, storeID ledger.StoreID, id ledger.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCustomer(ctx, s.db, storeID, id)
}

func deleteCustomer(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.CustomerID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM customers WHERE id = ? AND store_id = ?",
		string(id), string(storeID))
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return requireRow(res, "customer", string(id))
}

func (s *Store) CountCustomers(ctx context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countRows(ctx, s.db, "customers", storeID, w)
}

// =============================================================================
// SUPPLIERS
// =============================================================================

func (s *Store) SaveSupplier(ctx context.Context, sup ledger.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSupplier(ctx, s.db, sup)
}

func saveSupplier(ctx context.Context, db dbtx, sup ledger.Supplier) error {
	query := `
		INSERT INTO suppliers (id, store_id, name, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address
	`
	_, err := db.ExecContext(ctx, query,
		string(sup.ID), string(sup.StoreID), sup.Name, sup.Phone, sup.Address, formatTime(sup.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to save supplier: %w", err)
	}
	return nil
}

func (s *Store) UpdateSupplier(ctx context.Context, sup ledger.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSupplier(ctx, s.db, sup)
}

func updateSupplier(ctx context.Context, db dbtx, sup ledger.Supplier) error {
	query := `
		UPDATE suppliers SET name = ?, phone = ?, address = ?
		WHERE id = ? AND store_id = ?
	`
	res, err := db.ExecContext(ctx, query,
		sup.Name, sup.Phone, sup.Address, string(sup.ID), string(sup.StoreID))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to update supplier: %w", err)
	}
	return requireRow(res, "supplier", string(sup.ID))
}

func (s *Store) SupplierByID(ctx context.Context, storeID ledger.StoreID, id ledger.SupplierID) (*ledger.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return supplierByID(ctx, s.db, storeID, id)
}

func supplierByID(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.SupplierID) (*ledger.Supplier, error) {
	var (
		sup       ledger.Supplier
		address   sql.NullString
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, store_id, name, phone, address, created_at FROM suppliers WHERE id = ? AND store_id = ?",
		string(id), string(storeID),
	).Scan(&sup.ID, &sup.StoreID, &sup.Name, &sup.Phone, &address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "supplier", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier: %w", err)
	}
	sup.Address = address.String
	sup.CreatedAt = parseTime(createdAt)
	return &sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, storeID ledger.StoreID, search string) ([]ledger.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSuppliers(ctx, s.db, storeID, search)
}

func listSuppliers(ctx context.Context, db dbtx, storeID ledger.StoreID, search string) ([]ledger.Supplier, error) {
	query := "SELECT id, store_id, name, phone, address, created_at FROM suppliers WHERE store_id = ?"
	args := []any{string(storeID)}
	if search != "" {
		query += " AND (name LIKE ? COLLATE NOCASE OR phone LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []ledger.Supplier
	for rows.Next() {
		var (
			sup       ledger.Supplier
			address   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&sup.ID, &sup.StoreID, &sup.Name, &sup.Phone, &address, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		sup.Address = address.String
		sup.CreatedAt = parseTime(createdAt)
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) DeleteSupplier(ctx context.Context, storeID ledger.StoreID, id ledger.SupplierID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSupplier(ctx, s.db, storeID, id)
}

func deleteSupplier(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.SupplierID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM suppliers WHERE id = ? AND store_id = ?",
		string(id), string(storeID))
	if err != nil {
		return fmt.Errorf("failed to delete supplier: %w", err)
	}
	return requireRow(res, "supplier", string(id))
}

func (s *Store) CountSuppliers(ctx context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countRows(ctx, s.db, "suppliers", storeID, w)
}

func countRows(ctx context.Context, db dbtx, table string, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	query := "SELECT COUNT(*) FROM " + table + " WHERE store_id = ?"
	args := []any{string(storeID)}
	if w != nil {
		query += " AND created_at >= ? AND created_at <= ?"
		args = append(args, formatTime(w.Start), formatTime(w.End))
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveProduct(ctx, s.db, p)
}

func saveProduct(ctx context.Context, db dbtx, p ledger.Product) error {
	query := `
		INSERT INTO products
		(id, store_id, name, category, unit, price, stock_quantity, min_stock_level, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit = excluded.unit,
			price = excluded.price,
			stock_quantity = excluded.stock_quantity,
			min_stock_level = excluded.min_stock_level,
			description = excluded.description
	`
	_, err := db.ExecContext(ctx, query,
		string(p.ID), string(p.StoreID), p.Name, p.Category, p.Unit,
		p.Price.Value.String(), p.StockQuantity.String(), p.MinStockLevel.String(),
		p.Description, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateProduct(ctx, s.db, p)
}

func updateProduct(ctx context.Context, db dbtx, p ledger.Product) error {
	query := `
		UPDATE products SET
			name = ?, category = ?, unit = ?, price = ?,
			stock_quantity = ?, min_stock_level = ?, description = ?
		WHERE id = ? AND store_id = ?
	`
	res, err := db.ExecContext(ctx, query,
		p.Name, p.Category, p.Unit, p.Price.Value.String(),
		p.StockQuantity.String(), p.MinStockLevel.String(), p.Description,
		string(p.ID), string(p.StoreID))
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireRow(res, "product", string(p.ID))
}

func (s *Store) ProductByID(ctx context.Context, storeID ledger.StoreID, id ledger.ProductID) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return productByID(ctx, s.db, storeID, id)
}

func productByID(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.ProductID) (*ledger.Product, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, store_id, name, category, unit, price, stock_quantity, min_stock_level, description, created_at
		 FROM products WHERE id = ? AND store_id = ?`,
		string(id), string(storeID))
	p, err := scanProductRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "product", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, q ledger.ProductQuery) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db, q)
}

func listProducts(ctx context.Context, db dbtx, q ledger.ProductQuery) ([]ledger.Product, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, store_id, name, category, unit, price, stock_quantity, min_stock_level, description, created_at
		FROM products WHERE store_id = ?`)
	args := []any{string(q.StoreID)}

	if q.Name != "" {
		sb.WriteString(" AND name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+q.Name+"%")
	}
	if q.Category != "" && q.Category != "All" {
		sb.WriteString(" AND category = ?")
		args = append(args, q.Category)
	}
	if q.MinPrice != nil {
		sb.WriteString(" AND CAST(price AS REAL) >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		sb.WriteString(" AND CAST(price AS REAL) <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.MinStock != nil {
		sb.WriteString(" AND CAST(stock_quantity AS REAL) >= ?")
		args = append(args, *q.MinStock)
	}
	if q.MaxStock != nil {
		sb.WriteString(" AND CAST(stock_quantity AS REAL) <= ?")
		args = append(args, *q.MaxStock)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	sb.WriteString(" ORDER BY name LIMIT ? OFFSET ?")
	args = append(args, limit, (page-1)*limit)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		p, err := scanProductRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProductRow(scan func(dest ...any) error) (*ledger.Product, error) {
	var (
		p           ledger.Product
		category    sql.NullString
		unit        sql.NullString
		price       string
		stock       string
		minStock    string
		description sql.NullString
		createdAt   string
	)
	err := scan(&p.ID, &p.StoreID, &p.Name, &category, &unit,
		&price, &stock, &minStock, &description, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Category = category.String
	p.Unit = unit.String
	p.Price = parseMoney(price)
	p.StockQuantity = parseDecimal(stock)
	p.MinStockLevel = parseDecimal(minStock)
	p.Description = description.String
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, storeID ledger.StoreID, id ledger.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteProduct(ctx, s.db, storeID, id)
}

func deleteProduct(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.ProductID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM products WHERE id = ? AND store_id = ?",
		string(id), string(storeID))
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireRow(res, "product", string(id))
}

// =============================================================================
// LEDGER RECORDS
// =============================================================================

func (s *Store) SaveRecord(ctx context.Context, r ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRecord(ctx, s.db, r)
}

func saveRecord(ctx context.Context, db dbtx, r ledger.Record) error {
	itemsJSON, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	query := `
		INSERT INTO records
		(id, store_id, kind, counterparty_id, items_json,
		 total_amount, paid_amount, due_amount, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		string(r.ID), string(r.StoreID), string(r.Kind), r.CounterpartyID,
		string(itemsJSON),
		r.TotalAmount.Value.String(), r.PaidAmount.Value.String(), r.DueAmount.Value.String(),
		string(r.Status), string(r.CreatedBy), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *Store) RecordByID(ctx context.Context, storeID ledger.StoreID, id ledger.RecordID) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recordByID(ctx, s.db, storeID, id)
}

func recordByID(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.RecordID) (*ledger.Record, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, store_id, kind, counterparty_id, items_json,
		        total_amount, paid_amount, due_amount, status, created_by, created_at
		 FROM records WHERE id = ? AND store_id = ?`,
		string(id), string(storeID))
	r, err := scanRecordRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "record", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateRecord(ctx context.Context, r ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRecord(ctx, s.db, r)
}

func updateRecord(ctx context.Context, db dbtx, r ledger.Record) error {
	itemsJSON, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	query := `
		UPDATE records SET
			counterparty_id = ?, items_json = ?,
			total_amount = ?, paid_amount = ?, due_amount = ?, status = ?
		WHERE id = ? AND store_id = ?
	`
	res, err := db.ExecContext(ctx, query,
		r.CounterpartyID, string(itemsJSON),
		r.TotalAmount.Value.String(), r.PaidAmount.Value.String(), r.DueAmount.Value.String(),
		string(r.Status), string(r.ID), string(r.StoreID))
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return requireRow(res, "record", string(r.ID))
}

func (s *Store) DeleteRecord(ctx context.Context, storeID ledger.StoreID, id ledger.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRecord(ctx, s.db, storeID, id)
}

func deleteRecord(ctx context.Context, db dbtx, storeID ledger.StoreID, id ledger.RecordID) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM records WHERE id = ? AND store_id = ?",
		string(id), string(storeID))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return requireRow(res, "record", string(id))
}

func (s *Store) DeleteRecordsByCounterparty(ctx context.Context, storeID ledger.StoreID, kind ledger.RecordKind, counterpartyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRecordsByCounterparty(ctx, s.db, storeID, kind, counterpartyID)
}

func deleteRecordsByCounterparty(ctx context.Context, db dbtx, storeID ledger.StoreID, kind ledger.RecordKind, counterpartyID string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM records WHERE store_id = ? AND kind = ? AND counterparty_id = ?",
		string(storeID), string(kind), counterpartyID)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, q ledger.RecordQuery) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, q)
}

func listRecords(ctx context.Context, db dbtx, q ledger.RecordQuery) ([]ledger.Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, store_id, kind, counterparty_id, items_json,
		total_amount, paid_amount, due_amount, status, created_by, created_at
		FROM records WHERE store_id = ?`)
	args := []any{string(q.StoreID)}

	if q.Kind != "" {
		sb.WriteString(" AND kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.CounterpartyID != "" {
		sb.WriteString(" AND counterparty_id = ?")
		args = append(args, q.CounterpartyID)
	}
	if q.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, string(q.Status))
	}
	if q.Window != nil {
		sb.WriteString(" AND created_at >= ? AND created_at <= ?")
		args = append(args, formatTime(q.Window.Start), formatTime(q.Window.End))
	}
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		r, err := scanRecordRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func scanRecordRow(scan func(dest ...any) error) (*ledger.Record, error) {
	var (
		r         ledger.Record
		itemsJSON string
		total     string
		paid      string
		due       string
		createdAt string
	)
	err := scan(&r.ID, &r.StoreID, &r.Kind, &r.CounterpartyID, &itemsJSON,
		&total, &paid, &due, &r.Status, &r.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	r.TotalAmount = parseMoney(total)
	r.PaidAmount = parseMoney(paid)
	r.DueAmount = parseMoney(due)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store passed
// to fn routes every call through the transaction, reads included, so fn sees
// its own uncommitted writes.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the transaction-scoped view handed to WithTx callbacks. It holds
// no lock of its own; the parent's write lock covers the whole transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveShop(ctx context.Context, shop ledger.Shop) error {
	return saveShop(ctx, ts.tx, shop)
}

func (ts *txStore) ShopByUser(ctx context.Context, userID ledger.UserID) (*ledger.Shop, error) {
	return shopByUser(ctx, ts.tx, userID)
}

func (ts *txStore) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	return saveCustomer(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCustomer(ctx context.Context, c ledger.Customer) error {
	return updateCustomer(ctx, ts.tx, c)
}

func (ts *txStore) CustomerByID(ctx context.Context, storeID ledger.StoreID, id ledger.CustomerID) (*ledger.Customer, error) {
	return customerByID(ctx, ts.tx, storeID, id)
}

func (ts *txStore) ListCustomers(ctx context.Context, storeID ledger.StoreID, search string) ([]ledger.Customer, error) {
	return listCustomers(ctx, ts.tx, storeID, search)
}

func (ts *txStore) DeleteCustomer(ctx context.Context, storeID ledger.StoreID, id ledger.CustomerID) error {
	return deleteCustomer(ctx, ts.tx, storeID, id)
}

func (ts *txStore) CountCustomers(ctx context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	return countRows(ctx, ts.tx, "customers", storeID, w)
}

func (ts *txStore) SaveSupplier(ctx context.Context, sup ledger.Supplier) error {
	return saveSupplier(ctx, ts.tx, sup)
}

func (ts *txStore) UpdateSupplier(ctx context.Context, sup ledger.Supplier) error {
	return updateSupplier(ctx, ts.tx, sup)
}

func (ts *txStore) SupplierByID(ctx context.Context, storeID ledger.StoreID, id ledger.SupplierID) (*ledger.Supplier, error) {
	return supplierByID(ctx, ts.tx, storeID, id)
}

func (ts *txStore) ListSuppliers(ctx context.Context, storeID ledger.StoreID, search string) ([]ledger.Supplier, error) {
	return listSuppliers(ctx, ts.tx, storeID, search)
}

func (ts *txStore) DeleteSupplier(ctx context.Context, storeID ledger.StoreID, id ledger.SupplierID) error {
	return deleteSupplier(ctx, ts.tx, storeID, id)
}

func (ts *txStore) CountSuppliers(ctx context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	return countRows(ctx, ts.tx, "suppliers", storeID, w)
}

func (ts *txStore) SaveProduct(ctx context.Context, p ledger.Product) error {
	return saveProduct(ctx, ts.tx, p)
}

func (ts *txStore) UpdateProduct(ctx context.Context, p ledger.Product) error {
	return updateProduct(ctx, ts.tx, p)
}

func (ts *txStore) ProductByID(ctx context.Context, storeID ledger.StoreID, id ledger.ProductID) (*ledger.Product, error) {
	return productByID(ctx, ts.tx, storeID, id)
}

func (ts *txStore) ListProducts(ctx context.Context, q ledger.ProductQuery) ([]ledger.Product, error) {
	return listProducts(ctx, ts.tx, q)
}

func (ts *txStore) DeleteProduct(ctx context.Context, storeID ledger.StoreID, id ledger.ProductID) error {
	return deleteProduct(ctx, ts.tx, storeID, id)
}

func (ts *txStore) SaveRecord(ctx context.Context, r ledger.Record) error {
	return saveRecord(ctx, ts.tx, r)
}

func (ts *txStore) RecordByID(ctx context.Context, storeID ledger.StoreID, id ledger.RecordID) (*ledger.Record, error) {
	return recordByID(ctx, ts.tx, storeID, id)
}

func (ts *txStore) UpdateRecord(ctx context.Context, r ledger.Record) error {
	return updateRecord(ctx, ts.tx, r)
}

func (ts *txStore) DeleteRecord(ctx context.Context, storeID ledger.StoreID, id ledger.RecordID) error {
	return deleteRecord(ctx, ts.tx, storeID, id)
}

func (ts *txStore) DeleteRecordsByCounterparty(ctx context.Context, storeID ledger.StoreID, kind ledger.RecordKind, counterpartyID string) error {
	return deleteRecordsByCounterparty(ctx, ts.tx, storeID, kind, counterpartyID)
}

func (ts *txStore) ListRecords(ctx context.Context, q ledger.RecordQuery) ([]ledger.Record, error) {
	return listRecords(ctx, ts.tx, q)
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate plain RFC3339 written by older versions.
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseMoney(s string) ledger.Money {
	return ledger.Money{Value: parseDecimal(s)}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
