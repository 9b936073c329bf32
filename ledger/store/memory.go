// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/buildmart/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	shops     map[ledger.StoreID]ledger.Shop
	customers map[ledger.CustomerID]ledger.Customer
	suppliers map[ledger.SupplierID]ledger.Supplier
	products  map[ledger.ProductID]ledger.Product
	records   map[ledger.RecordID]ledger.Record
}

func NewMemory() *Memory {
	return &Memory{
		shops:     make(map[ledger.StoreID]ledger.Shop),
		customers: make(map[ledger.CustomerID]ledger.Customer),
		suppliers: make(map[ledger.SupplierID]ledger.Supplier),
		products:  make(map[ledger.ProductID]ledger.Product),
		records:   make(map[ledger.RecordID]ledger.Record),
	}
}

// =============================================================================
// TENANCY
// =============================================================================

func (m *Memory) SaveShop(_ context.Context, s ledger.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[s.ID] = s
	return nil
}

func (m *Memory) ShopByUser(_ context.Context, userID ledger.UserID) (*ledger.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shops {
		if s.UserID == userID {
			shop := s
			return &shop, nil
		}
	}
	return nil, &ledger.NotFoundError{Resource: "store", ID: string(userID)}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) SaveCustomer(_ context.Context, c ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.customers {
		if existing.Phone == c.Phone && existing.ID != c.ID {
			return ledger.ErrDuplicatePhone
		}
	}
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) UpdateCustomer(ctx context.Context, c ledger.Customer) error {
	m.mu.RLock()
	_, ok := m.customers[c.ID]
	m.mu.RUnlock()
	if !ok {
		return &ledger.NotFoundError{Resource: "customer", ID: string(c.ID)}
	}
	return m.SaveCustomer(ctx, c)
}

func (m *Memory) CustomerByID(_ context.Context, storeID ledger.StoreID, id ledger.CustomerID) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok || c.StoreID != storeID {
		return nil, &ledger.NotFoundError{Resource: "customer", ID: string(id)}
	}
	return &c, nil
}

func (m *Memory) ListCustomers(_ context.Context, storeID ledger.StoreID, search string) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Customer
	for _, c := range m.customers {
		if c.StoreID != storeID {
			continue
		}
		if search != "" && !matchesSearch(search, c.Name, c.Phone) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteCustomer(_ context.Context, storeID ledger.StoreID, id ledger.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok || c.StoreID != storeID {
		return &ledger.NotFoundError{Resource: "customer", ID: string(id)}
	}
	delete(m.customers, id)
	return nil
}

func (m *Memory) CountCustomers(_ context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.customers {
		if c.StoreID != storeID {
			continue
		}
		if w != nil && !w.Contains(c.CreatedAt) {
			continue
		}
		count++
	}
	return count, nil
}

// =============================================================================
// SUPPLIERS
// =============================================================================

func (m *Memory) SaveSupplier(_ context.Context, s ledger.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.suppliers {
		if existing.Phone == s.Phone && existing.ID != s.ID {
			return ledger.ErrDuplicatePhone
		}
	}
	m.suppliers[s.ID] = s
	return nil
}

func (m *Memory) UpdateSupplier(ctx context.Context, s ledger.Supplier) error {
	m.mu.RLock()
	_, ok := m.suppliers[s.ID]
	m.mu.RUnlock()
	if !ok {
		return &ledger.NotFoundError{Resource: "supplier", ID: string(s.ID)}
	}
	return m.SaveSupplier(ctx, s)
}

func (m *Memory) SupplierByID(_ context.Context, storeID ledger.StoreID, id ledger.SupplierID) (*ledger.Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suppliers[id]
	if !ok || s.StoreID != storeID {
		return nil, &ledger.NotFoundError{Resource: "supplier", ID: string(id)}
	}
	return &s, nil
}

func (m *Memory) ListSuppliers(_ context.Context, storeID ledger.StoreID, search string) ([]ledger.Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Supplier
	for _, s := range m.suppliers {
		if s.StoreID != storeID {
			continue
		}
		if search != "" && !matchesSearch(search, s.Name, s.Phone) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteSupplier(_ context.Context, storeID ledger.StoreID, id ledger.SupplierID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok || s.StoreID != storeID {
		return &ledger.NotFoundError{Resource: "supplier", ID: string(id)}
	}
	delete(m.suppliers, id)
	return nil
}

func (m *Memory) CountSuppliers(_ context.Context, storeID ledger.StoreID, w *ledger.Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.suppliers {
		if s.StoreID != storeID {
			continue
		}
		if w != nil && !w.Contains(s.CreatedAt) {
			continue
		}
		count++
	}
	return count, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) SaveProduct(_ context.Context, p ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) UpdateProduct(_ context.Context, p ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return &ledger.NotFoundError{Resource: "product", ID: string(p.ID)}
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) ProductByID(_ context.Context, storeID ledger.StoreID, id ledger.ProductID) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok || p.StoreID != storeID {
		return nil, &ledger.NotFoundError{Resource: "product", ID: string(id)}
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context, q ledger.ProductQuery) ([]ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Product
	for _, p := range m.products {
		if p.StoreID != q.StoreID {
			continue
		}
		if q.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Name)) {
			continue
		}
		if q.Category != "" && q.Category != "All" && p.Category != q.Category {
			continue
		}
		price := p.Price.Float64()
		if q.MinPrice != nil && price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && price > *q.MaxPrice {
			continue
		}
		stock, _ := p.StockQuantity.Float64()
		if q.MinStock != nil && stock < *q.MinStock {
			continue
		}
		if q.MaxStock != nil && stock > *q.MaxStock {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, q.Page, q.Limit), nil
}

func (m *Memory) DeleteProduct(_ context.Context, storeID ledger.StoreID, id ledger.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.StoreID != storeID {
		return &ledger.NotFoundError{Resource: "product", ID: string(id)}
	}
	delete(m.products, id)
	return nil
}

// =============================================================================
// LEDGER RECORDS
// =============================================================================

func (m *Memory) SaveRecord(_ context.Context, r ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	return nil
}

func (m *Memory) RecordByID(_ context.Context, storeID ledger.StoreID, id ledger.RecordID) (*ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok || r.StoreID != storeID {
		return nil, &ledger.NotFoundError{Resource: "record", ID: string(id)}
	}
	return &r, nil
}

func (m *Memory) UpdateRecord(_ context.Context, r ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[r.ID]
	if !ok || existing.StoreID != r.StoreID {
		return &ledger.NotFoundError{Resource: "record", ID: string(r.ID)}
	}
	m.records[r.ID] = r
	return nil
}

func (m *Memory) DeleteRecord(_ context.Context, storeID ledger.StoreID, id ledger.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.StoreID != storeID {
		return &ledger.NotFoundError{Resource: "record", ID: string(id)}
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) DeleteRecordsByCounterparty(_ context.Context, storeID ledger.StoreID, kind ledger.RecordKind, counterpartyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.StoreID == storeID && r.Kind == kind && r.CounterpartyID == counterpartyID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *Memory) ListRecords(_ context.Context, q ledger.RecordQuery) ([]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Record
	for _, r := range m.records {
		if r.StoreID != q.StoreID {
			continue
		}
		if q.Kind != "" && r.Kind != q.Kind {
			continue
		}
		if q.CounterpartyID != "" && r.CounterpartyID != q.CounterpartyID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.Window != nil && !q.Window.Contains(r.CreatedAt) {
			continue
		}
		out = append(out, r)
	}
	// Newest first
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn with snapshot + rollback-on-error semantics. The memory
// store offers no isolation from concurrent writers; it exists for tests and
// development.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	shops     map[ledger.StoreID]ledger.Shop
	customers map[ledger.CustomerID]ledger.Customer
	suppliers map[ledger.SupplierID]ledger.Supplier
	products  map[ledger.ProductID]ledger.Product
	records   map[ledger.RecordID]ledger.Record
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := memorySnapshot{
		shops:     make(map[ledger.StoreID]ledger.Shop, len(m.shops)),
		customers: make(map[ledger.CustomerID]ledger.Customer, len(m.customers)),
		suppliers: make(map[ledger.SupplierID]ledger.Supplier, len(m.suppliers)),
		products:  make(map[ledger.ProductID]ledger.Product, len(m.products)),
		records:   make(map[ledger.RecordID]ledger.Record, len(m.records)),
	}
	for k, v := range m.shops {
		s.shops[k] = v
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.suppliers {
		s.suppliers[k] = v
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.records {
		s.records[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops = s.shops
	m.customers = s.customers
	m.suppliers = s.suppliers
	m.products = s.products
	m.records = s.records
}

// =============================================================================
// HELPERS
// =============================================================================

func matchesSearch(search string, name, phone string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(name), needle) ||
		strings.Contains(strings.ToLower(phone), needle)
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
