/*
Package ledger provides the core business-ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for a store-scoped
  sales/purchase ledger: line-item normalization, amount invariants, payment
  recording, and the windowed aggregations that power dashboard metrics.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal-backed monetary value with tolerant comparison
  - LineItem: a product snapshot embedded in a ledger record
  - Record: a Sale or Buying transaction with a counterparty
  - Customer / Supplier / Product: store-scoped master data

DESIGN PRINCIPLES:
  1. Tenancy: every entity carries a StoreID; all queries filter by it
  2. Precision: uses decimal.Decimal for money, never raw float arithmetic
  3. Tolerance: monetary equality is always |a-b| <= 0.01, never exact
  4. Snapshots: line items copy name/price/unit at transaction time; later
     catalog changes never alter historical records

SEE ALSO:
  - validate.go: line-item and amount validation
  - records.go:  create/update/payment/delete operations
  - metrics.go:  windowed aggregations
  - window.go:   filter-token to time-window resolution
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal-backed monetary value
// =============================================================================

// Money is a monetary amount. It wraps decimal.Decimal so that arithmetic is
// exact; comparison against other amounts goes through EqualsWithin, which
// absorbs the float drift of client-supplied values.
type Money struct {
	Value decimal.Decimal
}

// MoneyTolerance is the absolute difference under which two monetary values
// are considered equal. Client-side arithmetic is float-based, so totals
// arrive with drift of up to a cent.
var MoneyTolerance = decimal.NewFromFloat(0.01)

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func ZeroMoney() Money {
	return Money{Value: decimal.Zero}
}

func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(q decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(q)}
}

func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }
func (m Money) GreaterOrEqual(o Money) bool {
	return m.Value.GreaterThanOrEqual(o.Value)
}

// EqualsWithin reports whether two amounts differ by at most MoneyTolerance.
// All monetary equality checks in this package go through here.
func (m Money) EqualsWithin(o Money) bool {
	return m.Value.Sub(o.Value).Abs().LessThanOrEqual(MoneyTolerance)
}

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// Float64 converts to float64 for the JSON boundary. Aggregates stay decimal
// until the edge.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

func (m Money) String() string { return m.Value.String() }

// MarshalJSON serializes as a plain JSON number (decimal's own encoding).
func (m Money) MarshalJSON() ([]byte, error) {
	return m.Value.MarshalJSON()
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Value.UnmarshalJSON(data)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StoreID string
type CustomerID string
type SupplierID string
type ProductID string
type RecordID string
type UserID string

// =============================================================================
// RECORD - Sale or Buying ledger entry
// =============================================================================

// RecordKind distinguishes the two sides of the ledger.
type RecordKind string

const (
	KindSale   RecordKind = "sale"   // customer-facing
	KindBuying RecordKind = "buying" // supplier-facing
)

// Status reflects whether PaidAmount covers TotalAmount.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusDue     Status = "due"
)

// ValidStatus reports membership in the allowed status set. The status value
// is caller-supplied at creation; only membership is checked there.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPaid, StatusPartial, StatusDue:
		return true
	}
	return false
}

// DeriveStatus computes status from amounts. Used by payment recording; the
// creation path deliberately trusts the caller's status instead.
func DeriveStatus(total, paid Money) Status {
	switch {
	case paid.GreaterOrEqual(total):
		return StatusPaid
	case paid.Value.IsPositive():
		return StatusPartial
	default:
		return StatusDue
	}
}

// LineItem is a product entry embedded in a Record. Name, price and unit are
// snapshots taken at transaction time: a later catalog price change never
// alters a historical record.
type LineItem struct {
	Name     string          `json:"name"`
	Price    Money           `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Total    Money           `json:"total"`
	Custom   bool            `json:"custom,omitempty"` // not backed by a catalog product
}

// Record is a single Sale or Buying transaction.
//
// INVARIANTS (enforced on every create and amount-touching update):
//  1. len(Items) >= 1
//  2. TotalAmount == sum(Items[i].Total)        within MoneyTolerance
//  3. PaidAmount + DueAmount == TotalAmount     within MoneyTolerance
//  4. Status in {paid, partial, due}
//  5. all monetary fields non-negative
type Record struct {
	ID             RecordID
	StoreID        StoreID
	Kind           RecordKind
	CounterpartyID string // CustomerID for sales, SupplierID for buyings
	Items          []LineItem
	TotalAmount    Money
	PaidAmount     Money
	DueAmount      Money
	Status         Status
	CreatedBy      UserID
	CreatedAt      time.Time
}

// ItemsTotal sums the item totals.
func (r *Record) ItemsTotal() Money {
	sum := ZeroMoney()
	for _, it := range r.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// =============================================================================
// MASTER DATA - Store-scoped entities
// =============================================================================

// Shop is the tenant boundary: one business owned by one user. Named Shop to
// avoid colliding with the persistence Store interface.
type Shop struct {
	ID        StoreID
	UserID    UserID
	Name      string
	CreatedAt time.Time
}

type Customer struct {
	ID        CustomerID
	StoreID   StoreID
	Name      string
	Phone     string // unique across the system
	Address   string
	CreatedAt time.Time
}

type Supplier struct {
	ID        SupplierID
	StoreID   StoreID
	Name      string
	Phone     string // unique across the system
	Address   string
	CreatedAt time.Time
}

type Product struct {
	ID            ProductID
	StoreID       StoreID
	Name          string
	Category      string
	Unit          string
	Price         Money
	StockQuantity decimal.Decimal
	MinStockLevel decimal.Decimal
	Description   string
	CreatedAt     time.Time
}

// Identity is the authenticated caller: a user and the store they own. It is
// produced by the API layer's token middleware and consumed by every
// store-scoped operation.
type Identity struct {
	UserID  UserID
	StoreID StoreID
}
