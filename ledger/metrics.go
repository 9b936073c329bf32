/*
metrics.go - Windowed aggregations over the ledger

PURPOSE:
  The read side of the engine: KPI sums, dues, growth percentages, aging
  buckets, cash-flow breakdowns, and trend series. Everything here reduces
  query results in-process; record volumes are a single small store's ledger,
  so correctness wins over throughput.

TOTALITY:
  Aggregations never fail on empty data - an empty result set sums to zero.
  The only errors that escape are storage failures, wrapped as InternalError.

STATUS-FILTER VARIANCE (inherited, per-caller):
  - dashboard dues and aging filter on status == "partial"
  - the KPI dues sums ALL dues in the window, regardless of status
  These call sites disagree in the original product and stay that way.

SEE ALSO:
  - window.go: window resolution and buckets consumed here
*/
package ledger

import (
	"context"
	"math"
	"time"
)

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes read-side metrics against a Store.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// SalesTotal is the windowed sum and count of sale records.
type SalesTotal struct {
	Sum   Money
	Count int
}

// CashFlowSlice is one category of the cash-flow breakdown.
type CashFlowSlice struct {
	Label string
	Value Money
}

// SeriesPoint is one bucket of a trend series.
type SeriesPoint struct {
	Label string
	Sum   Money
}

// Aging groups outstanding dues by how long they have been open. Week buckets
// use ISO Monday-Sunday boundaries.
type Aging struct {
	Total           Money
	Overdue30       Money
	DueThisWeek     Money
	DuePreviousWeek Money
}

// KPIReport is the dashboard KPI composite.
type KPIReport struct {
	TotalSales     Money
	SalesCount     int
	TotalCustomers int
	TotalSuppliers int
	CustomerDues   Money
	SupplierDues   Money
	NetCashFlow    Money
	SalesGrowth    float64 // percent, rounded to 2 decimals
	CustomerGrowth float64 // percent, rounded to 2 decimals
}

// =============================================================================
// CORE AGGREGATIONS
// =============================================================================

// SalesTotal sums totalAmount and counts sales created inside the window.
func (a *Aggregator) SalesTotal(ctx context.Context, storeID StoreID, w Window) (SalesTotal, error) {
	recs, err := a.store.ListRecords(ctx, RecordQuery{StoreID: storeID, Kind: KindSale, Window: &w})
	if err != nil {
		return SalesTotal{Sum: ZeroMoney()}, internal("sales total", err)
	}
	sum := ZeroMoney()
	for _, r := range recs {
		sum = sum.Add(r.TotalAmount)
	}
	return SalesTotal{Sum: sum, Count: len(recs)}, nil
}

// DuesTotal sums dueAmount over records of the given kind. A nil window means
// all time. onlyPartial restricts to status == "partial"; the KPI caller
// passes false, the dashboard dues and aging callers pass true.
func (a *Aggregator) DuesTotal(ctx context.Context, storeID StoreID, kind RecordKind, w *Window, onlyPartial bool) (Money, error) {
	q := RecordQuery{StoreID: storeID, Kind: kind, Window: w}
	if onlyPartial {
		q.Status = StatusPartial
	}
	recs, err := a.store.ListRecords(ctx, q)
	if err != nil {
		return ZeroMoney(), internal("dues total", err)
	}
	sum := ZeroMoney()
	for _, r := range recs {
		sum = sum.Add(r.DueAmount)
	}
	return sum, nil
}

// AgingBuckets reports outstanding partial dues for one counterparty kind:
// the all-time total, the portion at least 30 days old, and the ISO
// this-week / previous-week slices.
func (a *Aggregator) AgingBuckets(ctx context.Context, storeID StoreID, kind RecordKind, now time.Time) (Aging, error) {
	recs, err := a.store.ListRecords(ctx, RecordQuery{StoreID: storeID, Kind: kind, Status: StatusPartial})
	if err != nil {
		return Aging{Total: ZeroMoney(), Overdue30: ZeroMoney(), DueThisWeek: ZeroMoney(), DuePreviousWeek: ZeroMoney()},
			internal("aging buckets", err)
	}

	overdueCutoff := endOfDay(now.UTC().AddDate(0, 0, -30))
	thisWeek := WeekWindow(now)
	prevWeek := PreviousWeekWindow(now)

	aging := Aging{Total: ZeroMoney(), Overdue30: ZeroMoney(), DueThisWeek: ZeroMoney(), DuePreviousWeek: ZeroMoney()}
	for _, r := range recs {
		aging.Total = aging.Total.Add(r.DueAmount)
		if !r.CreatedAt.After(overdueCutoff) {
			aging.Overdue30 = aging.Overdue30.Add(r.DueAmount)
		}
		if thisWeek.Contains(r.CreatedAt) {
			aging.DueThisWeek = aging.DueThisWeek.Add(r.DueAmount)
		}
		if prevWeek.Contains(r.CreatedAt) {
			aging.DuePreviousWeek = aging.DuePreviousWeek.Add(r.DueAmount)
		}
	}
	return aging, nil
}

// CashFlowBreakdown returns the three fixed dashboard categories: partial
// customer dues, partial supplier dues, and cash from fully paid sales, all
// inside the window.
func (a *Aggregator) CashFlowBreakdown(ctx context.Context, storeID StoreID, w Window) ([]CashFlowSlice, error) {
	customerDues, err := a.DuesTotal(ctx, storeID, KindSale, &w, true)
	if err != nil {
		return nil, err
	}
	supplierDues, err := a.DuesTotal(ctx, storeID, KindBuying, &w, true)
	if err != nil {
		return nil, err
	}

	paidSales, err := a.store.ListRecords(ctx, RecordQuery{
		StoreID: storeID, Kind: KindSale, Status: StatusPaid, Window: &w,
	})
	if err != nil {
		return nil, internal("cash flow breakdown", err)
	}
	availableCash := ZeroMoney()
	for _, r := range paidSales {
		availableCash = availableCash.Add(r.TotalAmount)
	}

	return []CashFlowSlice{
		{Label: "Customer Dues", Value: customerDues},
		{Label: "Supplier Owes", Value: supplierDues},
		{Label: "Available Cash", Value: availableCash},
	}, nil
}

// NetCashFlow is windowed sales minus windowed customer and supplier dues
// (no status filter on the dues, matching the KPI).
func (a *Aggregator) NetCashFlow(ctx context.Context, storeID StoreID, w Window) (Money, error) {
	sales, err := a.SalesTotal(ctx, storeID, w)
	if err != nil {
		return ZeroMoney(), err
	}
	customerDues, err := a.DuesTotal(ctx, storeID, KindSale, &w, false)
	if err != nil {
		return ZeroMoney(), err
	}
	supplierDues, err := a.DuesTotal(ctx, storeID, KindBuying, &w, false)
	if err != nil {
		return ZeroMoney(), err
	}
	return sales.Sum.Sub(customerDues).Sub(supplierDues), nil
}

// SeriesByBucket re-runs the sales total independently per bucket. No
// incremental trickery: a handful of buckets over a small ledger.
func (a *Aggregator) SeriesByBucket(ctx context.Context, storeID StoreID, buckets []Bucket) ([]SeriesPoint, error) {
	points := make([]SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		st, err := a.SalesTotal(ctx, storeID, b.Window)
		if err != nil {
			return nil, err
		}
		points = append(points, SeriesPoint{Label: b.Label, Sum: st.Sum})
	}
	return points, nil
}

// =============================================================================
// KPI COMPOSITE
// =============================================================================

// KPIs assembles the dashboard KPI set for a filter token. Sales growth
// compares the sale count against the previous equal-length window; customer
// growth compares the all-time customer count against customers created in
// the previous window. Customer and supplier totals are all-time counts.
func (a *Aggregator) KPIs(ctx context.Context, storeID StoreID, token string, now time.Time) (*KPIReport, error) {
	current := ResolveWindow(token, now)
	previous := ResolvePreviousWindow(token, now)

	sales, err := a.SalesTotal(ctx, storeID, current)
	if err != nil {
		return nil, err
	}
	prevSales, err := a.SalesTotal(ctx, storeID, previous)
	if err != nil {
		return nil, err
	}
	customerDues, err := a.DuesTotal(ctx, storeID, KindSale, &current, false)
	if err != nil {
		return nil, err
	}
	supplierDues, err := a.DuesTotal(ctx, storeID, KindBuying, &current, false)
	if err != nil {
		return nil, err
	}
	totalCustomers, err := a.store.CountCustomers(ctx, storeID, nil)
	if err != nil {
		return nil, internal("count customers", err)
	}
	prevCustomers, err := a.store.CountCustomers(ctx, storeID, &previous)
	if err != nil {
		return nil, internal("count customers", err)
	}
	totalSuppliers, err := a.store.CountSuppliers(ctx, storeID, nil)
	if err != nil {
		return nil, internal("count suppliers", err)
	}

	return &KPIReport{
		TotalSales:     sales.Sum,
		SalesCount:     sales.Count,
		TotalCustomers: totalCustomers,
		TotalSuppliers: totalSuppliers,
		CustomerDues:   customerDues,
		SupplierDues:   supplierDues,
		NetCashFlow:    sales.Sum.Sub(customerDues).Sub(supplierDues),
		SalesGrowth:    Round2(GrowthPercent(float64(sales.Count), float64(prevSales.Count))),
		CustomerGrowth: Round2(GrowthPercent(float64(totalCustomers), float64(prevCustomers))),
	}, nil
}

// =============================================================================
// COUNTERPARTY SUMMARIES
// =============================================================================

// CustomerSummary is a customer enriched with lifetime ledger aggregates.
type CustomerSummary struct {
	Customer
	TotalSales Money
	CurrentDue Money
}

// SupplierSummary is a supplier enriched with lifetime ledger aggregates.
type SupplierSummary struct {
	Supplier
	TotalPurchases Money
	CurrentDue     Money
	AdvancePaid    Money
}

// CustomerSummaries lists customers (optionally filtered by a name/phone
// substring) with their all-time sales and dues totals.
func (a *Aggregator) CustomerSummaries(ctx context.Context, storeID StoreID, search string) ([]CustomerSummary, error) {
	customers, err := a.store.ListCustomers(ctx, storeID, search)
	if err != nil {
		return nil, internal("list customers", err)
	}
	summaries := make([]CustomerSummary, 0, len(customers))
	for _, c := range customers {
		recs, err := a.store.ListRecords(ctx, RecordQuery{
			StoreID: storeID, Kind: KindSale, CounterpartyID: string(c.ID),
		})
		if err != nil {
			return nil, internal("list sales", err)
		}
		sum := CustomerSummary{Customer: c, TotalSales: ZeroMoney(), CurrentDue: ZeroMoney()}
		for _, r := range recs {
			sum.TotalSales = sum.TotalSales.Add(r.TotalAmount)
			sum.CurrentDue = sum.CurrentDue.Add(r.DueAmount)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// SupplierSummaries lists suppliers with their all-time purchase, due, and
// paid totals.
func (a *Aggregator) SupplierSummaries(ctx context.Context, storeID StoreID, search string) ([]SupplierSummary, error) {
	suppliers, err := a.store.ListSuppliers(ctx, storeID, search)
	if err != nil {
		return nil, internal("list suppliers", err)
	}
	summaries := make([]SupplierSummary, 0, len(suppliers))
	for _, s := range suppliers {
		recs, err := a.store.ListRecords(ctx, RecordQuery{
			StoreID: storeID, Kind: KindBuying, CounterpartyID: string(s.ID),
		})
		if err != nil {
			return nil, internal("list buyings", err)
		}
		sum := SupplierSummary{Supplier: s, TotalPurchases: ZeroMoney(), CurrentDue: ZeroMoney(), AdvancePaid: ZeroMoney()}
		for _, r := range recs {
			sum.TotalPurchases = sum.TotalPurchases.Add(r.TotalAmount)
			sum.CurrentDue = sum.CurrentDue.Add(r.DueAmount)
			sum.AdvancePaid = sum.AdvancePaid.Add(r.PaidAmount)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// =============================================================================
// PURE HELPERS
// =============================================================================

// GrowthPercent is the growth of current over previous as a percentage:
// zero previous with zero current is 0, zero previous with activity is 100.
// Rounding happens at the boundary, not here.
func GrowthPercent(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

// Round2 rounds to two decimal places for presentation.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
