/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money crosses
  this boundary as float64 rounded to two decimals; inside the engine it is
  exact decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Simple shape checks (required fields, non-negative numbers) are struct tags
  consumed by go-playground/validator. Ledger-record semantics (item totals,
  paid+due arithmetic, status consistency) are validated by the engine, not
  here.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/validate.go: Record-level validation
*/
package api

import (
	"time"

	"github.com/buildmart/ledger-engine/ledger"
)

// =============================================================================
// PARTY TYPES
// =============================================================================

// CustomerDTO is a customer enriched with lifetime ledger aggregates.
type CustomerDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Address    string  `json:"address,omitempty"`
	TotalSales float64 `json:"totalSales"`
	CurrentDue float64 `json:"currentDue"`
	CreatedAt  string  `json:"createdAt"`
}

// SupplierDTO is a supplier enriched with lifetime ledger aggregates.
type SupplierDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address,omitempty"`
	TotalPurchases float64 `json:"totalPurchases"`
	CurrentDue     float64 `json:"currentDue"`
	AdvancePaid    float64 `json:"advancePaid"`
	CreatedAt      string  `json:"createdAt"`
}

// PartyRequest creates or updates a customer or supplier.
type PartyRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address"`
}

// =============================================================================
// PRODUCT TYPES
// =============================================================================

type ProductDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	Price         float64 `json:"price"`
	StockQuantity float64 `json:"stockQuantity"`
	MinStockLevel float64 `json:"minStockLevel"`
	Description   string  `json:"description,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

type ProductRequest struct {
	Name          string  `json:"name" validate:"required"`
	Category      string  `json:"category"`
	Unit          string  `json:"unit" validate:"required"`
	Price         float64 `json:"price" validate:"gte=0"`
	StockQuantity float64 `json:"stockQuantity" validate:"gte=0"`
	MinStockLevel float64 `json:"minStockLevel" validate:"gte=0"`
	Description   string  `json:"description"`
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// ItemDTO is one line item of a sale or buying.
type ItemDTO struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Total     float64 `json:"total"`
	Custom    bool    `json:"custom,omitempty"`
}

// RecordDTO is a sale or buying in API responses.
type RecordDTO struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	CounterpartyID string    `json:"counterpartyId"`
	Items          []ItemDTO `json:"items"`
	TotalAmount    float64   `json:"totalAmount"`
	PaidAmount     float64   `json:"paidAmount"`
	DueAmount      float64   `json:"dueAmount"`
	Status         string    `json:"status"`
	CreatedAt      string    `json:"createdAt"`
}

// CreateRecordRequest creates a sale or buying. Item totals are recomputed
// when absent or inconsistent; the engine decides.
type CreateRecordRequest struct {
	CounterpartyID string             `json:"counterpartyId"`
	Items          []ledger.ItemInput `json:"items"`
	TotalAmount    float64            `json:"totalAmount"`
	PaidAmount     float64            `json:"paidAmount"`
	DueAmount      float64            `json:"dueAmount"`
	Status         string             `json:"status"`
}

// UpdateRecordRequest is a partial update. Absent fields stay unchanged.
type UpdateRecordRequest struct {
	Items       []ledger.ItemInput `json:"items"`
	TotalAmount *float64           `json:"totalAmount"`
	PaidAmount  *float64           `json:"paidAmount"`
	DueAmount   *float64           `json:"dueAmount"`
	Status      *string            `json:"status"`
}

// PaymentRequest records an additional payment against a record.
type PaymentRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

// =============================================================================
// DASHBOARD TYPES
// =============================================================================

// KPIResponse mirrors the dashboard KPI card set.
type KPIResponse struct {
	TotalSales     float64 `json:"totalSales"`
	TotalCustomers int     `json:"totalCustomers"`
	TotalSuppliers int     `json:"totalSuppliers"`
	CustomerDues   float64 `json:"customerDues"`
	SupplierDues   float64 `json:"supplierDues"`
	NetCashFlow    float64 `json:"netCashFlow"`
	SalesGrowth    float64 `json:"salesGrowth"`
	CustomerGrowth float64 `json:"customerGrowth"`
}

// CashFlowSliceDTO is one slice of the dues pie chart.
type CashFlowSliceDTO struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// AgingDTO groups outstanding dues by how long they have been open.
type AgingDTO struct {
	Total           float64 `json:"total"`
	OverDue         float64 `json:"overDue"`
	DueThisWeek     float64 `json:"dueThisWeek"`
	DuePreviousWeek float64 `json:"duePreviousWeek"`
}

// OutstandingResponse is the per-side aging report.
type OutstandingResponse struct {
	Customer AgingDTO `json:"customer"`
	Supplier AgingDTO `json:"supplier"`
}

// TrendPointDTO is one bucket of the sales trend chart.
type TrendPointDTO struct {
	Day   string  `json:"day"`
	Sales float64 `json:"sales"`
}

// =============================================================================
// MISC
// =============================================================================

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse acknowledges mutations that return no entity.
type MessageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func toRecordDTO(r *ledger.Record) RecordDTO {
	items := make([]ItemDTO, len(r.Items))
	for i, it := range r.Items {
		qty, _ := it.Quantity.Float64()
		items[i] = ItemDTO{
			Name:     it.Name,
			Price:    ledger.Round2(it.Price.Float64()),
			Quantity: qty,
			Unit:     it.Unit,
			Total:    ledger.Round2(it.Total.Float64()),
			Custom:   it.Custom,
		}
	}
	return RecordDTO{
		ID:             string(r.ID),
		Kind:           string(r.Kind),
		CounterpartyID: r.CounterpartyID,
		Items:          items,
		TotalAmount:    ledger.Round2(r.TotalAmount.Float64()),
		PaidAmount:     ledger.Round2(r.PaidAmount.Float64()),
		DueAmount:      ledger.Round2(r.DueAmount.Float64()),
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordDTOs(recs []ledger.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i := range recs {
		dtos[i] = toRecordDTO(&recs[i])
	}
	return dtos
}

func toCustomerDTO(s ledger.CustomerSummary) CustomerDTO {
	return CustomerDTO{
		ID:         string(s.ID),
		Name:       s.Name,
		Phone:      s.Phone,
		Address:    s.Address,
		TotalSales: ledger.Round2(s.TotalSales.Float64()),
		CurrentDue: ledger.Round2(s.CurrentDue.Float64()),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func toSupplierDTO(s ledger.SupplierSummary) SupplierDTO {
	return SupplierDTO{
		ID:             string(s.ID),
		Name:           s.Name,
		Phone:          s.Phone,
		Address:        s.Address,
		TotalPurchases: ledger.Round2(s.TotalPurchases.Float64()),
		CurrentDue:     ledger.Round2(s.CurrentDue.Float64()),
		AdvancePaid:    ledger.Round2(s.AdvancePaid.Float64()),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
	}
}

func toProductDTO(p *ledger.Product) ProductDTO {
	stock, _ := p.StockQuantity.Float64()
	minStock, _ := p.MinStockLevel.Float64()
	return ProductDTO{
		ID:            string(p.ID),
		Name:          p.Name,
		Category:      p.Category,
		Unit:          p.Unit,
		Price:         ledger.Round2(p.Price.Float64()),
		StockQuantity: stock,
		MinStockLevel: minStock,
		Description:   p.Description,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}
