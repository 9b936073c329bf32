/*
handlers.go - HTTP API handlers for the store ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. Every handler is scoped
  to the authenticated identity's store; cross-store access is impossible by
  construction.

ENDPOINTS:
  Customers:
    GET    /api/customers              List customers with lifetime aggregates
    POST   /api/customers              Create customer
    PUT    /api/customers/{id}         Update customer
    DELETE /api/customers/{id}        Delete customer and cascade its sales
    GET    /api/customers/{id}/sales   Sales for one customer, newest first

  Suppliers:
    Same shape under /api/suppliers; /{id}/buyings for their records.
    Deleting a supplier does NOT cascade its buyings.

  Products:
    GET    /api/products               List with filters and pagination
    POST   /api/products               Create product
    PUT    /api/products/{id}          Update product
    DELETE /api/products/{id}          Delete product

  Records:
    POST   /api/sales | /api/buyings             Create
    GET    /api/sales | /api/buyings             List (status/filter query)
    PUT    /api/sales/{id} | /api/buyings/{id}   Partial update
    DELETE /api/sales/{id} | /api/buyings/{id}   Delete
    POST   .../{id}/payments                     Record a payment

  Dashboard:
    GET    /api/dashboard/kpi          KPI card set
    GET    /api/dashboard/dues         Cash-flow pie slices
    GET    /api/dashboard/outstanding  Dues aging per side
    GET    /api/dashboard/sales        Sales trend series

ERROR HANDLING:
  Engine errors map to HTTP status by kind:
  - 400: validation errors
  - 401: missing/invalid identity
  - 404: resource not found (store-scoped)
  - 409: duplicate phone number
  - 500: internal errors (cause logged, not leaked)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/buildmart/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Metrics *ledger.Aggregator
	Log     *logrus.Logger

	// Now is the dashboard clock. Overridable in tests.
	Now func() time.Time

	validate *validator.Validate
}

// NewHandler creates a new handler on top of the given store.
func NewHandler(store ledger.TxStore, log *logrus.Logger) *Handler {
	return &Handler{
		Service:  ledger.NewService(store),
		Metrics:  ledger.NewAggregator(store),
		Log:      log,
		Now:      time.Now,
		validate: validator.New(),
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns the store's customers with lifetime sales and dues.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	summaries, err := h.Metrics.CustomerSummaries(r.Context(), id.StoreID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]CustomerDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toCustomerDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer registers a customer under the caller's store.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Service.CreateCustomer(r.Context(), id.StoreID, ledger.PartyInput{
		Name: req.Name, Phone: req.Phone, Address: req.Address,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerDTO(ledger.CustomerSummary{Customer: *c}))
}

// UpdateCustomer updates name/phone/address.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Service.UpdateCustomer(r.Context(), id.StoreID,
		ledger.CustomerID(chi.URLParam(r, "id")),
		ledger.PartyInput{Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerDTO(ledger.CustomerSummary{Customer: *c}))
}

// DeleteCustomer removes a customer and all of their sales atomically.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	err := h.Service.DeleteCustomer(r.Context(), id.StoreID, ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Customer deleted successfully"})
}

// CustomerSales lists one customer's sales, newest first.
func (h *Handler) CustomerSales(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	recs, err := h.Service.SalesByCustomer(r.Context(), id.StoreID, ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

// =============================================================================
// SUPPLIER HANDLERS
// =============================================================================

// ListSuppliers returns the store's suppliers with lifetime purchase totals.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	summaries, err := h.Metrics.SupplierSummaries(r.Context(), id.StoreID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]SupplierDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSupplierDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSupplier registers a supplier under the caller's store.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.Service.CreateSupplier(r.Context(), id.StoreID, ledger.PartyInput{
		Name: req.Name, Phone: req.Phone, Address: req.Address,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSupplierDTO(ledger.SupplierSummary{Supplier: *s}))
}

// UpdateSupplier updates name/phone/address.
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.Service.UpdateSupplier(r.Context(), id.StoreID,
		ledger.SupplierID(chi.URLParam(r, "id")),
		ledger.PartyInput{Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSupplierDTO(ledger.SupplierSummary{Supplier: *s}))
}

// DeleteSupplier removes the supplier only. Buyings are left in place and
// keep referencing the deleted supplier's ID.
func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	err := h.Service.DeleteSupplier(r.Context(), id.StoreID, ledger.SupplierID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Supplier deleted successfully"})
}

// SupplierBuyings lists one supplier's buyings, newest first.
func (h *Handler) SupplierBuyings(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	recs, err := h.Service.BuyingsBySupplier(r.Context(), id.StoreID, ledger.SupplierID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the catalog filtered by name, category, price range,
// stock range, paginated.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	qs := r.URL.Query()
	query := ledger.ProductQuery{
		StoreID:  id.StoreID,
		Name:     qs.Get("name"),
		Category: qs.Get("category"),
		MinPrice: queryFloat(qs.Get("minPrice")),
		MaxPrice: queryFloat(qs.Get("maxPrice")),
		MinStock: queryFloat(qs.Get("minStock")),
		MaxStock: queryFloat(qs.Get("maxStock")),
		Page:     queryInt(qs.Get("page")),
		Limit:    queryInt(qs.Get("limit")),
	}

	products, err := h.Service.ListProducts(r.Context(), query)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i := range products {
		dtos[i] = toProductDTO(&products[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct adds a catalog entry.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.Service.CreateProduct(r.Context(), id.StoreID, productInput(req))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// UpdateProduct replaces a catalog entry's mutable fields.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.Service.UpdateProduct(r.Context(), id.StoreID,
		ledger.ProductID(chi.URLParam(r, "id")), productInput(req))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// DeleteProduct removes a catalog entry. Existing records keep their
// snapshotted name and price.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	err := h.Service.DeleteProduct(r.Context(), id.StoreID, ledger.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

func productInput(req ProductRequest) ledger.ProductInput {
	return ledger.ProductInput{
		Name:          req.Name,
		Category:      req.Category,
		Unit:          req.Unit,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		Description:   req.Description,
	}
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// CreateSale validates and persists a sale.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	h.createRecord(w, r, ledger.KindSale)
}

// CreateBuying validates and persists a buying.
func (h *Handler) CreateBuying(w http.ResponseWriter, r *http.Request) {
	h.createRecord(w, r, ledger.KindBuying)
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request, kind ledger.RecordKind) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.RecordInput{
		CounterpartyID: req.CounterpartyID,
		Items:          req.Items,
		TotalAmount:    req.TotalAmount,
		PaidAmount:     req.PaidAmount,
		DueAmount:      req.DueAmount,
		Status:         ledger.Status(req.Status),
	}

	var (
		rec *ledger.Record
		err error
	)
	if kind == ledger.KindSale {
		rec, err = h.Service.CreateSale(r.Context(), id, in)
	} else {
		rec, err = h.Service.CreateBuying(r.Context(), id, in)
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// ListSales lists sales, optionally narrowed by status and a window token.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, ledger.KindSale)
}

// ListBuyings lists buyings, optionally narrowed by status and a window token.
func (h *Handler) ListBuyings(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, ledger.KindBuying)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request, kind ledger.RecordKind) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	query := ledger.RecordQuery{
		StoreID: id.StoreID,
		Kind:    kind,
		Status:  ledger.Status(r.URL.Query().Get("status")),
	}
	if token := r.URL.Query().Get("filter"); token != "" {
		w2 := ledger.ResolveWindow(token, h.Now())
		query.Window = &w2
	}

	recs, err := h.Service.ListRecords(r.Context(), query)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

// UpdateRecord applies a partial update to a sale or buying.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.RecordPatch{
		Items:       req.Items,
		HasItems:    req.Items != nil,
		TotalAmount: req.TotalAmount,
		PaidAmount:  req.PaidAmount,
		DueAmount:   req.DueAmount,
	}
	if req.Status != nil {
		status := ledger.Status(*req.Status)
		patch.Status = &status
	}

	rec, err := h.Service.UpdateRecord(r.Context(), id.StoreID,
		ledger.RecordID(chi.URLParam(r, "id")), patch)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// RecordPayment adds a payment to a record and rederives its status.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Service.RecordPayment(r.Context(), id.StoreID,
		ledger.RecordID(chi.URLParam(r, "id")), req.Amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// DeleteRecord removes a single sale or buying.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	err := h.Service.DeleteRecord(r.Context(), id.StoreID, ledger.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Record deleted successfully"})
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetKPIs returns the KPI card set for the requested window.
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	report, err := h.Metrics.KPIs(r.Context(), id.StoreID, r.URL.Query().Get("filter"), h.Now())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, KPIResponse{
		TotalSales:     ledger.Round2(report.TotalSales.Float64()),
		TotalCustomers: report.TotalCustomers,
		TotalSuppliers: report.TotalSuppliers,
		CustomerDues:   ledger.Round2(report.CustomerDues.Float64()),
		SupplierDues:   ledger.Round2(report.SupplierDues.Float64()),
		NetCashFlow:    ledger.Round2(report.NetCashFlow.Float64()),
		SalesGrowth:    report.SalesGrowth,
		CustomerGrowth: report.CustomerGrowth,
	})
}

// cashFlowColors matches the dashboard pie chart palette, keyed by slice
// position: customer dues, supplier owes, available cash.
var cashFlowColors = []string{"#ef4444", "#f97316", "#22c55e"}

// GetDues returns the cash-flow breakdown slices.
func (h *Handler) GetDues(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	window := ledger.ResolveWindow(r.URL.Query().Get("filter"), h.Now())
	slices, err := h.Metrics.CashFlowBreakdown(r.Context(), id.StoreID, window)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]CashFlowSliceDTO, len(slices))
	for i, s := range slices {
		color := ""
		if i < len(cashFlowColors) {
			color = cashFlowColors[i]
		}
		dtos[i] = CashFlowSliceDTO{
			Name:  s.Label,
			Value: ledger.Round2(s.Value.Float64()),
			Color: color,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOutstanding returns dues aging for both sides of the ledger.
func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	now := h.Now()
	customer, err := h.Metrics.AgingBuckets(r.Context(), id.StoreID, ledger.KindSale, now)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	supplier, err := h.Metrics.AgingBuckets(r.Context(), id.StoreID, ledger.KindBuying, now)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OutstandingResponse{
		Customer: toAgingDTO(customer),
		Supplier: toAgingDTO(supplier),
	})
}

func toAgingDTO(a ledger.Aging) AgingDTO {
	return AgingDTO{
		Total:           ledger.Round2(a.Total.Float64()),
		OverDue:         ledger.Round2(a.Overdue30.Float64()),
		DueThisWeek:     ledger.Round2(a.DueThisWeek.Float64()),
		DuePreviousWeek: ledger.Round2(a.DuePreviousWeek.Float64()),
	}
}

// GetSalesTrend returns the bucketed sales series for the chart.
func (h *Handler) GetSalesTrend(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	buckets := ledger.TrendBuckets(r.URL.Query().Get("filter"), h.Now())
	points, err := h.Metrics.SeriesByBucket(r.Context(), id.StoreID, buckets)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]TrendPointDTO, len(points))
	for i, p := range points {
		dtos[i] = TrendPointDTO{Day: p.Label, Sales: ledger.Round2(p.Sum.Float64())}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses the JSON body and runs struct-tag validation. Writes the
// error response itself; callers bail out on false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// writeEngineError maps engine error kinds to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicatePhone):
		writeError(w, http.StatusConflict, "Phone number already registered", nil)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
	default:
		h.Log.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
