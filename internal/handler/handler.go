// Package handler содержит HTTP-обработчики API сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/coffeedash-system/internal/analytics"
	"github.com/avolkov/coffeedash-system/internal/model"
	"github.com/avolkov/coffeedash-system/internal/repository"
	"github.com/avolkov/coffeedash-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error
	AnalyticsStats() analytics.Stats

	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context) ([]model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, customerID int64, lines []repository.OrderLine,
		paymentMethod model.PaymentMethod, status model.OrderStatus, orderDate time.Time) (*model.Order, error)
	ListOrders(ctx context.Context, limit int) ([]model.OrderSummary, error)
	ImportOrders(ctx context.Context, records []service.ImportRecord) (*service.ImportResult, error)
	ClearOrders(ctx context.Context) (int64, error)

	GetOverview(ctx context.Context) (*service.Overview, error)
	GetSalesReport(ctx context.Context) (*service.SalesReport, error)
	GetFinancialReport(ctx context.Context) (*service.FinancialReport, error)
	CheckAggregates(ctx context.Context) ([]repository.AggregateDrift, error)

	ListFinancialMetrics(ctx context.Context, limit int) ([]model.FinancialMetric, error)
	CreateFinancialMetric(ctx context.Context, m *model.FinancialMetric) error
	ListMarketResearch(ctx context.Context) ([]model.MarketResearch, error)
	CreateMarketResearch(ctx context.Context, n *model.MarketResearch) error
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service   Service
	logger    *zap.Logger
	startedAt time.Time
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError отвечает JSON-объектом {"error": msg}. Детали внутренних ошибок
// в тело не попадают, только в серверный лог.
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	h.writeError(w, http.StatusInternalServerError, msg)
}

// flexInt принимает целое число и как JSON-число, и как строку:
// CSV-импорт присылает количества строками.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(v)
	return nil
}

// parseDate принимает дату в RFC3339 или как «2006-01-02».
// Пустое или нераспознанное значение означает «сейчас» (нулевое время).
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Stock       int64   `json:"stock"`
	ImageURL    *string `json:"imageUrl"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       model.Dollars(p.PriceCents),
		Cost:        model.Dollars(p.CostCents),
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// GetProducts возвращает все товары каталога по алфавиту.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.internalError(w, "failed to fetch products", err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type productRequest struct {
	ID          *int64   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	Cost        *float64 `json:"cost"`
	Stock       *flexInt `json:"stock"`
	ImageURL    *string  `json:"imageUrl"`
	IsActive    *bool    `json:"isActive"`
}

func (req *productRequest) missingFields() []string {
	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if req.Price == nil {
		missing = append(missing, "price")
	}
	if req.Cost == nil {
		missing = append(missing, "cost")
	}
	return missing
}

func (req *productRequest) toModel() *model.Product {
	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  model.Cents(*req.Price),
		CostCents:   model.Cents(*req.Cost),
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if req.ID != nil {
		p.ID = *req.ID
	}
	if req.Stock != nil {
		p.Stock = int64(*req.Stock)
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

// CreateProduct создаёт новый товар.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if missing := req.missingFields(); len(missing) > 0 {
		h.writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if *req.Price <= 0 {
		h.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if *req.Cost < 0 {
		h.writeError(w, http.StatusBadRequest, "cost must not be negative")
		return
	}

	p := req.toModel()
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		h.internalError(w, "failed to create product", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct обновляет товар по ID из тела запроса.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == nil {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		h.writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	p := req.toModel()
	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internalError(w, "failed to update product", err, zap.Int64("id", p.ID))
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct удаляет товар по ID из query-параметра.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internalError(w, "failed to delete product", err, zap.Int64("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type customerResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         *string `json:"phone"`
	TotalSpent    float64 `json:"totalSpent"`
	VisitCount    int64   `json:"visitCount"`
	LoyaltyPoints int64   `json:"loyaltyPoints"`
	LastVisit     *string `json:"lastVisit"`
	CreatedAt     string  `json:"createdAt"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	resp := customerResponse{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		TotalSpent:    model.Dollars(c.TotalSpentCents),
		VisitCount:    c.VisitCount,
		LoyaltyPoints: c.LoyaltyPoints,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
	if c.LastVisit != nil {
		v := c.LastVisit.Format(time.RFC3339)
		resp.LastVisit = &v
	}
	return resp
}

// GetCustomers возвращает всех клиентов, сначала самых «дорогих».
func (h *Handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.internalError(w, "failed to fetch customers", err)
		return
	}

	resp := make([]customerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerResponse(&customers[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type customerRequest struct {
	ID    *int64  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// CreateCustomer создаёт нового клиента с нулевыми агрегатами.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		h.writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	c := &model.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := h.service.CreateCustomer(r.Context(), c); err != nil {
		if errors.Is(err, repository.ErrCustomerExists) {
			h.writeError(w, http.StatusConflict, "customer with this email already exists")
			return
		}
		h.internalError(w, "failed to create customer", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

// UpdateCustomer обновляет идентификационные поля клиента. Производные поля
// (totalSpent, visitCount, loyaltyPoints, lastVisit) через API не редактируются.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == nil {
		h.writeError(w, http.StatusBadRequest, "customer id is required")
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "missing required fields: name, email")
		return
	}

	c := &model.Customer{ID: *req.ID, Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := h.service.UpdateCustomer(r.Context(), c); err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			h.writeError(w, http.StatusNotFound, "customer not found")
		case errors.Is(err, repository.ErrCustomerExists):
			h.writeError(w, http.StatusConflict, "customer with this email already exists")
		default:
			h.internalError(w, "failed to update customer", err, zap.Int64("id", c.ID))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

// DeleteCustomer удаляет клиента по ID из query-параметра.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		h.writeError(w, http.StatusBadRequest, "customer id is required")
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			h.writeError(w, http.StatusNotFound, "customer not found")
		case errors.Is(err, repository.ErrCustomerHasOrders):
			h.writeError(w, http.StatusConflict, "customer has orders")
		default:
			h.internalError(w, "failed to delete customer", err, zap.Int64("id", id))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetCustomerDrift возвращает клиентов, чьи хранимые агрегаты разошлись с
// пересчётом по заказам.
func (h *Handler) GetCustomerDrift(w http.ResponseWriter, r *http.Request) {
	drift, err := h.service.CheckAggregates(r.Context())
	if err != nil {
		h.internalError(w, "failed to check aggregates", err)
		return
	}

	type driftResponse struct {
		CustomerID   int64   `json:"customerId"`
		Email        string  `json:"email"`
		StoredSpent  float64 `json:"storedSpent"`
		ActualSpent  float64 `json:"actualSpent"`
		StoredVisits int64   `json:"storedVisits"`
		ActualVisits int64   `json:"actualVisits"`
		StoredPoints int64   `json:"storedPoints"`
		ActualPoints int64   `json:"actualPoints"`
	}

	resp := make([]driftResponse, 0, len(drift))
	for _, d := range drift {
		resp = append(resp, driftResponse{
			CustomerID:   d.CustomerID,
			Email:        d.Email,
			StoredSpent:  model.Dollars(d.StoredSpentCents),
			ActualSpent:  model.Dollars(d.ActualSpentCents),
			StoredVisits: d.StoredVisits,
			ActualVisits: d.ActualVisits,
			StoredPoints: d.StoredPoints,
			ActualPoints: d.ActualPoints,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type orderItemResponse struct {
	ID        int64   `json:"id"`
	ProductID *int64  `json:"productId"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	CustomerID    int64               `json:"customerId"`
	OrderDate     string              `json:"orderDate"`
	Total         float64             `json:"total"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		OrderDate:     o.OrderDate.Format(time.RFC3339),
		Total:         model.Dollars(o.TotalCents),
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     model.Dollars(item.PriceCents),
			Cost:      model.Dollars(item.CostCents),
		})
	}
	return resp
}

type createOrderRequest struct {
	CustomerID    *int64 `json:"customerId"`
	PaymentMethod string `json:"paymentMethod"`
	Status        string `json:"status"`
	OrderDate     string `json:"orderDate"`
	Items         []struct {
		ProductID *int64  `json:"productId"`
		Quantity  flexInt `json:"quantity"`
	} `json:"items"`
}

// CreateOrder создаёт один заказ с позициями.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomerID == nil {
		h.writeError(w, http.StatusBadRequest, "customer id is required")
		return
	}
	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "order items are required")
		return
	}

	lines := make([]repository.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == nil {
			h.writeError(w, http.StatusBadRequest, "product id is required for every item")
			return
		}
		lines = append(lines, repository.OrderLine{ProductID: *item.ProductID, Quantity: int64(item.Quantity)})
	}

	order, err := h.service.CreateOrder(r.Context(), *req.CustomerID, lines,
		model.PaymentMethod(req.PaymentMethod), model.OrderStatus(req.Status), parseDate(req.OrderDate))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			h.writeError(w, http.StatusNotFound, "customer not found")
		case errors.Is(err, repository.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrNoItems), errors.Is(err, service.ErrInvalidQuantity):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, "failed to create order", err)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type orderSummaryResponse struct {
	orderResponse
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

// GetOrders возвращает последние заказы с данными клиентов.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	orders, err := h.service.ListOrders(r.Context(), limit)
	if err != nil {
		h.internalError(w, "failed to fetch orders", err)
		return
	}

	resp := make([]orderSummaryResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, orderSummaryResponse{
			orderResponse: toOrderResponse(&orders[i].Order),
			CustomerName:  orders[i].CustomerName,
			CustomerEmail: orders[i].CustomerEmail,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type importOrderRequest struct {
	CustomerEmail string  `json:"customerEmail"`
	ProductName   string  `json:"productName"`
	Quantity      flexInt `json:"quantity"`
	OrderDate     string  `json:"orderDate"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"paymentMethod"`
}

type importRequest struct {
	Orders []importOrderRequest `json:"orders"`
}

// ImportOrders выполняет массовый импорт заказов. Ошибки отдельных строк
// не прерывают пакет и возвращаются списком.
func (h *Handler) ImportOrders(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Orders) == 0 {
		h.writeError(w, http.StatusBadRequest, "No order data provided")
		return
	}

	records := make([]service.ImportRecord, 0, len(req.Orders))
	for _, o := range req.Orders {
		records = append(records, service.ImportRecord{
			CustomerEmail: o.CustomerEmail,
			ProductName:   o.ProductName,
			Quantity:      int64(o.Quantity),
			OrderDate:     parseDate(o.OrderDate),
			Status:        model.OrderStatus(o.Status),
			PaymentMethod: model.PaymentMethod(o.PaymentMethod),
		})
	}

	res, err := h.service.ImportOrders(r.Context(), records)
	if err != nil {
		h.internalError(w, "failed to import orders", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": res.Message,
		"success": res.Success,
		"failed":  res.Failed,
		"errors":  res.Errors,
	})
}

// ClearOrders удаляет все заказы, возвращает остатки и сбрасывает агрегаты клиентов.
func (h *Handler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ClearOrders(r.Context())
	if err != nil {
		h.internalError(w, "failed to clear orders", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Deleted %d orders and reset all stats", count),
		"count":   count,
	})
}

type productSalesResponse struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	UnitsSold int64   `json:"unitsSold"`
	Revenue   float64 `json:"revenue"`
}

func toProductSalesResponse(sales []repository.ProductSales) []productSalesResponse {
	resp := make([]productSalesResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, productSalesResponse{
			ProductID: s.ProductID,
			Name:      s.Name,
			Category:  s.Category,
			Price:     model.Dollars(s.PriceCents),
			UnitsSold: s.UnitsSold,
			Revenue:   model.Dollars(s.RevenueCents),
		})
	}
	return resp
}

// GetOverview возвращает сводку дашборда за последние 30 дней.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		h.internalError(w, "failed to build overview", err)
		return
	}

	recent := make([]orderSummaryResponse, 0, len(overview.RecentOrders))
	for i := range overview.RecentOrders {
		recent = append(recent, orderSummaryResponse{
			orderResponse: toOrderResponse(&overview.RecentOrders[i].Order),
			CustomerName:  overview.RecentOrders[i].CustomerName,
			CustomerEmail: overview.RecentOrders[i].CustomerEmail,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"revenue":      model.Dollars(overview.RevenueCents),
		"orders":       overview.Orders,
		"customers":    overview.Customers,
		"recentOrders": recent,
		"topProducts":  toProductSalesResponse(overview.TopProducts),
	})
}

// GetSalesReport возвращает сравнение периодов продаж и структуру продаж.
func (h *Handler) GetSalesReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GetSalesReport(r.Context())
	if err != nil {
		h.internalError(w, "failed to build sales report", err)
		return
	}

	type periodResponse struct {
		Revenue   float64 `json:"revenue"`
		Orders    int64   `json:"orders"`
		Customers int64   `json:"customers"`
	}

	byPayment := make([]map[string]any, 0, len(rep.ByPayment))
	for _, p := range rep.ByPayment {
		byPayment = append(byPayment, map[string]any{
			"method":  string(p.Method),
			"revenue": model.Dollars(p.RevenueCents),
			"orders":  p.Orders,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"current": periodResponse{
			Revenue:   model.Dollars(rep.Current.RevenueCents),
			Orders:    rep.Current.Orders,
			Customers: rep.Current.Customers,
		},
		"previous": periodResponse{
			Revenue:   model.Dollars(rep.Previous.RevenueCents),
			Orders:    rep.Previous.Orders,
			Customers: rep.Previous.Customers,
		},
		"revenueGrowth": rep.RevenueGrowth,
		"ordersGrowth":  rep.OrdersGrowth,
		"byPayment":     byPayment,
		"topProducts":   toProductSalesResponse(rep.TopProducts),
	})
}

// GetFinancialReport возвращает итоги, маржу, помесячную разбивку и записи
// финансового журнала.
func (h *Handler) GetFinancialReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GetFinancialReport(r.Context())
	if err != nil {
		h.internalError(w, "failed to build financial report", err)
		return
	}

	monthly := make([]map[string]any, 0, len(rep.Monthly))
	for _, m := range rep.Monthly {
		monthly = append(monthly, map[string]any{
			"month":   m.Month,
			"revenue": model.Dollars(m.RevenueCents),
			"costs":   model.Dollars(m.CostCents),
			"profit":  model.Dollars(m.ProfitCents),
			"orders":  m.Orders,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"totalRevenue": model.Dollars(rep.RevenueCents),
		"totalCosts":   model.Dollars(rep.CostCents),
		"totalProfit":  model.Dollars(rep.ProfitCents),
		"profitMargin": rep.ProfitMargin,
		"monthly":      monthly,
		"metrics":      toMetricResponses(rep.Metrics),
	})
}

type metricResponse struct {
	ID       int64   `json:"id"`
	Date     string  `json:"date"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
	Category string  `json:"category"`
	Notes    *string `json:"notes"`
}

func toMetricResponses(metrics []model.FinancialMetric) []metricResponse {
	resp := make([]metricResponse, 0, len(metrics))
	for _, m := range metrics {
		resp = append(resp, metricResponse{
			ID:       m.ID,
			Date:     m.Date.Format(time.RFC3339),
			Revenue:  model.Dollars(m.RevenueCents),
			Expenses: model.Dollars(m.ExpensesCents),
			Profit:   model.Dollars(m.ProfitCents),
			Category: m.Category,
			Notes:    m.Notes,
		})
	}
	return resp
}

// GetFinancialMetrics возвращает последние записи финансового журнала.
func (h *Handler) GetFinancialMetrics(w http.ResponseWriter, r *http.Request) {
	limit := 6
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	metrics, err := h.service.ListFinancialMetrics(r.Context(), limit)
	if err != nil {
		h.internalError(w, "failed to fetch financial metrics", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toMetricResponses(metrics))
}

type metricRequest struct {
	Date     string   `json:"date"`
	Revenue  *float64 `json:"revenue"`
	Expenses *float64 `json:"expenses"`
	Profit   *float64 `json:"profit"`
	Category string   `json:"category"`
	Notes    *string  `json:"notes"`
}

// CreateFinancialMetric сохраняет запись финансового журнала.
func (h *Handler) CreateFinancialMetric(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var missing []string
	if req.Date == "" {
		missing = append(missing, "date")
	}
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		h.writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	date := parseDate(req.Date)
	if date.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	m := &model.FinancialMetric{Date: date, Category: req.Category, Notes: req.Notes}
	if req.Revenue != nil {
		m.RevenueCents = model.Cents(*req.Revenue)
	}
	if req.Expenses != nil {
		m.ExpensesCents = model.Cents(*req.Expenses)
	}
	if req.Profit != nil {
		m.ProfitCents = model.Cents(*req.Profit)
	}

	if err := h.service.CreateFinancialMetric(r.Context(), m); err != nil {
		h.internalError(w, "failed to create financial metric", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toMetricResponses([]model.FinancialMetric{*m})[0])
}

type researchResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// GetMarketResearch возвращает заметки исследований, новые первыми.
func (h *Handler) GetMarketResearch(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListMarketResearch(r.Context())
	if err != nil {
		h.internalError(w, "failed to fetch market research", err)
		return
	}

	resp := make([]researchResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, researchResponse{
			ID:        n.ID,
			Title:     n.Title,
			Content:   n.Content,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// CreateMarketResearch сохраняет заметку исследования.
func (h *Handler) CreateMarketResearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" || req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "missing required fields: title, content")
		return
	}

	n := &model.MarketResearch{Title: req.Title, Content: req.Content}
	if err := h.service.CreateMarketResearch(r.Context(), n); err != nil {
		h.internalError(w, "failed to create market research", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, researchResponse{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	})
}

// GetAnalytics возвращает сводку по продуктовым событиям сервиса.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.AnalyticsStats())
}
