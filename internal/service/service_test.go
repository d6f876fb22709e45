package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avolkov/coffeedash-system/internal/model"
	"github.com/avolkov/coffeedash-system/internal/report"
	"github.com/avolkov/coffeedash-system/internal/repository"
)

type createOrderCall struct {
	order        model.Order
	lines        []repository.OrderLine
	enforceStock bool
}

type stubRepo struct {
	customers map[string]*model.Customer
	products  map[string]*model.Product

	createOrderErr   error
	createOrderTotal int64
	createOrderCalls []createOrderCall

	clearCount int64
	clearErr   error

	salesTotals map[string]*repository.SalesTotals
	finances    []report.OrderFinance
	metrics     []model.FinancialMetric
	drift       []repository.AggregateDrift
	driftErr    error
}

func (s *stubRepo) Close() error                   { return nil }
func (s *stubRepo) Ping(ctx context.Context) error { return nil }

func (s *stubRepo) ListProducts(ctx context.Context) ([]model.Product, error) { return nil, nil }

func (s *stubRepo) GetProductByName(ctx context.Context, name string) (*model.Product, error) {
	if p, ok := s.products[name]; ok {
		return p, nil
	}
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) error { return nil }
func (s *stubRepo) UpdateProduct(ctx context.Context, p *model.Product) error { return nil }
func (s *stubRepo) DeleteProduct(ctx context.Context, id int64) error         { return nil }

func (s *stubRepo) ListCustomers(ctx context.Context) ([]model.Customer, error) { return nil, nil }

func (s *stubRepo) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	if c, ok := s.customers[email]; ok {
		return c, nil
	}
	return nil, repository.ErrCustomerNotFound
}

func (s *stubRepo) CreateCustomer(ctx context.Context, c *model.Customer) error { return nil }
func (s *stubRepo) UpdateCustomer(ctx context.Context, c *model.Customer) error { return nil }
func (s *stubRepo) DeleteCustomer(ctx context.Context, id int64) error          { return nil }

func (s *stubRepo) CreateOrder(ctx context.Context, order *model.Order, lines []repository.OrderLine, enforceStock bool) ([]string, error) {
	if s.createOrderErr != nil {
		return nil, s.createOrderErr
	}
	order.ID = int64(len(s.createOrderCalls) + 1)
	order.TotalCents = s.createOrderTotal
	s.createOrderCalls = append(s.createOrderCalls, createOrderCall{
		order:        *order,
		lines:        lines,
		enforceStock: enforceStock,
	})
	return nil, nil
}

func (s *stubRepo) ListOrders(ctx context.Context, limit int) ([]model.OrderSummary, error) {
	return nil, nil
}

func (s *stubRepo) ClearOrders(ctx context.Context) (int64, error) {
	return s.clearCount, s.clearErr
}

func (s *stubRepo) GetSalesTotals(ctx context.Context, from, to time.Time) (*repository.SalesTotals, error) {
	if s.salesTotals == nil {
		return &repository.SalesTotals{}, nil
	}
	// Текущий период заканчивается «сейчас», предыдущий — раньше.
	if time.Since(to) < time.Minute {
		return s.salesTotals["current"], nil
	}
	return s.salesTotals["previous"], nil
}

func (s *stubRepo) GetPaymentBreakdown(ctx context.Context) ([]repository.PaymentTotal, error) {
	return nil, nil
}

func (s *stubRepo) GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error) {
	return nil, nil
}

func (s *stubRepo) GetOrderFinances(ctx context.Context) ([]report.OrderFinance, error) {
	return s.finances, nil
}

func (s *stubRepo) CountCustomers(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubRepo) GetAggregateDrift(ctx context.Context) ([]repository.AggregateDrift, error) {
	return s.drift, s.driftErr
}

func (s *stubRepo) ListFinancialMetrics(ctx context.Context, limit int) ([]model.FinancialMetric, error) {
	return s.metrics, nil
}

func (s *stubRepo) CreateFinancialMetric(ctx context.Context, m *model.FinancialMetric) error {
	return nil
}

func (s *stubRepo) ListMarketResearch(ctx context.Context) ([]model.MarketResearch, error) {
	return nil, nil
}

func (s *stubRepo) CreateMarketResearch(ctx context.Context, n *model.MarketResearch) error {
	return nil
}

func TestCreateOrder_NoItems(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, true)

	_, err := svc.CreateOrder(context.Background(), 1, nil, "", "", time.Time{})
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, true)

	_, err := svc.CreateOrder(context.Background(), 1,
		[]repository.OrderLine{{ProductID: 1, Quantity: 0}}, "", "", time.Time{})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCreateOrder_Defaults(t *testing.T) {
	repo := &stubRepo{createOrderTotal: 700}
	svc := NewService(repo, nil, nil, true)

	before := time.Now()
	order, err := svc.CreateOrder(context.Background(), 1,
		[]repository.OrderLine{{ProductID: 2, Quantity: 2}}, "", "", time.Time{})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if order.Status != model.OrderStatusCompleted {
		t.Errorf("status = %q, want completed", order.Status)
	}
	if order.PaymentMethod != model.PaymentMethodCash {
		t.Errorf("payment method = %q, want cash", order.PaymentMethod)
	}
	if order.OrderDate.Before(before) {
		t.Errorf("order date not defaulted to now: %v", order.OrderDate)
	}

	if len(repo.createOrderCalls) != 1 {
		t.Fatalf("CreateOrder calls = %d, want 1", len(repo.createOrderCalls))
	}
	if repo.createOrderCalls[0].enforceStock {
		t.Errorf("enforceStock = true, want false with allowNegativeStock")
	}
}

func TestCreateOrder_EnforcesStockInStrictMode(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, false)

	_, err := svc.CreateOrder(context.Background(), 1,
		[]repository.OrderLine{{ProductID: 2, Quantity: 1}}, "", "", time.Time{})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if !repo.createOrderCalls[0].enforceStock {
		t.Errorf("enforceStock = false, want true in strict mode")
	}
}

func TestImportOrders_MixedRows(t *testing.T) {
	repo := &stubRepo{
		customers: map[string]*model.Customer{
			"ada@x.com": {ID: 1, Name: "Ada", Email: "ada@x.com"},
		},
		products: map[string]*model.Product{
			"Espresso": {ID: 2, Name: "Espresso", PriceCents: 350},
		},
		createOrderTotal: 1050,
	}
	svc := NewService(repo, nil, nil, true)

	res, err := svc.ImportOrders(context.Background(), []ImportRecord{
		{CustomerEmail: "ada@x.com", ProductName: "Espresso", Quantity: 3},
		{CustomerEmail: "missing@x.com", ProductName: "Espresso", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ImportOrders error: %v", err)
	}

	if res.Success != 1 {
		t.Errorf("success = %d, want 1", res.Success)
	}
	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "missing@x.com: Customer not found" {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.Message != "Imported 1 orders. 1 failed." {
		t.Errorf("message = %q", res.Message)
	}

	if len(repo.createOrderCalls) != 1 {
		t.Fatalf("CreateOrder calls = %d, want 1", len(repo.createOrderCalls))
	}
	call := repo.createOrderCalls[0]
	if call.order.CustomerID != 1 {
		t.Errorf("customer id = %d, want 1", call.order.CustomerID)
	}
	if len(call.lines) != 1 || call.lines[0].ProductID != 2 || call.lines[0].Quantity != 3 {
		t.Errorf("lines = %+v", call.lines)
	}
}

func TestImportOrders_ProductNotFound(t *testing.T) {
	repo := &stubRepo{
		customers: map[string]*model.Customer{
			"ada@x.com": {ID: 1, Email: "ada@x.com"},
		},
	}
	svc := NewService(repo, nil, nil, true)

	res, err := svc.ImportOrders(context.Background(), []ImportRecord{
		{CustomerEmail: "ada@x.com", ProductName: "Flat White", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ImportOrders error: %v", err)
	}

	if res.Failed != 1 || res.Success != 0 {
		t.Errorf("success = %d, failed = %d", res.Success, res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Flat White: Product not found" {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestImportOrders_RowErrorDoesNotAbortBatch(t *testing.T) {
	repo := &stubRepo{
		customers: map[string]*model.Customer{
			"ada@x.com": {ID: 1, Email: "ada@x.com"},
		},
		products: map[string]*model.Product{
			"Espresso": {ID: 2, Name: "Espresso"},
		},
	}
	svc := NewService(repo, nil, nil, true)

	res, err := svc.ImportOrders(context.Background(), []ImportRecord{
		{CustomerEmail: "ada@x.com", ProductName: "Espresso", Quantity: 0},
		{CustomerEmail: "ada@x.com", ProductName: "Espresso", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ImportOrders error: %v", err)
	}

	if res.Success != 1 || res.Failed != 1 {
		t.Errorf("success = %d, failed = %d, want 1 and 1", res.Success, res.Failed)
	}
}

func TestClearOrders(t *testing.T) {
	repo := &stubRepo{clearCount: 7}
	svc := NewService(repo, nil, nil, true)

	count, err := svc.ClearOrders(context.Background())
	if err != nil {
		t.Fatalf("ClearOrders error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestGetFinancialReport_ZeroRevenue(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, true)

	rep, err := svc.GetFinancialReport(context.Background())
	if err != nil {
		t.Fatalf("GetFinancialReport error: %v", err)
	}

	if rep.ProfitMargin != 0 {
		t.Errorf("profit margin = %v, want 0 on zero revenue", rep.ProfitMargin)
	}
	if rep.RevenueCents != 0 || rep.CostCents != 0 || rep.ProfitCents != 0 {
		t.Errorf("totals = %d/%d/%d, want zeros", rep.RevenueCents, rep.CostCents, rep.ProfitCents)
	}
}

func TestGetFinancialReport_Totals(t *testing.T) {
	repo := &stubRepo{
		finances: []report.OrderFinance{
			{OrderDate: time.Now(), RevenueCents: 700, CostCents: 160},
			{OrderDate: time.Now(), RevenueCents: 300, CostCents: 140},
		},
	}
	svc := NewService(repo, nil, nil, true)

	rep, err := svc.GetFinancialReport(context.Background())
	if err != nil {
		t.Fatalf("GetFinancialReport error: %v", err)
	}

	if rep.RevenueCents != 1000 || rep.CostCents != 300 || rep.ProfitCents != 700 {
		t.Errorf("totals = %d/%d/%d", rep.RevenueCents, rep.CostCents, rep.ProfitCents)
	}
	if rep.ProfitMargin != 70 {
		t.Errorf("profit margin = %v, want 70", rep.ProfitMargin)
	}
	if len(rep.Monthly) != 1 {
		t.Errorf("monthly buckets = %d, want 1", len(rep.Monthly))
	}
}

func TestGetSalesReport_Growth(t *testing.T) {
	repo := &stubRepo{
		salesTotals: map[string]*repository.SalesTotals{
			"current":  {RevenueCents: 20000, Orders: 20, Customers: 5},
			"previous": {RevenueCents: 10000, Orders: 10, Customers: 4},
		},
	}
	svc := NewService(repo, nil, nil, true)

	rep, err := svc.GetSalesReport(context.Background())
	if err != nil {
		t.Fatalf("GetSalesReport error: %v", err)
	}

	if rep.RevenueGrowth != 100 {
		t.Errorf("revenue growth = %v, want 100", rep.RevenueGrowth)
	}
	if rep.OrdersGrowth != 100 {
		t.Errorf("orders growth = %v, want 100", rep.OrdersGrowth)
	}
}

func TestStartReconciliation_DoesNotBlock(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		svc.StartReconciliation(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartReconciliation did not return")
	}
}
