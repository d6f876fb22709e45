// Package service реализует бизнес-логику аналитического сервиса кофейни.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/coffeedash-system/internal/analytics"
	"github.com/avolkov/coffeedash-system/internal/model"
	"github.com/avolkov/coffeedash-system/internal/report"
	"github.com/avolkov/coffeedash-system/internal/repository"
)

// ErrNoItems возвращается при попытке создать заказ без позиций.
var (
	ErrNoItems = errors.New("order must contain at least one item")
	// ErrInvalidQuantity возвращается при неположительном количестве в позиции заказа.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

const (
	salesPeriod       = 30 * 24 * time.Hour
	reconcileInterval = 5 * time.Minute
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProductByName(ctx context.Context, name string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, order *model.Order, lines []repository.OrderLine, enforceStock bool) ([]string, error)
	ListOrders(ctx context.Context, limit int) ([]model.OrderSummary, error)
	ClearOrders(ctx context.Context) (int64, error)

	GetSalesTotals(ctx context.Context, from, to time.Time) (*repository.SalesTotals, error)
	GetPaymentBreakdown(ctx context.Context) ([]repository.PaymentTotal, error)
	GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error)
	GetOrderFinances(ctx context.Context) ([]report.OrderFinance, error)
	CountCustomers(ctx context.Context) (int64, error)
	GetAggregateDrift(ctx context.Context) ([]repository.AggregateDrift, error)

	ListFinancialMetrics(ctx context.Context, limit int) ([]model.FinancialMetric, error)
	CreateFinancialMetric(ctx context.Context, m *model.FinancialMetric) error
	ListMarketResearch(ctx context.Context) ([]model.MarketResearch, error)
	CreateMarketResearch(ctx context.Context, n *model.MarketResearch) error
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo               Repository
	tracker            *analytics.Tracker
	logger             *zap.Logger
	allowNegativeStock bool
}

// NewService создаёт новый сервис.
func NewService(repo Repository, tracker *analytics.Tracker, logger *zap.Logger, allowNegativeStock bool) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:               repo,
		tracker:            tracker,
		logger:             logger,
		allowNegativeStock: allowNegativeStock,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) track(name string, properties map[string]any) {
	if s.tracker != nil {
		s.tracker.Track(name, properties)
	}
}

// AnalyticsStats возвращает сводку по продуктовым событиям.
func (s *Service) AnalyticsStats() analytics.Stats {
	if s.tracker == nil {
		return analytics.Stats{ByName: map[string]int{}}
	}
	return s.tracker.GetStats()
}

// ListProducts возвращает каталог товаров.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// CreateProduct создаёт товар.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.track("product_created", map[string]any{"name": p.Name})
	return nil
}

// UpdateProduct обновляет товар.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.track("product_updated", map[string]any{"name": p.Name})
	return nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.track("product_deleted", nil)
	return nil
}

// ListCustomers возвращает всех клиентов.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// CreateCustomer создаёт клиента.
func (s *Service) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return err
	}
	s.track("customer_created", nil)
	return nil
}

// UpdateCustomer обновляет идентификационные поля клиента.
func (s *Service) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return err
	}
	s.track("customer_updated", nil)
	return nil
}

// DeleteCustomer удаляет клиента.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.track("customer_deleted", nil)
	return nil
}

// CreateOrder создаёт заказ с позициями, списывает остатки и начисляет агрегаты
// клиента одной транзакцией. Нулевая дата означает «сейчас», пустые статус и
// способ оплаты заменяются значениями по умолчанию.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, lines []repository.OrderLine,
	paymentMethod model.PaymentMethod, status model.OrderStatus, orderDate time.Time) (*model.Order, error) {

	if len(lines) == 0 {
		return nil, ErrNoItems
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	if status == "" {
		status = model.OrderStatusCompleted
	}
	if paymentMethod == "" {
		paymentMethod = model.PaymentMethodCash
	}

	order := &model.Order{
		CustomerID:    customerID,
		OrderDate:     orderDate,
		Status:        status,
		PaymentMethod: paymentMethod,
	}

	negative, err := s.repo.CreateOrder(ctx, order, lines, !s.allowNegativeStock)
	if err != nil {
		return nil, err
	}

	for _, name := range negative {
		s.logger.Warn("product stock went negative",
			zap.String("product", name),
			zap.Int64("order_id", order.ID))
	}

	s.track("order_created", map[string]any{"total": model.Dollars(order.TotalCents)})

	return order, nil
}

// ImportRecord описывает одну строку массового импорта заказов.
type ImportRecord struct {
	CustomerEmail string
	ProductName   string
	Quantity      int64
	OrderDate     time.Time
	Status        model.OrderStatus
	PaymentMethod model.PaymentMethod
}

// ImportResult содержит итог массового импорта.
type ImportResult struct {
	Message string
	Success int
	Failed  int
	Errors  []string
}

// ImportOrders выполняет массовый импорт: каждая строка превращается в заказ из
// одной позиции через обычный путь создания. Ошибки строк накапливаются и не
// прерывают пакет; успешные строки остаются зафиксированными в любом случае.
func (s *Service) ImportOrders(ctx context.Context, records []ImportRecord) (*ImportResult, error) {
	res := &ImportResult{Errors: []string{}}

	for _, rec := range records {
		customer, err := s.repo.GetCustomerByEmail(ctx, rec.CustomerEmail)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: Customer not found", rec.CustomerEmail))
				continue
			}
			return nil, err
		}

		product, err := s.repo.GetProductByName(ctx, rec.ProductName)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: Product not found", rec.ProductName))
				continue
			}
			return nil, err
		}

		_, err = s.CreateOrder(ctx, customer.ID,
			[]repository.OrderLine{{ProductID: product.ID, Quantity: rec.Quantity}},
			rec.PaymentMethod, rec.Status, rec.OrderDate)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Order error: %s", err))
			continue
		}

		res.Success++
	}

	res.Message = fmt.Sprintf("Imported %d orders. %d failed.", res.Success, res.Failed)
	s.track("data_imported", map[string]any{"success": res.Success, "failed": res.Failed})

	return res, nil
}

// ListOrders возвращает последние заказы.
func (s *Service) ListOrders(ctx context.Context, limit int) ([]model.OrderSummary, error) {
	return s.repo.ListOrders(ctx, limit)
}

// ClearOrders удаляет все заказы, возвращает остатки товаров и обнуляет
// агрегаты клиентов. Возвращает число удалённых заказов.
func (s *Service) ClearOrders(ctx context.Context) (int64, error) {
	count, err := s.repo.ClearOrders(ctx)
	if err != nil {
		return 0, err
	}
	s.track("orders_cleared", map[string]any{"count": count})
	return count, nil
}

// Overview содержит сводку для главной страницы дашборда.
type Overview struct {
	RevenueCents int64
	Orders       int64
	Customers    int64
	RecentOrders []model.OrderSummary
	TopProducts  []repository.ProductSales
}

// GetOverview возвращает сводку за последние 30 дней.
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	now := time.Now()

	totals, err := s.repo.GetSalesTotals(ctx, now.Add(-salesPeriod), now)
	if err != nil {
		return nil, err
	}

	customers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.ListOrders(ctx, 5)
	if err != nil {
		return nil, err
	}

	top, err := s.repo.GetTopProducts(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &Overview{
		RevenueCents: totals.RevenueCents,
		Orders:       totals.Orders,
		Customers:    customers,
		RecentOrders: recent,
		TopProducts:  top,
	}, nil
}

// SalesReport содержит сравнение периодов продаж и структуру продаж.
type SalesReport struct {
	Current       repository.SalesTotals
	Previous      repository.SalesTotals
	RevenueGrowth float64
	OrdersGrowth  float64
	ByPayment     []repository.PaymentTotal
	TopProducts   []repository.ProductSales
}

// GetSalesReport сравнивает последние 30 дней с предыдущими 30 днями.
func (s *Service) GetSalesReport(ctx context.Context) (*SalesReport, error) {
	now := time.Now()
	periodStart := now.Add(-salesPeriod)
	prevStart := now.Add(-2 * salesPeriod)

	current, err := s.repo.GetSalesTotals(ctx, periodStart, now)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.GetSalesTotals(ctx, prevStart, periodStart)
	if err != nil {
		return nil, err
	}

	byPayment, err := s.repo.GetPaymentBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	top, err := s.repo.GetTopProducts(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &SalesReport{
		Current:       *current,
		Previous:      *previous,
		RevenueGrowth: report.GrowthPercent(current.RevenueCents, previous.RevenueCents),
		OrdersGrowth:  report.GrowthPercent(current.Orders, previous.Orders),
		ByPayment:     byPayment,
		TopProducts:   top,
	}, nil
}

// FinancialReport содержит итоги по выручке, себестоимости и прибыли.
type FinancialReport struct {
	RevenueCents int64
	CostCents    int64
	ProfitCents  int64
	ProfitMargin float64
	Monthly      []report.MonthlyReport
	Metrics      []model.FinancialMetric
}

// GetFinancialReport строит финансовый отчёт: итоги, маржу, помесячную разбивку
// за последние шесть месяцев и последние записи финансового журнала.
func (s *Service) GetFinancialReport(ctx context.Context) (*FinancialReport, error) {
	rows, err := s.repo.GetOrderFinances(ctx)
	if err != nil {
		return nil, err
	}

	revenue, cost, profit := report.Totals(rows)

	metrics, err := s.repo.ListFinancialMetrics(ctx, 6)
	if err != nil {
		return nil, err
	}

	return &FinancialReport{
		RevenueCents: revenue,
		CostCents:    cost,
		ProfitCents:  profit,
		ProfitMargin: report.ProfitMargin(profit, revenue),
		Monthly:      report.MonthlyBreakdown(rows, 6),
		Metrics:      metrics,
	}, nil
}

// ListFinancialMetrics возвращает последние записи финансового журнала.
func (s *Service) ListFinancialMetrics(ctx context.Context, limit int) ([]model.FinancialMetric, error) {
	return s.repo.ListFinancialMetrics(ctx, limit)
}

// CreateFinancialMetric сохраняет запись финансового журнала. При нулевой
// прибыли она вычисляется как выручка минус расходы.
func (s *Service) CreateFinancialMetric(ctx context.Context, m *model.FinancialMetric) error {
	if m.ProfitCents == 0 {
		m.ProfitCents = m.RevenueCents - m.ExpensesCents
	}
	return s.repo.CreateFinancialMetric(ctx, m)
}

// ListMarketResearch возвращает заметки исследований.
func (s *Service) ListMarketResearch(ctx context.Context) ([]model.MarketResearch, error) {
	return s.repo.ListMarketResearch(ctx)
}

// CreateMarketResearch сохраняет заметку исследования.
func (s *Service) CreateMarketResearch(ctx context.Context, n *model.MarketResearch) error {
	return s.repo.CreateMarketResearch(ctx, n)
}

// CheckAggregates пересчитывает агрегаты клиентов по заказам и возвращает
// найденные расхождения.
func (s *Service) CheckAggregates(ctx context.Context) ([]repository.AggregateDrift, error) {
	return s.repo.GetAggregateDrift(ctx)
}

// StartReconciliation запускает фоновую сверку производных агрегатов клиентов
// с пересчётом по заказам. Найденные расхождения попадают в лог.
func (s *Service) StartReconciliation(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcile(ctx)
			}
		}
	}()
}

func (s *Service) reconcile(ctx context.Context) {
	drift, err := s.repo.GetAggregateDrift(ctx)
	if err != nil {
		s.logger.Error("aggregate reconciliation failed", zap.Error(err))
		return
	}

	for _, d := range drift {
		s.logger.Warn("customer aggregates drifted from orders",
			zap.Int64("customer_id", d.CustomerID),
			zap.String("email", d.Email),
			zap.Int64("stored_spent_cents", d.StoredSpentCents),
			zap.Int64("actual_spent_cents", d.ActualSpentCents),
			zap.Int64("stored_visits", d.StoredVisits),
			zap.Int64("actual_visits", d.ActualVisits))
	}
}
