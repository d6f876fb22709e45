// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/avolkov/coffeedash-system/internal/model"
	"github.com/avolkov/coffeedash-system/internal/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCustomerExists возвращается при попытке создать клиента с уже занятым email.
var (
	ErrCustomerExists = errors.New("customer already exists")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerHasOrders возвращается при попытке удалить клиента с заказами.
	ErrCustomerHasOrders = errors.New("customer has orders")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается в строгом режиме, если остатка товара не хватает на заказ.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// ListProducts возвращает все товары каталога по алфавиту.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, category, price_cents, cost_cents, stock, image_url, is_active, created_at
		 FROM products
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents,
			&p.CostCents, &p.Stock, &p.ImageURL, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetProductByName возвращает товар по имени. Если имён несколько, берётся самый старый.
func (r *PostgresRepository) GetProductByName(ctx context.Context, name string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, category, price_cents, cost_cents, stock, image_url, is_active, created_at
		 FROM products
		 WHERE name = $1
		 ORDER BY id
		 LIMIT 1`,
		name,
	)

	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents,
		&p.CostCents, &p.Stock, &p.ImageURL, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by name: %w", err)
	}

	return &p, nil
}

// CreateProduct создаёт новый товар и заполняет его ID и время создания.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, category, price_cents, cost_cents, stock, image_url, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		p.Name, p.Description, p.Category, p.PriceCents, p.CostCents, p.Stock, p.ImageURL, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// UpdateProduct обновляет товар целиком по его ID.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, description = $3, category = $4, price_cents = $5, cost_cents = $6,
		     stock = $7, image_url = $8, is_active = $9
		 WHERE id = $1
		 RETURNING created_at`,
		p.ID, p.Name, p.Description, p.Category, p.PriceCents, p.CostCents, p.Stock, p.ImageURL, p.IsActive,
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// DeleteProduct удаляет товар. Исторические позиции заказов сохраняются
// (ссылка на товар в них обнуляется на уровне схемы).
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListCustomers возвращает всех клиентов, сначала самых «дорогих».
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, phone, total_spent_cents, visit_count, loyalty_points, last_visit, created_at
		 FROM customers
		 ORDER BY total_spent_cents DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpentCents,
			&c.VisitCount, &c.LoyaltyPoints, &c.LastVisit, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

// GetCustomerByEmail возвращает клиента по email.
func (r *PostgresRepository) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, total_spent_cents, visit_count, loyalty_points, last_visit, created_at
		 FROM customers
		 WHERE email = $1`,
		email,
	)

	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpentCents,
		&c.VisitCount, &c.LoyaltyPoints, &c.LastVisit, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by email: %w", err)
	}

	return &c, nil
}

// CreateCustomer создаёт нового клиента с нулевыми агрегатами.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c *model.Customer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, email, phone) VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.Name, c.Email, c.Phone,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Email)
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// UpdateCustomer обновляет только идентификационные поля клиента.
// Производные поля (total_spent, visit_count, loyalty_points, last_visit)
// напрямую не редактируются.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	row := r.pool.QueryRow(ctx,
		`UPDATE customers
		 SET name = $2, email = $3, phone = $4
		 WHERE id = $1
		 RETURNING total_spent_cents, visit_count, loyalty_points, last_visit, created_at`,
		c.ID, c.Name, c.Email, c.Phone,
	)

	err := row.Scan(&c.TotalSpentCents, &c.VisitCount, &c.LoyaltyPoints, &c.LastVisit, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Email)
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// DeleteCustomer удаляет клиента. Клиент с заказами не удаляется:
// история заказов ссылается на него.
func (r *PostgresRepository) DeleteCustomer(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrCustomerHasOrders
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// OrderLine описывает запрошенную позицию при создании заказа.
type OrderLine struct {
	ProductID int64
	Quantity  int64
}

// CreateOrder создаёт заказ с позициями в одной транзакции: снимает снимки цены и
// себестоимости, списывает остатки, начисляет агрегаты клиента. Возвращает имена
// товаров, остаток которых ушёл в минус (в строгом режиме вместо этого возвращается
// ErrInsufficientStock).
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order, lines []OrderLine, enforceStock bool) ([]string, error) {
	var negative []string

	err := r.withRetry(ctx, func() error {
		negative = negative[:0]

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку клиента: агрегаты обновляются в конце транзакции.
		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM customers WHERE id = $1 FOR UPDATE`, order.CustomerID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCustomerNotFound
			}
			return fmt.Errorf("lock customer: %w", err)
		}

		order.TotalCents = 0
		order.Items = order.Items[:0]
		productNames := make(map[int64]string, len(lines))

		for _, line := range lines {
			var (
				name       string
				priceCents int64
				costCents  int64
				stock      int64
			)
			err = tx.QueryRow(ctx,
				`SELECT name, price_cents, cost_cents, stock FROM products WHERE id = $1 FOR UPDATE`,
				line.ProductID,
			).Scan(&name, &priceCents, &costCents, &stock)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: id %d", ErrProductNotFound, line.ProductID)
				}
				return fmt.Errorf("lock product: %w", err)
			}

			if enforceStock && stock < line.Quantity {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
			}
			productNames[line.ProductID] = name

			productID := line.ProductID
			order.Items = append(order.Items, model.OrderItem{
				ProductID:  &productID,
				Quantity:   line.Quantity,
				PriceCents: priceCents,
				CostCents:  costCents,
			})
			order.TotalCents += priceCents * line.Quantity
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (customer_id, order_date, total_cents, status, payment_method)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			order.CustomerID, order.OrderDate, order.TotalCents, string(order.Status), string(order.PaymentMethod),
		).Scan(&order.ID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID

			err = tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_cents, cost_cents)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				item.OrderID, item.ProductID, item.Quantity, item.PriceCents, item.CostCents,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}

			stock, err := decrementStock(ctx, tx, *item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if stock < 0 {
				negative = append(negative, productNames[*item.ProductID])
			}
		}

		if err := applyOrderAggregates(ctx, tx, order.CustomerID, order.TotalCents, order.OrderDate); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return negative, nil
}

// ListOrders возвращает последние заказы вместе с данными клиентов.
func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]model.OrderSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.customer_id, o.order_date, o.total_cents, o.status, o.payment_method, c.name, c.email
		 FROM orders o
		 JOIN customers c ON c.id = o.customer_id
		 ORDER BY o.order_date DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.OrderSummary
	for rows.Next() {
		var (
			o             model.OrderSummary
			status        string
			paymentMethod string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.TotalCents,
			&status, &paymentMethod, &o.CustomerName, &o.CustomerEmail); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		o.PaymentMethod = model.PaymentMethod(paymentMethod)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// ClearOrders удаляет все заказы с позициями, возвращая остатки товаров и
// обнуляя агрегаты клиентов. Выполняется одной транзакцией: при прерывании
// состояние остаётся прежним, частичной очистки не бывает.
func (r *PostgresRepository) ClearOrders(ctx context.Context) (int64, error) {
	var deleted int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := restoreAllStock(ctx, tx); err != nil {
			return err
		}

		if err := resetAllCustomers(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items`); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}

		cmdTag, err := tx.Exec(ctx, `DELETE FROM orders`)
		if err != nil {
			return fmt.Errorf("delete orders: %w", err)
		}
		deleted = cmdTag.RowsAffected()

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// SalesTotals содержит агрегаты по заказам за период.
type SalesTotals struct {
	RevenueCents int64
	Orders       int64
	Customers    int64
}

// GetSalesTotals возвращает выручку, число заказов и число уникальных клиентов за период [from, to).
func (r *PostgresRepository) GetSalesTotals(ctx context.Context, from, to time.Time) (*SalesTotals, error) {
	var t SalesTotals
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_cents), 0), COUNT(*), COUNT(DISTINCT customer_id)
		 FROM orders
		 WHERE order_date >= $1 AND order_date < $2`,
		from, to,
	).Scan(&t.RevenueCents, &t.Orders, &t.Customers)
	if err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}
	return &t, nil
}

// PaymentTotal содержит агрегаты заказов по способу оплаты.
type PaymentTotal struct {
	Method       model.PaymentMethod
	RevenueCents int64
	Orders       int64
}

// GetPaymentBreakdown возвращает выручку и число заказов в разрезе способов оплаты.
func (r *PostgresRepository) GetPaymentBreakdown(ctx context.Context) ([]PaymentTotal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payment_method, COALESCE(SUM(total_cents), 0), COUNT(*)
		 FROM orders
		 GROUP BY payment_method
		 ORDER BY SUM(total_cents) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("payment breakdown: %w", err)
	}
	defer rows.Close()

	var res []PaymentTotal
	for rows.Next() {
		var (
			method string
			t      PaymentTotal
		)
		if err := rows.Scan(&method, &t.RevenueCents, &t.Orders); err != nil {
			return nil, fmt.Errorf("scan payment total: %w", err)
		}
		t.Method = model.PaymentMethod(method)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ProductSales описывает продажи одного товара.
type ProductSales struct {
	ProductID    int64
	Name         string
	Category     string
	PriceCents   int64
	UnitsSold    int64
	RevenueCents int64
}

// GetTopProducts возвращает товары-лидеры по проданному количеству.
// Позиции удалённых товаров не учитываются.
func (r *PostgresRepository) GetTopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.category, p.price_cents,
		        SUM(i.quantity), SUM(i.price_cents * i.quantity)
		 FROM order_items i
		 JOIN products p ON p.id = i.product_id
		 GROUP BY p.id, p.name, p.category, p.price_cents
		 ORDER BY SUM(i.quantity) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var res []ProductSales
	for rows.Next() {
		var s ProductSales
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Category, &s.PriceCents, &s.UnitsSold, &s.RevenueCents); err != nil {
			return nil, fmt.Errorf("scan product sales: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrderFinances возвращает дату, выручку и себестоимость каждого заказа.
// Себестоимость считается по снимкам в позициях заказа.
func (r *PostgresRepository) GetOrderFinances(ctx context.Context) ([]report.OrderFinance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.order_date, o.total_cents, COALESCE(SUM(i.cost_cents * i.quantity), 0)
		 FROM orders o
		 LEFT JOIN order_items i ON i.order_id = o.id
		 GROUP BY o.id, o.order_date, o.total_cents
		 ORDER BY o.order_date`,
	)
	if err != nil {
		return nil, fmt.Errorf("order finances: %w", err)
	}
	defer rows.Close()

	var res []report.OrderFinance
	for rows.Next() {
		var f report.OrderFinance
		if err := rows.Scan(&f.OrderDate, &f.RevenueCents, &f.CostCents); err != nil {
			return nil, fmt.Errorf("scan order finance: %w", err)
		}
		res = append(res, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountCustomers возвращает общее число клиентов.
func (r *PostgresRepository) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

// ListFinancialMetrics возвращает последние записи финансового журнала.
func (r *PostgresRepository) ListFinancialMetrics(ctx context.Context, limit int) ([]model.FinancialMetric, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, date, revenue_cents, expenses_cents, profit_cents, category, notes, created_at
		 FROM financial_metrics
		 ORDER BY date DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select financial metrics: %w", err)
	}
	defer rows.Close()

	var res []model.FinancialMetric
	for rows.Next() {
		var m model.FinancialMetric
		if err := rows.Scan(&m.ID, &m.Date, &m.RevenueCents, &m.ExpensesCents,
			&m.ProfitCents, &m.Category, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan financial metric: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateFinancialMetric сохраняет запись финансового журнала.
func (r *PostgresRepository) CreateFinancialMetric(ctx context.Context, m *model.FinancialMetric) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO financial_metrics (date, revenue_cents, expenses_cents, profit_cents, category, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		m.Date, m.RevenueCents, m.ExpensesCents, m.ProfitCents, m.Category, m.Notes,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create financial metric: %w", err)
	}
	return nil
}

// ListMarketResearch возвращает заметки исследований, новые первыми.
func (r *PostgresRepository) ListMarketResearch(ctx context.Context) ([]model.MarketResearch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, content, created_at FROM market_research ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select market research: %w", err)
	}
	defer rows.Close()

	var res []model.MarketResearch
	for rows.Next() {
		var n model.MarketResearch
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan market research: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateMarketResearch сохраняет заметку исследования.
func (r *PostgresRepository) CreateMarketResearch(ctx context.Context, n *model.MarketResearch) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO market_research (title, content) VALUES ($1, $2) RETURNING id, created_at`,
		n.Title, n.Content,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create market research: %w", err)
	}
	return nil
}
