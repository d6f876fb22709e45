// Package model содержит доменные сущности аналитического сервиса кофейни.
package model

import "time"

// Product представляет позицию каталога кофейни.
// Цена и себестоимость хранятся в центах, stock изменяется только путями создания/очистки заказов.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Category    string
	PriceCents  int64
	CostCents   int64
	Stock       int64
	ImageURL    *string
	IsActive    bool
	CreatedAt   time.Time
}

// Customer представляет клиента кофейни.
// TotalSpentCents, VisitCount и LoyaltyPoints — производные поля: они всегда равны
// агрегату по заказам клиента и изменяются только через создание заказов или полную очистку.
type Customer struct {
	ID              int64
	Name            string
	Email           string
	Phone           *string
	TotalSpentCents int64
	VisitCount      int64
	LoyaltyPoints   int64
	LastVisit       *time.Time
	CreatedAt       time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodMobile PaymentMethod = "mobile"
)

// Order описывает заказ клиента. TotalCents всегда равен сумме позиций.
type Order struct {
	ID            int64
	CustomerID    int64
	OrderDate     time.Time
	TotalCents    int64
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Items         []OrderItem
}

// OrderItem описывает позицию заказа. PriceCents и CostCents — снимки цены и
// себестоимости товара на момент заказа: исторические суммы не зависят от
// последующих изменений каталога. ProductID равен nil, если товар был удалён.
type OrderItem struct {
	ID         int64
	OrderID    int64
	ProductID  *int64
	Quantity   int64
	PriceCents int64
	CostCents  int64
}

// OrderSummary описывает заказ вместе с данными клиента для списков и отчётов.
type OrderSummary struct {
	Order
	CustomerName  string
	CustomerEmail string
}

// FinancialMetric — запись финансового журнала. Ведётся вручную и не
// вычисляется из заказов.
type FinancialMetric struct {
	ID            int64
	Date          time.Time
	RevenueCents  int64
	ExpensesCents int64
	ProfitCents   int64
	Category      string
	Notes         *string
	CreatedAt     time.Time
}

// MarketResearch — свободная заметка маркетингового исследования.
type MarketResearch struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
}

// Cents переводит сумму в долларах в центы с округлением до ближайшего цента.
func Cents(dollars float64) int64 {
	if dollars >= 0 {
		return int64(dollars*100 + 0.5)
	}
	return int64(dollars*100 - 0.5)
}

// Dollars переводит центы в сумму в долларах.
func Dollars(cents int64) float64 {
	return float64(cents) / 100
}

// LoyaltyPointsFor возвращает количество бонусных баллов за заказ:
// целая часть суммы заказа в долларах.
func LoyaltyPointsFor(totalCents int64) int64 {
	return totalCents / 100
}
