package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avolkov/coffeedash-system/internal/model"
)

// В этом файле собраны все правила сопровождения производного состояния:
// агрегаты клиента (total_spent, visit_count, loyalty_points, last_visit) и
// остатки товаров. Создание заказа, импорт и очистка используют только эти
// помощники, поэтому правила не могут разойтись между точками входа.

// applyOrderAggregates начисляет агрегаты клиента за один заказ.
// last_visit перезаписывается датой заказа безусловно, даже если она раньше текущей.
func applyOrderAggregates(ctx context.Context, tx pgx.Tx, customerID, totalCents int64, orderDate time.Time) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE customers
		 SET total_spent_cents = total_spent_cents + $2,
		     visit_count = visit_count + 1,
		     loyalty_points = loyalty_points + $3,
		     last_visit = $4
		 WHERE id = $1`,
		customerID, totalCents, model.LoyaltyPointsFor(totalCents), orderDate,
	)
	if err != nil {
		return fmt.Errorf("apply customer aggregates: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// decrementStock списывает остаток товара и возвращает новое значение.
func decrementStock(ctx context.Context, tx pgx.Tx, productID, quantity int64) (int64, error) {
	var stock int64
	err := tx.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 RETURNING stock`,
		productID, quantity,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}

// restoreAllStock возвращает остатки всех товаров, списанные существующими
// заказами: одно групповое обновление вместо построчного цикла. Позиции
// удалённых товаров пропускаются.
func restoreAllStock(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`UPDATE products p
		 SET stock = p.stock + s.quantity
		 FROM (
		     SELECT product_id, SUM(quantity) AS quantity
		     FROM order_items
		     WHERE product_id IS NOT NULL
		     GROUP BY product_id
		 ) s
		 WHERE p.id = s.product_id`,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

// resetAllCustomers безусловно сбрасывает агрегаты всех клиентов в нулевое
// состояние. Пересчёт не нужен: после очистки заказов не остаётся.
func resetAllCustomers(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`UPDATE customers
		 SET total_spent_cents = 0, visit_count = 0, loyalty_points = 0, last_visit = NULL`,
	)
	if err != nil {
		return fmt.Errorf("reset customers: %w", err)
	}
	return nil
}

// AggregateDrift описывает расхождение между хранимыми агрегатами клиента и
// пересчётом по его заказам.
type AggregateDrift struct {
	CustomerID       int64
	Email            string
	StoredSpentCents int64
	ActualSpentCents int64
	StoredVisits     int64
	ActualVisits     int64
	StoredPoints     int64
	ActualPoints     int64
}

// GetAggregateDrift пересчитывает агрегаты каждого клиента по заказам и
// возвращает клиентов, у которых хранимые значения разошлись с фактическими.
func (r *PostgresRepository) GetAggregateDrift(ctx context.Context) ([]AggregateDrift, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.email,
		        c.total_spent_cents, COALESCE(SUM(o.total_cents), 0),
		        c.visit_count, COUNT(o.id),
		        c.loyalty_points, COALESCE(SUM(o.total_cents / 100), 0)
		 FROM customers c
		 LEFT JOIN orders o ON o.customer_id = c.id
		 GROUP BY c.id, c.email, c.total_spent_cents, c.visit_count, c.loyalty_points
		 HAVING c.total_spent_cents <> COALESCE(SUM(o.total_cents), 0)
		     OR c.visit_count <> COUNT(o.id)
		     OR c.loyalty_points <> COALESCE(SUM(o.total_cents / 100), 0)`,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate drift: %w", err)
	}
	defer rows.Close()

	var res []AggregateDrift
	for rows.Next() {
		var d AggregateDrift
		if err := rows.Scan(&d.CustomerID, &d.Email,
			&d.StoredSpentCents, &d.ActualSpentCents,
			&d.StoredVisits, &d.ActualVisits,
			&d.StoredPoints, &d.ActualPoints); err != nil {
			return nil, fmt.Errorf("scan aggregate drift: %w", err)
		}
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
