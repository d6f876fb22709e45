// Package report содержит чистую арифметику отчётов по продажам.
package report

import (
	"sort"
	"time"
)

// OrderFinance содержит дату, выручку и себестоимость одного заказа.
// Себестоимость считается по снимкам в позициях заказа.
type OrderFinance struct {
	OrderDate    time.Time
	RevenueCents int64
	CostCents    int64
}

// MonthlyReport содержит агрегаты заказов за один календарный месяц.
type MonthlyReport struct {
	Month        string
	RevenueCents int64
	CostCents    int64
	ProfitCents  int64
	Orders       int64
}

// Totals суммирует выручку, себестоимость и прибыль по всем заказам.
func Totals(rows []OrderFinance) (revenueCents, costCents, profitCents int64) {
	for _, row := range rows {
		revenueCents += row.RevenueCents
		costCents += row.CostCents
	}
	profitCents = revenueCents - costCents
	return revenueCents, costCents, profitCents
}

// MonthlyBreakdown группирует заказы по календарным месяцам и возвращает
// не более months последних месяцев, новые первыми. Метка месяца — «Jan 2006».
func MonthlyBreakdown(rows []OrderFinance, months int) []MonthlyReport {
	buckets := make(map[time.Time]*MonthlyReport)

	for _, row := range rows {
		key := time.Date(row.OrderDate.Year(), row.OrderDate.Month(), 1, 0, 0, 0, 0, time.UTC)

		b, ok := buckets[key]
		if !ok {
			b = &MonthlyReport{Month: key.Format("Jan 2006")}
			buckets[key] = b
		}

		b.RevenueCents += row.RevenueCents
		b.CostCents += row.CostCents
		b.ProfitCents += row.RevenueCents - row.CostCents
		b.Orders++
	}

	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].After(keys[j]) })

	if months > 0 && len(keys) > months {
		keys = keys[:months]
	}

	res := make([]MonthlyReport, 0, len(keys))
	for _, key := range keys {
		res = append(res, *buckets[key])
	}

	return res
}

// ProfitMargin возвращает маржу в процентах. При нулевой выручке возвращает 0,
// а не NaN или бесконечность.
func ProfitMargin(profitCents, revenueCents int64) float64 {
	if revenueCents <= 0 {
		return 0
	}
	return float64(profitCents) / float64(revenueCents) * 100
}

// GrowthPercent возвращает прирост текущего периода к предыдущему в процентах.
// При нулевом предыдущем периоде возвращает 0.
func GrowthPercent(currentCents, previousCents int64) float64 {
	if previousCents <= 0 {
		return 0
	}
	return float64(currentCents-previousCents) / float64(previousCents) * 100
}
