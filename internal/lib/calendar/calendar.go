// Package calendar содержит чистые функции календарной арифметики для движка
// повторяющихся правил: безопасное добавление месяцев с прижатием к концу месяца,
// продвижение курсора на интервал и канонические ключи периодов.
package calendar

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// AddMonthsSafe добавляет n месяцев к дате. Если в целевом месяце меньше дней,
// чем исходный день месяца, дата прижимается к последнему дню целевого месяца:
// 31 января + 1 месяц = 28/29 февраля, а не 2-3 марта.
func AddMonthsSafe(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	day := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

// Advance возвращает дату через count единиц unit после t.
// Дни и недели — точная календарная арифметика, месяцы и годы идут через
// AddMonthsSafe, поэтому 29 февраля + 1 год даёт 28 февраля невисокосного года.
func Advance(t time.Time, unit models.IntervalUnit, count int) time.Time {
	switch unit {
	case models.UnitDay:
		return t.AddDate(0, 0, count)
	case models.UnitWeek:
		return t.AddDate(0, 0, 7*count)
	case models.UnitMonth:
		return AddMonthsSafe(t, count)
	case models.UnitYear:
		return AddMonthsSafe(t, 12*count)
	}
	return t
}

// PeriodKey возвращает канонический идентификатор периода для даты и единицы интервала.
// Ключ служит единицей дедупликации: два вхождения одного правила с одинаковым
// ключом — это один и тот же период, независимо от дрейфа дня месяца.
//
//	day   -> 2025-01-31
//	week  -> 2025-W33 (ISO 8601, недели с понедельника)
//	month -> 2025-01
//	year  -> 2025
func PeriodKey(t time.Time, unit models.IntervalUnit) string {
	switch unit {
	case models.UnitDay:
		return t.Format("2006-01-02")
	case models.UnitWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case models.UnitMonth:
		return t.Format("2006-01")
	case models.UnitYear:
		return t.Format("2006")
	}
	return t.Format("2006-01-02")
}
