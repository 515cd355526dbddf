// Package month содержит расчёты календарных границ для отчётов.
package month

import "time"

// Bounds возвращает полуинтервал [1 января year, 1 января year+1) в UTC.
func Bounds(year int) (from, to time.Time) {
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

// ValidYear сообщает, что год пригоден для отчёта.
func ValidYear(year int) bool {
	return year >= 1970 && year <= 9999
}
