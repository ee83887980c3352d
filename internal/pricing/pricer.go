// Package pricing implements the day pricing engine: matching a food record
// against the price rule in effect on its date and slot.
package pricing

import (
	"log/slog"

	"ateria/internal/core"
)

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

// SelectRule returns the rule in effect for the given date and slot, and
// whether one exists.
//
// Any matching override rule beats every non-override rule. Ties within a
// kind go to the most recently created rule; the stored order of the catalog
// never matters.
func SelectRule(catalog []core.PriceRule, date core.Date, slot core.MealSlot) (core.PriceRule, bool) {
	var best core.PriceRule
	found := false
	for _, rule := range catalog {
		if !rule.AppliesTo(date, slot) {
			continue
		}
		if !found {
			best = rule
			found = true
			continue
		}
		if rule.Override != best.Override {
			if rule.Override {
				best = rule
			}
			continue
		}
		if rule.CreatedAt.After(best.CreatedAt) {
			best = rule
		}
	}
	return best, found
}

// DayPrice computes the cost of one food record on one date and slot.
//
// Special items are billed against their base category. An empty record
// costs nothing. A date with no covering rule costs nothing too; that is a
// missing-price condition, logged for operators, never a failure.
func DayPrice(record core.FoodRecord, date core.Date, slot core.MealSlot, catalog []core.PriceRule) core.Money {
	if record.IsEmpty() {
		return core.Money{}
	}

	rule, ok := SelectRule(catalog, date, slot)
	if !ok {
		slog.Warn("No price rule covers registration",
			"date", date.String(),
			"slot", string(slot),
			"rules", len(catalog))
		return core.Money{}
	}

	var total int64
	for _, category := range []core.Category{core.CategoryNormal, core.CategoryYoung, core.CategoryChild} {
		count := record.CategoryCount(category)
		total += int64(count) * rule.PriceFor(category).Cents
	}
	return core.Money{Cents: total}
}

// RulesForMonth returns the slice of the catalog whose date range intersects
// the given month: rules starting on or before month end and ending on or
// after month start.
func RulesForMonth(catalog []core.PriceRule, year, month int) []core.PriceRule {
	monthStart := core.NewDate(year, month, 1)
	monthEnd := core.NewDate(year, month, core.DaysInMonth(year, month))

	var relevant []core.PriceRule
	for _, rule := range catalog {
		if rule.Start.After(monthEnd) || rule.End.Before(monthStart) {
			continue
		}
		relevant = append(relevant, rule)
	}
	return relevant
}

// MonthSpan enumerates every calendar month the inclusive date range
// touches, in chronological order. Used to fan out recomputation when a new
// rule arrives.
func MonthSpan(start, end core.Date) []YearMonth {
	if end.Before(start) {
		return nil
	}
	var months []YearMonth
	year, month := start.Year(), start.Month()
	for {
		months = append(months, YearMonth{Year: year, Month: month})
		if year == end.Year() && month == end.Month() {
			return months
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
}
