package aggregate

import (
	"math"
	"sort"
	"strings"
)

// Column keys accepted for sorting.
const (
	ColDate            = "date"
	ColDescription     = "description"
	ColAmount          = "amount"
	ColCategory        = "category"
	ColForeignAmount   = "foreign_amount"
	ColForeignCurrency = "foreign_currency"
)

// sortItems re-sorts the full item slice in place, stable, per the column
// semantics: dates by parsed calendar time (unparseable earliest), numbers
// with null as negative infinity, everything else case-insensitive text.
func sortItems(items []Item, st SortState) {
	less := lessFunc(st.Key)
	sort.SliceStable(items, func(i, j int) bool {
		if st.Desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func lessFunc(key string) func(a, b Item) bool {
	switch key {
	case ColDate:
		return func(a, b Item) bool {
			ta, aok := parseDate(a.Date)
			tb, bok := parseDate(b.Date)
			if aok != bok {
				// unparseable dates sort as earliest
				return !aok
			}
			if !aok {
				return false
			}
			return ta.Before(tb)
		}
	case ColAmount:
		return func(a, b Item) bool {
			return numValue(a.Amount) < numValue(b.Amount)
		}
	case ColForeignAmount:
		return func(a, b Item) bool {
			return numValue(a.ForeignAmount) < numValue(b.ForeignAmount)
		}
	case ColCategory:
		return textLess(func(it Item) string { return it.Category })
	case ColForeignCurrency:
		return textLess(func(it Item) string { return it.ForeignCurrency })
	default:
		return textLess(func(it Item) string { return it.Description })
	}
}

func numValue(f *float64) float64 {
	if f == nil || math.IsNaN(*f) {
		return math.Inf(-1)
	}
	return *f
}

func textLess(get func(Item) string) func(a, b Item) bool {
	return func(a, b Item) bool {
		return strings.ToLower(get(a)) < strings.ToLower(get(b))
	}
}
