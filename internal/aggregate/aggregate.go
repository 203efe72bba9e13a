// Package aggregate derives the monthly ledger view from the entry list.
// Everything here is recomputed from scratch on every call; no totals are
// ever stored or patched incrementally, so the view cannot drift from the
// store under live edits.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// UnknownPeriod is the sentinel bucket for statements whose date cannot be
// parsed.
const UnknownPeriod = "unknown"

// TableKey identifies one line-item table for sort-state configuration.
type TableKey struct {
	Period      string
	Institution string
	Array       string
}

// SortState is a column key plus direction, applied to one table.
type SortState struct {
	Key  string
	Desc bool
}

// Config parameterizes a build.
type Config struct {
	// CutoffDay attributes statements dated before this day of month to the
	// previous billing period. Zero disables the shift.
	CutoffDay int
	// Sorts carries the per-table sort state to re-apply. Tables without an
	// entry keep insertion order.
	Sorts map[TableKey]SortState
}

// Item is one line item plus the structured key addressing it in the store.
// Keys are recomputed on every build; they are never cached across
// structural mutations.
type Item struct {
	Key ledger.ItemKey
	// BillHash is the owning record's content hash. Unlike Key.EntryID it
	// survives snapshot restores, so exporters use it for cross-session
	// identity.
	BillHash string
	ledger.LineItem
}

// Table is one sorted line-item table with its derived subtotal.
type Table struct {
	Array    string
	Items    []Item
	Subtotal float64
	Sort     SortState
}

// InstitutionGroup holds one institution's tables within a billing period.
type InstitutionGroup struct {
	Institution string
	Tables      []*Table
	// Total is the sum of all table subtotals, derived.
	Total float64
}

// PeriodGroup is one billing period bucket.
type PeriodGroup struct {
	Period       string
	Institutions []*InstitutionGroup
}

// Ledger is the fully derived view.
type Ledger struct {
	// Periods are sorted most recent first; the unknown bucket sorts last.
	Periods []*PeriodGroup
}

// Build derives the ledger view from the current entries. Only successful
// entries contribute; order of result arrival does not matter.
func Build(entries []*ledger.Entry, cfg Config) *Ledger {
	type bucket struct {
		tables map[string]*Table
		order  []string
	}
	periods := make(map[string]map[string]*bucket)

	for _, e := range entries {
		if e.Status != ledger.StatusSuccess || e.Result == nil {
			continue
		}
		rec := e.Result

		period := rec.Period
		if period == "" {
			period = PeriodKey(rec.StatementDate, cfg.CutoffDay)
		}
		institution := rec.InstitutionName
		if institution == "" {
			institution = "Unknown"
		}

		if periods[period] == nil {
			periods[period] = make(map[string]*bucket)
		}
		b := periods[period][institution]
		if b == nil {
			b = &bucket{tables: make(map[string]*Table)}
			periods[period][institution] = b
		}

		for _, array := range rec.Arrays() {
			tbl := b.tables[array]
			if tbl == nil {
				tbl = &Table{Array: array}
				b.tables[array] = tbl
				b.order = append(b.order, array)
			}
			items := rec.Items(array)
			for i := range *items {
				tbl.Items = append(tbl.Items, Item{
					Key:      ledger.ItemKey{EntryID: e.ID, Array: array, Index: i},
					BillHash: rec.BillHash,
					LineItem: (*items)[i],
				})
			}
		}
	}

	out := &Ledger{}
	for period, institutions := range periods {
		pg := &PeriodGroup{Period: period}
		for institution, b := range institutions {
			ig := &InstitutionGroup{Institution: institution}
			for _, array := range b.order {
				tbl := b.tables[array]
				key := TableKey{Period: period, Institution: institution, Array: array}
				if st, ok := cfg.Sorts[key]; ok {
					tbl.Sort = st
					sortItems(tbl.Items, st)
				}
				tbl.Subtotal = subtotal(tbl.Items)
				ig.Tables = append(ig.Tables, tbl)
				ig.Total += tbl.Subtotal
			}
			pg.Institutions = append(pg.Institutions, ig)
		}
		sort.Slice(pg.Institutions, func(i, j int) bool {
			return pg.Institutions[i].Institution < pg.Institutions[j].Institution
		})
		out.Periods = append(out.Periods, pg)
	}

	sort.Slice(out.Periods, func(i, j int) bool {
		a, b := out.Periods[i].Period, out.Periods[j].Period
		if a == UnknownPeriod {
			return false
		}
		if b == UnknownPeriod {
			return true
		}
		return a > b
	})
	return out
}

// PeriodKey derives the YYYY-MM billing period for a statement date. With a
// cutoff day configured, dates before the cutoff attribute to the previous
// calendar month. Unparseable dates land in the unknown bucket.
func PeriodKey(dateStr string, cutoffDay int) string {
	t, ok := parseDate(dateStr)
	if !ok {
		return UnknownPeriod
	}
	if cutoffDay > 0 && t.Day() < cutoffDay {
		// Shift from the first of the month: AddDate on the date itself
		// normalizes short months (Mar 30 minus one month is Feb 30, which
		// rolls forward to March again).
		t = time.Date(t.Year(), t.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t.Format("2006-01")
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	"20060102",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// subtotal sums the amount column exactly. Recomputed fully on every build.
func subtotal(items []Item) float64 {
	sum := decimal.Zero
	for _, it := range items {
		if it.Amount == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*it.Amount))
	}
	f, _ := sum.Float64()
	return f
}

// TotalEndingBalance computes the current balance across all bank accounts:
// per distinct account identity only the most recent statement's ending
// balance counts, so older statements never double-count.
func TotalEndingBalance(entries []*ledger.Entry) float64 {
	type latest struct {
		date    time.Time
		hasDate bool
		balance float64
	}
	accounts := make(map[string]latest)

	for _, e := range entries {
		if e.Status != ledger.StatusSuccess || e.Result == nil {
			continue
		}
		rec := e.Result
		if rec.Kind != ledger.KindBank || rec.EndingBalance == nil {
			continue
		}

		identity := rec.AccountNumber
		if identity == "" {
			identity = rec.InstitutionName
		}
		date, hasDate := parseDate(rec.StatementDate)

		cur, exists := accounts[identity]
		newer := !exists ||
			(hasDate && !cur.hasDate) ||
			(hasDate && cur.hasDate && date.After(cur.date))
		if newer {
			accounts[identity] = latest{date: date, hasDate: hasDate, balance: *rec.EndingBalance}
		}
	}

	sum := decimal.Zero
	for _, acc := range accounts {
		sum = sum.Add(decimal.NewFromFloat(acc.balance))
	}
	f, _ := sum.Float64()
	return f
}
