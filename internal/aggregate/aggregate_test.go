package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

func f(v float64) *float64 { return &v }

func successEntry(id string, rec *ledger.StatementRecord) *ledger.Entry {
	return &ledger.Entry{ID: id, Status: ledger.StatusSuccess, Result: rec}
}

func cardRec(institution, date string, amounts ...float64) *ledger.StatementRecord {
	rec := &ledger.StatementRecord{
		Kind:            ledger.KindCreditCard,
		InstitutionName: institution,
		StatementDate:   date,
	}
	for _, a := range amounts {
		rec.Transactions = append(rec.Transactions, ledger.LineItem{
			Date: date, Description: "item", Amount: f(a), Category: "Other",
		})
	}
	return rec
}

func bankRec(institution, date, account string, balance float64) *ledger.StatementRecord {
	return &ledger.StatementRecord{
		Kind:            ledger.KindBank,
		InstitutionName: institution,
		StatementDate:   date,
		AccountNumber:   account,
		EndingBalance:   f(balance),
	}
}

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		cutoff int
		want   string
	}{
		{"no cutoff", "2025-03-10", 0, "2025-03"},
		{"before cutoff shifts back", "2025-03-10", 15, "2025-02"},
		{"on cutoff stays", "2025-03-15", 15, "2025-03"},
		{"after cutoff stays", "2025-03-20", 15, "2025-03"},
		{"january shifts to december", "2025-01-05", 15, "2024-12"},
		{"end of march under high cutoff", "2025-03-30", 31, "2025-02"},
		{"march 29 under cutoff 30", "2025-03-29", 30, "2025-02"},
		{"end of month into leap february", "2024-03-30", 31, "2024-02"},
		{"december 30 under cutoff 31", "2025-12-30", 31, "2025-11"},
		{"slash layout", "2025/03/10", 0, "2025-03"},
		{"unparseable", "sometime in march", 0, UnknownPeriod},
		{"empty", "", 15, UnknownPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodKey(tt.date, tt.cutoff); got != tt.want {
				t.Errorf("PeriodKey(%q, %d) = %q, want %q", tt.date, tt.cutoff, got, tt.want)
			}
		})
	}
}

func TestBuild_Grouping(t *testing.T) {
	entries := []*ledger.Entry{
		successEntry("e1", cardRec("Bank A", "2025-03-20", 100, 200)),
		successEntry("e2", cardRec("Bank B", "2025-03-20", 50)),
		successEntry("e3", cardRec("Bank A", "2025-02-20", 10)),
		{ID: "e4", Status: ledger.StatusError, Diagnostic: "failed"},
	}

	led := Build(entries, Config{})

	require.Len(t, led.Periods, 2)
	assert.Equal(t, "2025-03", led.Periods[0].Period, "most recent period first")
	assert.Equal(t, "2025-02", led.Periods[1].Period)

	march := led.Periods[0]
	require.Len(t, march.Institutions, 2)
	assert.Equal(t, "Bank A", march.Institutions[0].Institution)
	assert.Equal(t, "Bank B", march.Institutions[1].Institution)

	bankA := march.Institutions[0]
	var txTable *Table
	for _, tbl := range bankA.Tables {
		if tbl.Array == ledger.ArrayTransactions {
			txTable = tbl
		}
	}
	require.NotNil(t, txTable)
	require.Len(t, txTable.Items, 2)
	assert.Equal(t, 300.0, txTable.Subtotal)
	assert.Equal(t, ledger.ItemKey{EntryID: "e1", Array: ledger.ArrayTransactions, Index: 0}, txTable.Items[0].Key)
}

func TestBuild_FailedEntriesExcluded(t *testing.T) {
	entries := []*ledger.Entry{
		successEntry("ok1", cardRec("Bank A", "2025-03-20", 100)),
		{ID: "bad", Status: ledger.StatusError, Result: cardRec("Bank B", "2025-03-20", 999)},
		successEntry("ok2", cardRec("Bank C", "2025-03-20", 50)),
	}

	led := Build(entries, Config{})

	require.Len(t, led.Periods, 1)
	total := 0.0
	for _, ig := range led.Periods[0].Institutions {
		total += ig.Total
	}
	assert.Equal(t, 150.0, total, "failed entries must not contribute to totals")
}

func TestBuild_ManualPeriodOverride(t *testing.T) {
	rec := cardRec("Bank A", "", 42)
	rec.Period = "2025-07"

	led := Build([]*ledger.Entry{successEntry("m1", rec)}, Config{CutoffDay: 15})

	require.Len(t, led.Periods, 1)
	assert.Equal(t, "2025-07", led.Periods[0].Period)
}

func TestBuild_UnknownPeriodBucketLast(t *testing.T) {
	entries := []*ledger.Entry{
		successEntry("e1", cardRec("Bank A", "not a date", 10)),
		successEntry("e2", cardRec("Bank A", "2025-03-20", 20)),
	}

	led := Build(entries, Config{})

	require.Len(t, led.Periods, 2)
	assert.Equal(t, "2025-03", led.Periods[0].Period)
	assert.Equal(t, UnknownPeriod, led.Periods[1].Period)
}

func TestBuild_SortRoundTrip(t *testing.T) {
	rec := cardRec("Bank A", "2025-03-20")
	rec.Transactions = []ledger.LineItem{
		{Date: "2025-03-05", Description: "b", Amount: f(3), Category: "Other"},
		{Date: "2025-03-01", Description: "a", Amount: f(1), Category: "Other"},
		{Date: "garbled", Description: "c", Amount: nil, Category: "Other"},
		{Date: "2025-03-03", Description: "d", Amount: f(2), Category: "Other"},
	}
	entries := []*ledger.Entry{successEntry("e1", rec)}
	key := TableKey{Period: "2025-03", Institution: "Bank A", Array: ledger.ArrayTransactions}

	asc := Build(entries, Config{Sorts: map[TableKey]SortState{key: {Key: ColDate}}})
	desc := Build(entries, Config{Sorts: map[TableKey]SortState{key: {Key: ColDate, Desc: true}}})

	ascItems := asc.Periods[0].Institutions[0].Tables[0].Items
	descItems := desc.Periods[0].Institutions[0].Tables[0].Items
	require.Len(t, ascItems, 4)

	// unparseable date sorts earliest
	assert.Equal(t, "c", ascItems[0].Description)
	assert.Equal(t, "a", ascItems[1].Description)
	assert.Equal(t, "d", ascItems[2].Description)
	assert.Equal(t, "b", ascItems[3].Description)

	// direction toggle is an exact reversal
	for i := range ascItems {
		assert.Equal(t, ascItems[i].Description, descItems[len(descItems)-1-i].Description)
	}
}

func TestBuild_SortNullAmountAsNegativeInfinity(t *testing.T) {
	rec := cardRec("Bank A", "2025-03-20")
	rec.Transactions = []ledger.LineItem{
		{Description: "big", Amount: f(100)},
		{Description: "unconverted", Amount: nil},
		{Description: "negative", Amount: f(-5)},
	}
	entries := []*ledger.Entry{successEntry("e1", rec)}
	key := TableKey{Period: "2025-03", Institution: "Bank A", Array: ledger.ArrayTransactions}

	led := Build(entries, Config{Sorts: map[TableKey]SortState{key: {Key: ColAmount}}})

	items := led.Periods[0].Institutions[0].Tables[0].Items
	assert.Equal(t, "unconverted", items[0].Description)
	assert.Equal(t, "negative", items[1].Description)
	assert.Equal(t, "big", items[2].Description)
}

func TestTotalEndingBalance(t *testing.T) {
	entries := []*ledger.Entry{
		// same account, two months: only February counts
		successEntry("jan", bankRec("Bank A", "2025-01-05", "111-222", 1000)),
		successEntry("feb", bankRec("Bank A", "2025-02-05", "111-222", 1500)),
		// a second account adds up
		successEntry("other", bankRec("Bank B", "2025-01-20", "333-444", 200)),
		// credit cards carry no balance
		successEntry("card", cardRec("Card C", "2025-02-10", 999)),
	}

	assert.Equal(t, 1700.0, TotalEndingBalance(entries))
}

func TestTotalEndingBalance_OrderIndependent(t *testing.T) {
	a := successEntry("jan", bankRec("Bank A", "2025-01-05", "111-222", 1000))
	b := successEntry("feb", bankRec("Bank A", "2025-02-05", "111-222", 1500))

	assert.Equal(t, TotalEndingBalance([]*ledger.Entry{a, b}), TotalEndingBalance([]*ledger.Entry{b, a}))
}

func TestSubtotalConsistentUnderEdits(t *testing.T) {
	store := ledger.NewStore()
	store.RestoreFromSnapshot([]ledger.StatementRecord{{
		Kind:            ledger.KindCreditCard,
		InstitutionName: "Bank A",
		StatementDate:   "2025-03-20",
		BillHash:        "h1",
		Transactions: []ledger.LineItem{
			{Date: "2025-03-01", Description: "x", Amount: f(100), Category: "Other"},
			{Date: "2025-03-02", Description: "y", Amount: f(50), Category: "Other"},
		},
	}})
	id := store.Entries()[0].ID
	key := ledger.ItemKey{EntryID: id, Array: ledger.ArrayTransactions, Index: 0}

	require.NoError(t, store.ApplyManualEdit(key, "amount", "1,234"))
	led := Build(store.Entries(), Config{})
	assert.Equal(t, 1284.0, led.Periods[0].Institutions[0].Tables[0].Subtotal)

	require.NoError(t, store.ApplyManualEdit(key, "amount", "abc"))
	led = Build(store.Entries(), Config{})
	assert.Equal(t, 50.0, led.Periods[0].Institutions[0].Tables[0].Subtotal)

	require.NoError(t, store.DeleteLineItem(key))
	led = Build(store.Entries(), Config{})
	assert.Equal(t, 50.0, led.Periods[0].Institutions[0].Tables[0].Subtotal)
}
