// Package ledger holds the authoritative in-memory state for one session:
// the list of tracked document entries, their analysis results and every
// user-facing mutation on them. Aggregation over this state lives in the
// aggregate package and is always recomputed from scratch.
package ledger

import "fmt"

// Status is the lifecycle state of a document entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// RecordKind tags the statement variant.
type RecordKind string

const (
	KindCreditCard RecordKind = "credit_card"
	KindBank       RecordKind = "bank"
)

// Line item array names within a statement record.
const (
	ArrayTransactions = "transactions"
	ArrayRewards      = "rewards"
	ArrayWithdrawals  = "withdrawals"
	ArrayDeposits     = "deposits"
)

// Categories is the fixed taxonomy line items are classified into.
var Categories = []string{
	"Dining",
	"Groceries",
	"Transport",
	"Shopping",
	"Entertainment",
	"Utilities",
	"Telecom",
	"Medical",
	"Travel",
	"Education",
	"Insurance",
	"Fees",
	"Income",
	"Transfer",
	"Other",
}

// LineItem is one transaction, reward, withdrawal or deposit row.
type LineItem struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	// Amount is nil when the model could not convert a foreign-currency
	// amount to the statement currency.
	Amount   *float64 `json:"amount"`
	Category string   `json:"category"`

	// Foreign transaction details, credit-card statements only.
	ForeignAmount   *float64 `json:"foreign_amount,omitempty"`
	ForeignCurrency string   `json:"foreign_currency,omitempty"`
}

// StatementRecord is the normalized extraction result for one statement.
// Kind selects which field groups are meaningful.
type StatementRecord struct {
	Kind            RecordKind `json:"kind"`
	InstitutionName string     `json:"institution_name"`
	StatementDate   string     `json:"statement_date"`
	// BillHash is the content fingerprint of the source document, used as
	// the merge/dedup join key. Stamped by the queue when the model does not
	// echo it back.
	BillHash string `json:"bill_hash"`

	// Period pins hand-entered records with no source document to an
	// explicit YYYY-MM billing period.
	Period string `json:"period,omitempty"`

	// Credit-card statements.
	Transactions []LineItem `json:"transactions,omitempty"`
	Rewards      []LineItem `json:"rewards,omitempty"`
	TotalAmount  *float64   `json:"total_amount,omitempty"`

	// Bank statements.
	Withdrawals   []LineItem `json:"withdrawals,omitempty"`
	Deposits      []LineItem `json:"deposits,omitempty"`
	EndingBalance *float64   `json:"ending_balance,omitempty"`
	AccountNumber string     `json:"account_number,omitempty"`
}

// Validate checks the tagged variant shape. Records coming back from the
// inference service are validated here before they enter the store.
func (r *StatementRecord) Validate() error {
	switch r.Kind {
	case KindCreditCard:
		if len(r.Withdrawals) > 0 || len(r.Deposits) > 0 {
			return fmt.Errorf("ledger: credit-card record carries bank arrays")
		}
	case KindBank:
		if len(r.Transactions) > 0 || len(r.Rewards) > 0 {
			return fmt.Errorf("ledger: bank record carries credit-card arrays")
		}
	default:
		return fmt.Errorf("ledger: unknown record kind %q", r.Kind)
	}
	return nil
}

// Arrays returns the line item array names valid for this record's kind.
func (r *StatementRecord) Arrays() []string {
	if r.Kind == KindBank {
		return []string{ArrayWithdrawals, ArrayDeposits}
	}
	return []string{ArrayTransactions, ArrayRewards}
}

// Items returns a pointer to the named line item array, or nil when the name
// does not belong to this record's kind.
func (r *StatementRecord) Items(array string) *[]LineItem {
	switch {
	case r.Kind == KindCreditCard && array == ArrayTransactions:
		return &r.Transactions
	case r.Kind == KindCreditCard && array == ArrayRewards:
		return &r.Rewards
	case r.Kind == KindBank && array == ArrayWithdrawals:
		return &r.Withdrawals
	case r.Kind == KindBank && array == ArrayDeposits:
		return &r.Deposits
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *StatementRecord) Clone() *StatementRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Transactions = cloneItems(r.Transactions)
	out.Rewards = cloneItems(r.Rewards)
	out.Withdrawals = cloneItems(r.Withdrawals)
	out.Deposits = cloneItems(r.Deposits)
	out.TotalAmount = cloneFloat(r.TotalAmount)
	out.EndingBalance = cloneFloat(r.EndingBalance)
	return &out
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Amount = cloneFloat(it.Amount)
		out[i].ForeignAmount = cloneFloat(it.ForeignAmount)
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Entry is one user-uploaded (or restored, or synthetic) document tracked
// through the pipeline.
type Entry struct {
	ID       string
	FileName string
	// Source holds the raw document bytes. Nil for entries restored from a
	// snapshot and for synthetic manual entries.
	Source []byte

	Status      Status
	Fingerprint string
	Result      *StatementRecord
	// FromSnapshot marks results restored from persistence rather than
	// freshly analyzed. Only these participate in fingerprint dedup.
	FromSnapshot bool
	// Diagnostic holds the failure description when Status is StatusError.
	Diagnostic string
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	out := *e
	out.Result = e.Result.Clone()
	if e.Source != nil {
		out.Source = append([]byte(nil), e.Source...)
	}
	return &out
}

// ItemKey addresses one line item within one entry's result. Keys are only
// valid until the next structural mutation of the array they point into;
// callers recompute them on every render.
type ItemKey struct {
	EntryID string
	Array   string
	Index   int
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%s[%d]", k.EntryID, k.Array, k.Index)
}
