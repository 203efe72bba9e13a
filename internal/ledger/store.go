package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store owns the document entry list for the session. All mutation goes
// through its methods; no other component keeps an independent copy.
// It never caches aggregates: consumers re-run the aggregator after any
// mutation.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// IngestUpload appends a new pending entry for an uploaded file and returns
// its id.
func (s *Store) IngestUpload(fileName string, raw []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		ID:       uuid.NewString(),
		FileName: fileName,
		Source:   append([]byte(nil), raw...),
		Status:   StatusPending,
	}
	s.entries = append(s.entries, entry)
	return entry.ID
}

// Entries returns a deep copy of the current entry list, in insertion order.
func (s *Store) Entries() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Entry returns a deep copy of one entry.
func (s *Store) Entry(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// RestoreFromSnapshot replaces the entire queue with entries reconstructed
// from persisted records. Records sharing a bill hash are merged down to one
// entry; all restored entries are success and flagged as snapshot-loaded.
func (s *Store) RestoreFromSnapshot(records []StatementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	entries := make([]*Entry, 0, len(records))
	for i := range records {
		rec := records[i]
		if rec.BillHash != "" {
			if seen[rec.BillHash] {
				continue
			}
			seen[rec.BillHash] = true
		}
		clone := rec.Clone()
		entries = append(entries, &Entry{
			ID:           uuid.NewString(),
			FileName:     rec.InstitutionName,
			Status:       StatusSuccess,
			Fingerprint:  rec.BillHash,
			Result:       clone,
			FromSnapshot: true,
		})
	}
	s.entries = entries
}

// StartProcessing moves a pending entry to processing.
func (s *Store) StartProcessing(id string) error {
	return s.transition(id, StatusPending, StatusProcessing)
}

// SetFingerprint records the content hash once the document bytes could be
// read.
func (s *Store) SetFingerprint(id, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Fingerprint = fp
	return nil
}

// SetResult completes a processing entry with its analysis result.
func (s *Store) SetResult(id string, rec *StatementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(id)
	if err != nil {
		return err
	}
	if e.Status != StatusProcessing {
		return fmt.Errorf("ledger: entry %s cannot move %s -> %s", id, e.Status, StatusSuccess)
	}
	e.Status = StatusSuccess
	e.Result = rec.Clone()
	e.Diagnostic = ""
	return nil
}

// SetError fails a pending or processing entry with a diagnostic message.
func (s *Store) SetError(id, diagnostic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(id)
	if err != nil {
		return err
	}
	if e.Status != StatusPending && e.Status != StatusProcessing {
		return fmt.Errorf("ledger: entry %s cannot move %s -> %s", id, e.Status, StatusError)
	}
	e.Status = StatusError
	e.Diagnostic = diagnostic
	return nil
}

// Reanalyze resets a failed entry back to pending. The only backward
// transition from error, always user-initiated.
func (s *Store) Reanalyze(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(id)
	if err != nil {
		return err
	}
	if e.Status != StatusError {
		return fmt.Errorf("ledger: entry %s cannot move %s -> %s", id, e.Status, StatusPending)
	}
	e.Status = StatusPending
	e.Diagnostic = ""
	e.Result = nil
	return nil
}

// MarkFailed demotes a successful entry to error. The only backward
// transition from success, always user-initiated.
func (s *Store) MarkFailed(id string) error {
	return s.transition(id, StatusSuccess, StatusError)
}

// SnapshotResultFor returns a copy of a snapshot-loaded result matching the
// fingerprint on some entry other than excludeID, or nil. This is the dedup
// contract: content already analyzed in a prior session never incurs a second
// inference call.
func (s *Store) SnapshotResultFor(fp, excludeID string) *StatementRecord {
	if fp == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == excludeID || !e.FromSnapshot || e.Status != StatusSuccess {
			continue
		}
		if e.Result != nil && e.Result.BillHash == fp {
			return e.Result.Clone()
		}
	}
	return nil
}

// ApplyManualEdit mutates one field of one line item. Numeric fields are
// parsed leniently and degrade to zero on unparseable input; this is a
// correction surface, not a validation boundary, so no value is ever
// rejected.
func (s *Store) ApplyManualEdit(key ItemKey, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.findItem(key)
	if err != nil {
		return err
	}

	switch field {
	case "amount":
		v := parseLenientNumber(value)
		item.Amount = &v
	case "foreign_amount":
		v := parseLenientNumber(value)
		item.ForeignAmount = &v
	case "date":
		item.Date = value
	case "description":
		item.Description = value
	case "category":
		item.Category = value
	case "foreign_currency":
		item.ForeignCurrency = value
	default:
		return fmt.Errorf("ledger: unknown line item field %q", field)
	}
	return nil
}

// DeleteLineItem removes one line item. Indices of subsequent items in the
// same array shift down; callers must recompute keys on the next render.
func (s *Store) DeleteLineItem(key ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(key.EntryID)
	if err != nil {
		return err
	}
	if e.Result == nil {
		return fmt.Errorf("ledger: entry %s has no result", key.EntryID)
	}
	items := e.Result.Items(key.Array)
	if items == nil {
		return fmt.Errorf("ledger: record has no array %q", key.Array)
	}
	if key.Index < 0 || key.Index >= len(*items) {
		return fmt.Errorf("ledger: index %d out of range for %s", key.Index, key.Array)
	}
	*items = append((*items)[:key.Index], (*items)[key.Index+1:]...)
	return nil
}

// AddManualLineItem appends a blank hand-entered line item, fabricating a
// synthetic entry for (period, institution) when none exists yet. Synthetic
// entries persist like any other; their bill hash is derived from the key so
// restore merges them instead of duplicating.
func (s *Store) AddManualLineItem(period, institution, array string) (ItemKey, error) {
	var kind RecordKind
	switch array {
	case ArrayTransactions, ArrayRewards:
		kind = KindCreditCard
	case ArrayWithdrawals, ArrayDeposits:
		kind = KindBank
	default:
		return ItemKey{}, fmt.Errorf("ledger: unknown array %q", array)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.findSynthetic(period, institution, kind)
	if entry == nil {
		entry = &Entry{
			ID:       uuid.NewString(),
			FileName: institution,
			Status:   StatusSuccess,
			Result: &StatementRecord{
				Kind:            kind,
				InstitutionName: institution,
				Period:          period,
				BillHash:        manualBillHash(period, institution, kind),
			},
		}
		entry.Fingerprint = entry.Result.BillHash
		s.entries = append(s.entries, entry)
	}

	items := entry.Result.Items(array)
	*items = append(*items, LineItem{})
	return ItemKey{EntryID: entry.ID, Array: array, Index: len(*items) - 1}, nil
}

// RemoveEntry deletes the entry outright.
func (s *Store) RemoveEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("ledger: entry not found: %s", id)
}

func (s *Store) transition(id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(id)
	if err != nil {
		return err
	}
	if e.Status != from {
		return fmt.Errorf("ledger: entry %s cannot move %s -> %s", id, e.Status, to)
	}
	e.Status = to
	return nil
}

func (s *Store) find(id string) (*Entry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("ledger: entry not found: %s", id)
}

func (s *Store) findItem(key ItemKey) (*LineItem, error) {
	e, err := s.find(key.EntryID)
	if err != nil {
		return nil, err
	}
	if e.Result == nil {
		return nil, fmt.Errorf("ledger: entry %s has no result", key.EntryID)
	}
	items := e.Result.Items(key.Array)
	if items == nil {
		return nil, fmt.Errorf("ledger: record has no array %q", key.Array)
	}
	if key.Index < 0 || key.Index >= len(*items) {
		return nil, fmt.Errorf("ledger: index %d out of range for %s", key.Index, key.Array)
	}
	return &(*items)[key.Index], nil
}

func (s *Store) findSynthetic(period, institution string, kind RecordKind) *Entry {
	for _, e := range s.entries {
		r := e.Result
		if r != nil && r.Period == period && r.InstitutionName == institution && r.Kind == kind {
			return e
		}
	}
	return nil
}

func manualBillHash(period, institution string, kind RecordKind) string {
	return fmt.Sprintf("manual:%s:%s:%s", kind, period, institution)
}

// parseLenientNumber strips grouping separators and whitespace, then parses.
// Unparseable input degrades to zero.
func parseLenientNumber(s string) float64 {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}
