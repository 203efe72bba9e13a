// Package snapshot persists the session's statement records as a versioned
// snapshot: documentKind -> institution -> records. The same shape backs the
// saved snapshot and standalone import/export files.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Version is the current snapshot format version.
const Version = 1

// InstitutionRecords holds one institution's records within a document kind.
type InstitutionRecords struct {
	Records []ledger.StatementRecord `json:"records"`
}

// Snapshot is the persisted form of a session's successful results.
type Snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	// Kinds maps document kind -> institution -> records.
	Kinds map[string]map[string]InstitutionRecords `json:"kinds"`
}

// FromEntries builds a snapshot from the current entry list. Only successful
// results are persisted; synthetic manual entries qualify like any other.
func FromEntries(entries []*ledger.Entry) *Snapshot {
	snap := &Snapshot{
		Version: Version,
		SavedAt: time.Now().UTC(),
		Kinds:   make(map[string]map[string]InstitutionRecords),
	}
	for _, e := range entries {
		if e.Status != ledger.StatusSuccess || e.Result == nil {
			continue
		}
		rec := e.Result.Clone()
		kind := string(rec.Kind)
		institution := rec.InstitutionName
		if institution == "" {
			institution = "Unknown"
		}
		if snap.Kinds[kind] == nil {
			snap.Kinds[kind] = make(map[string]InstitutionRecords)
		}
		ir := snap.Kinds[kind][institution]
		ir.Records = append(ir.Records, *rec)
		snap.Kinds[kind][institution] = ir
	}
	return snap
}

// Records flattens the snapshot into a deterministically ordered record
// list, ready for ledger.Store.RestoreFromSnapshot (which merges by bill
// hash).
func (s *Snapshot) Records() []ledger.StatementRecord {
	var kinds []string
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var out []ledger.StatementRecord
	for _, kind := range kinds {
		var institutions []string
		for name := range s.Kinds[kind] {
			institutions = append(institutions, name)
		}
		sort.Strings(institutions)
		for _, name := range institutions {
			out = append(out, s.Kinds[kind][name].Records...)
		}
	}
	return out
}

// Validate rejects malformed snapshots with a descriptive reason. Callers
// leave in-memory state untouched on failure.
func (s *Snapshot) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("snapshot: unsupported version %d, want %d", s.Version, Version)
	}
	for kind, institutions := range s.Kinds {
		if kind != string(ledger.KindCreditCard) && kind != string(ledger.KindBank) {
			return fmt.Errorf("snapshot: unknown document kind %q", kind)
		}
		for institution, ir := range institutions {
			for i := range ir.Records {
				rec := &ir.Records[i]
				if string(rec.Kind) != kind {
					return fmt.Errorf("snapshot: record %d under %s/%s has kind %q",
						i, kind, institution, rec.Kind)
				}
				if err := rec.Validate(); err != nil {
					return fmt.Errorf("snapshot: record %d under %s/%s: %w", i, kind, institution, err)
				}
			}
		}
	}
	return nil
}

// Encode writes the snapshot as indented JSON.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Decode reads and validates a snapshot.
func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
