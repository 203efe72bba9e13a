package analyze

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-ledger/internal/document"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/fingerprint"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/passwords"
)

// fakeCodec opens fake text documents. Content starting with "locked:" needs
// the password "secret"; content starting with "corrupt:" fails structurally.
type fakeCodec struct{}

func (fakeCodec) Open(raw []byte, password string) (document.Document, error) {
	content := string(raw)
	switch {
	case strings.HasPrefix(content, "corrupt:"):
		return nil, document.ErrCorrupt
	case strings.HasPrefix(content, "locked:") && password != "secret":
		return nil, document.ErrWrongPassword
	}
	return &fakeDoc{text: strings.Repeat("帳", 200) + content}, nil
}

type fakeDoc struct{ text string }

func (d *fakeDoc) PageCount() int               { return 1 }
func (d *fakeDoc) PageText(int) (string, error) { return d.text, nil }
func (d *fakeDoc) Close() error                 { return nil }
func (d *fakeDoc) RenderPage(int, float64) (image.Image, error) {
	return nil, document.ErrNoRasterizer
}

// fakeAnalyzer records calls and fabricates one record per payload.
type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	fail     map[string]error // keyed by substring of payload text
	billHash string           // echoed bill_hash; empty simulates a model that omits it
}

func (a *fakeAnalyzer) AnalyzeStatement(ctx context.Context, p *extract.Payload) (*ledger.StatementRecord, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	for needle, err := range a.fail {
		if strings.Contains(p.Text, needle) {
			return nil, err
		}
	}
	total := 100.0
	return &ledger.StatementRecord{
		Kind:            ledger.KindCreditCard,
		InstitutionName: "Example Bank",
		StatementDate:   "2025-03-05",
		BillHash:        a.billHash,
		Transactions:    []ledger.LineItem{{Date: "2025-02-20", Description: "x", Amount: &total, Category: "Other"}},
		TotalAmount:     &total,
	}, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestQueue(store *ledger.Store, analyzer Analyzer, presets []string, prompt passwords.PromptFunc) *Queue {
	resolver := passwords.NewResolver(fakeCodec{}, presets, prompt)
	selector := extract.NewSelector(func(fp string) string { return "instruction " + fp }, 2.0)
	return NewQueue(store, resolver, selector, analyzer)
}

func TestProcessPending_Success(t *testing.T) {
	store := ledger.NewStore()
	id := store.IngestUpload("a.pdf", []byte("statement A"))
	analyzer := &fakeAnalyzer{}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	e, err := store.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, e.Status)
	assert.Equal(t, fingerprint.Sum([]byte("statement A")), e.Fingerprint)
	require.NotNil(t, e.Result)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestProcessPending_StampsBillHash(t *testing.T) {
	store := ledger.NewStore()
	id := store.IngestUpload("a.pdf", []byte("statement A"))
	// model omits the correlation id
	analyzer := &fakeAnalyzer{billHash: ""}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	e, err := store.Entry(id)
	require.NoError(t, err)
	require.NotNil(t, e.Result)
	assert.Equal(t, fingerprint.Sum([]byte("statement A")), e.Result.BillHash)
}

func TestProcessPending_DedupAgainstSnapshot(t *testing.T) {
	content := []byte("statement already analyzed")
	store := ledger.NewStore()
	store.RestoreFromSnapshot([]ledger.StatementRecord{{
		Kind:            ledger.KindCreditCard,
		InstitutionName: "Example Bank",
		StatementDate:   "2025-01-05",
		BillHash:        fingerprint.Sum(content),
	}})
	id := store.IngestUpload("reupload.pdf", content)
	analyzer := &fakeAnalyzer{}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	e, err := store.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, e.Status)
	require.NotNil(t, e.Result)
	assert.Equal(t, "Example Bank", e.Result.InstitutionName)
	assert.False(t, e.FromSnapshot)
	assert.Equal(t, 0, analyzer.callCount(), "identical persisted content must not incur an inference call")
}

func TestProcessPending_PartialFailureIsolation(t *testing.T) {
	store := ledger.NewStore()
	id1 := store.IngestUpload("one.pdf", []byte("statement one"))
	id2 := store.IngestUpload("two.pdf", []byte("locked: statement two"))
	id3 := store.IngestUpload("three.pdf", []byte("statement three"))

	// user declines the password prompt for the encrypted document
	prompt := func(ctx context.Context) (string, error) {
		return "", passwords.ErrCanceled
	}
	analyzer := &fakeAnalyzer{}
	q := newTestQueue(store, analyzer, []string{"not-it"}, prompt)

	q.ProcessPending(context.Background())

	for i, want := range map[string]ledger.Status{
		id1: ledger.StatusSuccess,
		id2: ledger.StatusError,
		id3: ledger.StatusSuccess,
	} {
		e, err := store.Entry(i)
		require.NoError(t, err)
		assert.Equal(t, want, e.Status)
	}

	e2, _ := store.Entry(id2)
	assert.NotEmpty(t, e2.Diagnostic)
	assert.Equal(t, 2, analyzer.callCount())
}

func TestProcessPending_CorruptDocument(t *testing.T) {
	store := ledger.NewStore()
	id := store.IngestUpload("bad.pdf", []byte("corrupt: zzz"))
	analyzer := &fakeAnalyzer{}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	e, err := store.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusError, e.Status)
	assert.Equal(t, 0, analyzer.callCount())
}

func TestProcessPending_InferenceFailureThenReanalyze(t *testing.T) {
	store := ledger.NewStore()
	id := store.IngestUpload("flaky.pdf", []byte("statement flaky"))
	analyzer := &fakeAnalyzer{fail: map[string]error{"flaky": errors.New("transport error")}}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	e, err := store.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusError, e.Status)
	assert.Contains(t, e.Diagnostic, "transport error")

	// explicit user retry succeeds once the service recovers
	analyzer.fail = nil
	require.NoError(t, store.Reanalyze(id))
	q.ProcessPending(context.Background())

	e, err = store.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, e.Status)
}

func TestProcessPending_AllSettle(t *testing.T) {
	store := ledger.NewStore()
	for i := 0; i < 8; i++ {
		store.IngestUpload("f.pdf", []byte(strings.Repeat("x", i+1)))
	}
	analyzer := &fakeAnalyzer{}
	q := newTestQueue(store, analyzer, nil, nil)

	q.ProcessPending(context.Background())

	for _, e := range store.Entries() {
		assert.NotEqual(t, ledger.StatusProcessing, e.Status, "every dispatched item must settle")
		assert.NotEqual(t, ledger.StatusPending, e.Status)
	}
	assert.Equal(t, 8, analyzer.callCount())
}
