package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/blob"
	"github.com/joseph-ayodele/statements-tracker/internal/classify"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/extract"
	"github.com/joseph-ayodele/statements-tracker/internal/extract/extracttest"
	"github.com/joseph-ayodele/statements-tracker/internal/mapper"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
	"github.com/joseph-ayodele/statements-tracker/internal/validate"
)

var clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	p       *Processor
	blobs   *blob.MemoryStore
	records *repository.MemoryRecords
	journal *repository.MemoryJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tax := taxonomy.Default()
	f := &fixture{
		blobs:   blob.NewMemoryStore(),
		records: repository.NewMemoryRecords(tax),
		journal: repository.NewMemoryJournal(),
	}
	f.p = NewProcessor(
		Config{
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  4 * time.Millisecond,
			CacheTTL:       24 * time.Hour,
			Now:            func() time.Time { return clock },
		},
		f.blobs,
		extract.New(extract.Config{}),
		classify.New(classify.Config{}),
		mapper.New(tax, mapper.Config{}),
		validate.New(tax, validate.Config{}),
		f.records,
		f.journal,
	)
	return f
}

func (f *fixture) put(t *testing.T, key string, data []byte, ct string) {
	t.Helper()
	if err := f.blobs.Put(context.Background(), key, data, ct); err != nil {
		t.Fatal(err)
	}
}

// twoPageBalanceSheet puts the total on page 1 and its components on page 2.
func twoPageBalanceSheet() []byte {
	page1 := []extracttest.Text{
		{X: 72, Y: 750, S: "Acme Corp"},
		{X: 72, Y: 735, S: "Balance Sheet"},
		{X: 72, Y: 720, S: "As of December 31, 2023"},
	}
	page1 = append(page1, extracttest.Row(690, "Total assets", "1,000,000")...)
	page2 := extracttest.Row(750, "Total liabilities", "600,000")
	page2 = append(page2, extracttest.Row(736, "Total equity", "400,000")...)
	return extracttest.PDF(page1, page2)
}

func textBalanceSheet(equity string) []byte {
	return []byte(strings.Join([]string{
		"Balance Sheet",
		"As of December 31, 2023",
		"Total assets 1,000,000",
		"Total liabilities 600,000",
		"Total equity " + equity,
	}, "\n"))
}

func TestRunTwoPagePDFBalanceSheet(t *testing.T) {
	f := newFixture(t)
	f.put(t, "acme/2023.pdf", twoPageBalanceSheet(), constants.ContentTypePDF)

	out, err := f.p.Run(context.Background(), Request{DocumentKey: "acme/2023.pdf"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != constants.RunCompleted || out.Failure != nil {
		t.Fatalf("outcome = %+v (failure %+v)", out, out.Failure)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %d", len(out.Records))
	}
	rec := out.Records[0]
	if rec.Type != constants.BalanceSheet || rec.Status != constants.StatusAccepted || rec.Confidence != 1.0 {
		t.Errorf("record = %s %s %v findings=%+v", rec.Type, rec.Status, rec.Confidence, rec.Findings)
	}
	if len(rec.Items) != 3 || rec.Period.Key() != "2023-12-31..2023-12-31" || rec.RunID != out.RunID {
		t.Errorf("items=%d period=%s run=%s", len(rec.Items), rec.Period.Key(), rec.RunID)
	}
	stored, err := f.records.Get(context.Background(), "acme/2023.pdf", constants.BalanceSheet, rec.Period.Key())
	if err != nil || !stored.SameContent(rec) {
		t.Errorf("stored record = %+v, %v", stored, err)
	}
	cp, _ := f.journal.Load(context.Background(), "acme/2023.pdf")
	if cp == nil || cp.State != constants.RunCompleted || len(cp.Blocks) == 0 || cp.Attempts != 1 {
		t.Errorf("checkpoint = %+v", cp)
	}
}

func TestRunPersistsRejectedStatements(t *testing.T) {
	f := newFixture(t)
	f.put(t, "bs.txt", textBalanceSheet("350,000"), constants.ContentTypeText)

	out, err := f.p.Run(context.Background(), Request{DocumentKey: "bs.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunCompleted || len(out.Records) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	rec := out.Records[0]
	if rec.Status != constants.StatusRejected || rec.Confidence != 0.7 {
		t.Errorf("status %s confidence %v", rec.Status, rec.Confidence)
	}
	if n := entity.CountSeverity(rec.Findings, constants.SeverityError); n != 1 || rec.Findings[0].RuleID != "identity.balance_sheet" {
		t.Errorf("findings = %+v", rec.Findings)
	}
	if f.records.Len() != 1 {
		t.Errorf("stored %d records", f.records.Len())
	}
}

func TestRunCorruptDocumentFails(t *testing.T) {
	f := newFixture(t)
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	f.put(t, "scan.pdf", jpeg, constants.ContentTypePDF)

	out, err := f.p.Run(context.Background(), Request{DocumentKey: "scan.pdf", ContentType: "application/pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunFailed || out.Failure == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Failure.Code != common.CodeCorruptDocument || out.Failure.State != constants.RunExtracting || out.Failure.Retryable {
		t.Errorf("failure = %+v", out.Failure)
	}
	if out.Failure.Attempts != 1 || len(out.Records) != 0 || f.records.Len() != 0 {
		t.Errorf("attempts=%d records=%d stored=%d", out.Failure.Attempts, len(out.Records), f.records.Len())
	}
	cp, _ := f.journal.Load(context.Background(), "scan.pdf")
	if cp == nil || cp.State != constants.RunFailed || cp.Failure == nil || cp.Failure.Code != common.CodeCorruptDocument {
		t.Errorf("checkpoint = %+v", cp)
	}
}

// flakyStore fails the first n Gets with a store timeout.
type flakyStore struct {
	blob.Store
	mu    sync.Mutex
	fails int
	calls int
}

func (s *flakyStore) Get(ctx context.Context, key string) (entity.Document, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.fails
	s.mu.Unlock()
	if fail {
		return entity.Document{}, blob.NewTransientError(key, context.DeadlineExceeded)
	}
	return s.Store.Get(ctx, key)
}

func TestRunRetriesTransientStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		fails    int
		state    constants.RunState
		code     string
		attempts int
	}{
		{"recovers", 2, constants.RunCompleted, "", 3},
		{"exhausted", 5, constants.RunFailed, common.CodeStoreTransient, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(t, "bs.txt", textBalanceSheet("400,000"), constants.ContentTypeText)
			store := &flakyStore{Store: f.blobs, fails: tc.fails}
			f.p.Blobs = store

			out, err := f.p.Run(context.Background(), Request{DocumentKey: "bs.txt"})
			if err != nil {
				t.Fatal(err)
			}
			if out.State != tc.state {
				t.Fatalf("state = %s (failure %+v)", out.State, out.Failure)
			}
			if store.calls != tc.attempts {
				t.Errorf("calls = %d, want %d", store.calls, tc.attempts)
			}
			if tc.code == "" {
				if out.Failure != nil || len(out.Records) != 1 || out.Records[0].Status != constants.StatusAccepted {
					t.Errorf("outcome = %+v", out)
				}
				return
			}
			if out.Failure.Code != tc.code || !out.Failure.Retryable || out.Failure.Attempts != tc.attempts {
				t.Errorf("failure = %+v", out.Failure)
			}
		})
	}
}

func TestRunMissingDocument(t *testing.T) {
	f := newFixture(t)
	out, err := f.p.Run(context.Background(), Request{DocumentKey: "missing.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunFailed || out.Failure.Code != common.CodeNotFound || out.Failure.Attempts != 1 {
		t.Errorf("outcome = %+v failure = %+v", out, out.Failure)
	}
}

func TestRunRejectsEmptyKey(t *testing.T) {
	f := newFixture(t)
	if _, err := f.p.Run(context.Background(), Request{DocumentKey: "  "}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.put(t, "acme.pdf", twoPageBalanceSheet(), constants.ContentTypePDF)
	ctx := context.Background()

	first, err := f.p.Run(ctx, Request{DocumentKey: "acme.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.p.Run(ctx, Request{DocumentKey: "acme.pdf", Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID || second.Reused {
		t.Errorf("forced run reused %s", first.RunID)
	}
	if len(second.Records) != 1 || !first.Records[0].SameContent(second.Records[0]) {
		t.Errorf("records differ between runs:\n%+v\n%+v", first.Records, second.Records)
	}
	if f.records.Len() != 1 {
		t.Errorf("stored %d records, want 1", f.records.Len())
	}

	third, err := f.p.Run(ctx, Request{DocumentKey: "acme.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if !third.Reused || third.RunID != second.RunID || len(third.Records) != 1 {
		t.Errorf("completed run not re-emitted: %+v", third)
	}
	if third.Records[0].RunID != second.RunID {
		t.Errorf("re-emitted record from run %s", third.Records[0].RunID)
	}
}

func TestRunReusesCachedBlocks(t *testing.T) {
	f := newFixture(t)
	f.put(t, "acme.pdf", twoPageBalanceSheet(), constants.ContentTypePDF)
	ctx := context.Background()
	if out, err := f.p.Run(ctx, Request{DocumentKey: "acme.pdf"}); err != nil || out.State != constants.RunCompleted {
		t.Fatalf("first run: %+v %v", out, err)
	}

	// The document is gone; a forced run must still complete from the cache.
	f.p.Blobs = blob.NewMemoryStore()
	out, err := f.p.Run(ctx, Request{DocumentKey: "acme.pdf", Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunCompleted || len(out.Records) != 1 {
		t.Fatalf("cached run = %+v failure %+v", out, out.Failure)
	}

	f.p.cfg.CacheTTL = 0
	out, err = f.p.Run(ctx, Request{DocumentKey: "acme.pdf", Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunFailed || out.Failure.Code != common.CodeNotFound {
		t.Errorf("uncached run = %+v failure %+v", out, out.Failure)
	}
}

// cancellingStore cancels the run while handing back the document.
type cancellingStore struct {
	blob.Store
	cancel context.CancelFunc
}

func (s *cancellingStore) Get(ctx context.Context, key string) (entity.Document, error) {
	doc, err := s.Store.Get(ctx, key)
	s.cancel()
	return doc, err
}

func TestRunCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out, err := f.p.Run(ctx, Request{DocumentKey: "bs.txt"})
		if err != nil {
			t.Fatal(err)
		}
		if out.State != constants.RunFailed || out.Failure.Code != common.CodeCancelled || out.Failure.State != constants.RunPending {
			t.Errorf("outcome = %+v failure %+v", out, out.Failure)
		}
	})
	t.Run("mid run", func(t *testing.T) {
		f := newFixture(t)
		f.put(t, "bs.txt", textBalanceSheet("400,000"), constants.ContentTypeText)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.p.Blobs = &cancellingStore{Store: f.blobs, cancel: cancel}

		out, err := f.p.Run(ctx, Request{DocumentKey: "bs.txt"})
		if err != nil {
			t.Fatal(err)
		}
		if out.State != constants.RunFailed || out.Failure.Code != common.CodeCancelled || out.Failure.State != constants.RunExtracting {
			t.Errorf("outcome = %+v failure %+v", out, out.Failure)
		}
		if f.records.Len() != 0 {
			t.Errorf("cancelled run stored %d records", f.records.Len())
		}
		cp, _ := f.journal.Load(context.Background(), "bs.txt")
		if cp == nil || cp.State != constants.RunFailed {
			t.Errorf("checkpoint = %+v", cp)
		}
	})
}

func TestRunReportsUnknownDocuments(t *testing.T) {
	f := newFixture(t)
	f.put(t, "memo.txt", []byte("Team offsite notes\nBring snacks 12\n"), constants.ContentTypeText)

	out, err := f.p.Run(context.Background(), Request{DocumentKey: "memo.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.RunCompleted || len(out.Records) != 0 || len(out.Unknown) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Unknown[0].Type != constants.Unknown {
		t.Errorf("unknown detection = %+v", out.Unknown[0])
	}
}
