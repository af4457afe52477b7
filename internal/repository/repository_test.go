package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: dialect.SQLite, DSN: filepath.Join(t.TempDir(), "statements.db")}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { Close(db, nil) })
	if err := EnsureSchema(ctx, db, nil); err != nil {
		t.Fatalf("schema: %v", err)
	}
	// Applying twice must be harmless.
	if err := EnsureSchema(ctx, db, nil); err != nil {
		t.Fatalf("schema again: %v", err)
	}
	return db
}

func lineItem(key, label, value string, seq int) entity.LineItem {
	li := entity.LineItem{RawLabel: label, RawValue: value, Currency: "USD", UnitMultiplier: 1000,
		Source: entity.SourceRef{Page: 1, Seq: seq, Row: -1, Col: -1}}
	if key != "" {
		li.TaxonomyKey = entity.StrPtr(key)
	}
	if value != "" {
		li.Value = decimal.NewNullDecimal(decimal.RequireFromString(value).Mul(decimal.NewFromInt(1000)))
	}
	return li
}

func balanceSheet(doc string, equity string) *entity.StatementRecord {
	rec := &entity.StatementRecord{
		DocumentKey: doc,
		Type:        constants.BalanceSheet,
		Period:      entity.PeriodSpec{Start: entity.Date(2023, 12, 31), End: entity.Date(2023, 12, 31), Label: "December 31, 2023"},
		Items: []entity.LineItem{
			lineItem("total_assets", "Total assets", "1000", 3),
			lineItem("total_liabilities", "Total liabilities", "600", 5),
			lineItem("total_equity", "Total equity", equity, 7),
			lineItem("", "Deferred widgets", "12.5", 9),
			lineItem("goodwill", "Goodwill", "", 11),
		},
		Findings: []entity.Finding{
			{RuleID: "mapping.unresolved", Severity: constants.SeverityWarning, Keys: []string{"deferred widgets"}, Message: "1 label unresolved"},
		},
		Status:      constants.StatusAccepted,
		Confidence:  0.9,
		Scale:       1000,
		Currency:    "USD",
		RunID:       "run-1",
		ProcessedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	if equity != "400" {
		rec.Findings = append(rec.Findings, entity.Finding{RuleID: "identity.balance_sheet", Severity: constants.SeverityError,
			Keys: []string{"total_assets", "total_liabilities", "total_equity"}, Message: "out of balance"})
		rec.Status = constants.StatusRejected
		rec.Confidence = 0.6
	}
	rec.ID = rec.Key().ID()
	return rec
}

func stores(t *testing.T) map[string]RecordRepository {
	tax := taxonomy.Default()
	return map[string]RecordRepository{
		"sqlite": NewRecordRepository(openTestDB(t), tax, nil),
		"memory": NewMemoryRecords(tax),
	}
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := balanceSheet("doc-a", "400")
			if err := repo.Upsert(ctx, rec); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			got, err := repo.Get(ctx, "doc-a", constants.BalanceSheet, rec.Period.Key())
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.SameContent(rec) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
			}
			if !got.ProcessedAt.Equal(rec.ProcessedAt) || got.RunID != rec.RunID {
				t.Errorf("run metadata = %s %v", got.RunID, got.ProcessedAt)
			}
			if got.Items[3].Mapped() || got.Items[4].Value.Valid {
				t.Errorf("unmapped/null items not preserved: %+v", got.Items[3:])
			}
		})
	}
}

func TestRecordUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := balanceSheet("doc-b", "350")
			if err := repo.Upsert(ctx, first); err != nil {
				t.Fatal(err)
			}
			second := balanceSheet("doc-b", "400")
			second.Items = second.Items[:3]
			second.RunID = "run-2"
			if err := repo.Upsert(ctx, second); err != nil {
				t.Fatal(err)
			}
			recs, err := repo.ListByDocument(ctx, "doc-b")
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 1 {
				t.Fatalf("records = %d, want 1", len(recs))
			}
			if !recs[0].SameContent(second) || recs[0].RunID != "run-2" {
				t.Errorf("record not replaced: %+v", recs[0])
			}
		})
	}
}

func TestRecordGetMissing(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), "nope", constants.CashFlow, "undated")
			if !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("err = %v, want not found", err)
			}
		})
	}
}

func TestRecordUpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(r *entity.StatementRecord){
		"foreign key":        func(r *entity.StatementRecord) { r.Items[0].TaxonomyKey = entity.StrPtr("net_income") },
		"duplicate key":      func(r *entity.StatementRecord) { r.Items[1].TaxonomyKey = entity.StrPtr("total_assets") },
		"accepted w/ errors": func(r *entity.StatementRecord) { r.Status = constants.StatusAccepted },
		"id mismatch":        func(r *entity.StatementRecord) { r.DocumentKey = "other" },
		"unknown type":       func(r *entity.StatementRecord) { r.Type = constants.Unknown },
	}
	for name, repo := range stores(t) {
		for cname, mutate := range cases {
			t.Run(name+"/"+cname, func(t *testing.T) {
				rec := balanceSheet("doc-c", "350")
				mutate(rec)
				if err := repo.Upsert(ctx, rec); !errors.Is(err, common.ErrInvalidInput) {
					t.Fatalf("err = %v, want invalid input", err)
				}
			})
		}
	}
}

func TestRecordList(t *testing.T) {
	ctx := context.Background()
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, rec := range []*entity.StatementRecord{
				balanceSheet("doc-1", "400"),
				balanceSheet("doc-2", "350"),
				balanceSheet("doc-3", "400"),
			} {
				if err := repo.Upsert(ctx, rec); err != nil {
					t.Fatal(err)
				}
			}
			all, err := repo.List(ctx, RecordFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 || all[0].DocumentKey != "doc-1" || all[2].DocumentKey != "doc-3" {
				t.Fatalf("list order = %v", docKeys(all))
			}
			rejected, err := repo.List(ctx, RecordFilter{Status: constants.StatusRejected})
			if err != nil {
				t.Fatal(err)
			}
			if len(rejected) != 1 || rejected[0].DocumentKey != "doc-2" {
				t.Errorf("rejected = %v", docKeys(rejected))
			}
			limited, err := repo.List(ctx, RecordFilter{Type: constants.BalanceSheet, Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 2 || len(limited[1].Items) != 5 {
				t.Errorf("limited = %v", docKeys(limited))
			}
			none, err := repo.List(ctx, RecordFilter{Type: constants.CashFlow})
			if err != nil || len(none) != 0 {
				t.Errorf("cash flow list = %v, %v", none, err)
			}
		})
	}
}

func docKeys(recs []*entity.StatementRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.DocumentKey)
	}
	return out
}

func TestMemoryRecordsConcurrentUpsert(t *testing.T) {
	repo := NewMemoryRecords(taxonomy.Default())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			equity := "400"
			if i%2 == 0 {
				equity = "350"
			}
			if err := repo.Upsert(context.Background(), balanceSheet("doc-x", equity)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if repo.Len() != 1 {
		t.Fatalf("records = %d, want 1", repo.Len())
	}
}

func TestRecordConcurrentUpsert(t *testing.T) {
	ctx := context.Background()
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := balanceSheet("doc-race", "400")
					if i%2 == 0 {
						rec = balanceSheet("doc-race", "350")
						rec.Items = rec.Items[:4]
					}
					if err := repo.Upsert(ctx, rec); err != nil {
						t.Error(err)
					}
				}(i)
			}
			wg.Wait()

			recs, err := repo.List(ctx, RecordFilter{DocumentKey: "doc-race"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("records = %d, want 1", len(recs))
			}
			got := recs[0]
			equity := got.Items[2].Value.Decimal
			switch {
			case equity.Equal(decimal.NewFromInt(400000)):
				if len(got.Items) != 5 || got.Status != constants.StatusAccepted {
					t.Errorf("accepted writer left %d items, status %s", len(got.Items), got.Status)
				}
			case equity.Equal(decimal.NewFromInt(350000)):
				if len(got.Items) != 4 || got.Status != constants.StatusRejected {
					t.Errorf("rejected writer left %d items, status %s", len(got.Items), got.Status)
				}
			default:
				t.Fatalf("unexpected equity %s", equity)
			}
			for i, it := range got.Items {
				if want := 3 + 2*i; it.Source.Seq != want {
					t.Errorf("item %d seq = %d, want %d", i, it.Source.Seq, want)
				}
			}
		})
	}
}

func journals(t *testing.T) map[string]RunJournal {
	return map[string]RunJournal{
		"sqlite": NewRunJournal(openTestDB(t), nil),
		"memory": NewMemoryJournal(),
	}
}

func TestJournalPlaceholders(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{dialect.Postgres, "SELECT state FROM pipeline_runs WHERE run_key = $1"},
		{dialect.SQLite, "SELECT state FROM pipeline_runs WHERE run_key = ?"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			j := NewRunJournal(&DB{Dialect: tt.dialect}, nil).(*sqlJournal)
			q, _, err := j.sb.Select("state").From("pipeline_runs").Where(sq.Eq{"run_key": "doc"}).ToSql()
			if err != nil {
				t.Fatal(err)
			}
			if q != tt.want {
				t.Errorf("query = %q, want %q", q, tt.want)
			}
		})
	}
}

func TestJournalSaveLoad(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			cp, err := j.Load(ctx, "doc-a")
			if err != nil || cp != nil {
				t.Fatalf("load missing = %v, %v", cp, err)
			}

			cp = &entity.Checkpoint{
				RunKey:      "doc-a",
				RunID:       "run-1",
				ContentType: constants.ContentTypePDF,
				State:       constants.RunClassifying,
				Blocks:      []entity.Block{{Kind: entity.TextBlock, Page: 1, Text: "Total assets", Row: -1, Col: -1}},
				BlocksAt:    &at,
				Attempts:    2,
			}
			if err := j.Save(ctx, cp); err != nil {
				t.Fatal(err)
			}
			cp.State = constants.RunFailed
			cp.Failure = &entity.FailureReport{DocumentKey: "doc-a", RunID: "run-1", State: constants.RunMapping, Code: common.CodeCancelled, Message: "context canceled", OccurredAt: at}
			cp.Detections = []entity.Detection{{Type: constants.BalanceSheet, FirstSeq: 0, LastSeq: 4}}
			if err := j.Save(ctx, cp); err != nil {
				t.Fatal(err)
			}

			got, err := j.Load(ctx, "doc-a")
			if err != nil {
				t.Fatal(err)
			}
			if got.RunID != "run-1" || got.State != constants.RunFailed || got.Attempts != 2 || got.ContentType != constants.ContentTypePDF {
				t.Errorf("checkpoint = %+v", got)
			}
			if len(got.Blocks) != 1 || got.Blocks[0].Text != "Total assets" || got.BlocksAt == nil || !got.BlocksAt.Equal(at) {
				t.Errorf("blocks = %+v at %v", got.Blocks, got.BlocksAt)
			}
			if len(got.Detections) != 1 || got.Detections[0].Type != constants.BalanceSheet {
				t.Errorf("detections = %+v", got.Detections)
			}
			if got.Failure == nil || got.Failure.Code != common.CodeCancelled || got.Failure.State != constants.RunMapping {
				t.Errorf("failure = %+v", got.Failure)
			}
			if got.UpdatedAt.IsZero() {
				t.Error("updated_at not set")
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := HealthCheck(context.Background(), db, time.Second, nil); err != nil {
		t.Fatal(err)
	}
}

func TestFirestoreCodec(t *testing.T) {
	rec := balanceSheet("doc-f", "350")
	got, err := fromFirestore(rec.ID.String(), toFirestore(rec))
	if err != nil {
		t.Fatal(err)
	}
	if !got.SameContent(rec) {
		t.Fatalf("codec mismatch:\n got %+v\nwant %+v", got, rec)
	}
}
