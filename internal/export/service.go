package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

// FindingsSheet lists every finding of every exported record.
const FindingsSheet = "Findings"

var sheetNames = map[constants.StatementType]string{
	constants.BalanceSheet:    "Balance Sheet",
	constants.IncomeStatement: "Income Statement",
	constants.CashFlow:        "Cash Flow",
}

var itemHeaders = []string{
	"Document",
	"Period",
	"Period Start",
	"Period End",
	"Taxonomy Key",
	"Raw Label",
	"Value",
	"Currency",
	"Unit Multiplier",
	"Status",
	"Confidence",
	"Page",
}

var findingHeaders = []string{
	"Document",
	"Statement",
	"Period",
	"Rule",
	"Severity",
	"Keys",
	"Message",
}

// Service renders stored statement records as an XLSX workbook.
type Service struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// ExportXLSX returns a workbook with one sheet per statement type and a
// findings sheet for the records matching filter.
func (s *Service) ExportXLSX(ctx context.Context, filter repository.RecordFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "err", err)
		}
	}()

	rows := map[constants.StatementType]int{}
	for _, st := range constants.StatementTypes() {
		sheet := sheetNames[st]
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		writeRow(f, sheet, 1, toAny(itemHeaders))
		rows[st] = 2
	}
	if _, err := f.NewSheet(FindingsSheet); err != nil {
		return nil, err
	}
	writeRow(f, FindingsSheet, 1, toAny(findingHeaders))
	// NewFile starts with Sheet1; the first statement sheet replaces it.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheetNames[constants.BalanceSheet]); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	findingRow := 2
	for _, r := range recs {
		sheet, ok := sheetNames[r.Type]
		if !ok {
			continue
		}
		period := r.Period.String()
		for _, it := range r.Items {
			var value any = ""
			if it.Value.Valid {
				value = it.Value.Decimal.InexactFloat64()
			}
			key := it.Key()
			if key == "" {
				key = "(unmapped)"
			}
			writeRow(f, sheet, rows[r.Type], []any{
				r.DocumentKey,
				period,
				dateCell(r.Period.Start),
				dateCell(r.Period.End),
				key,
				it.RawLabel,
				value,
				it.Currency,
				it.UnitMultiplier,
				string(r.Status),
				r.Confidence,
				it.Source.Page,
			})
			rows[r.Type]++
		}
		for _, fd := range r.Findings {
			writeRow(f, FindingsSheet, findingRow, []any{
				r.DocumentKey,
				string(r.Type),
				period,
				fd.RuleID,
				string(fd.Severity),
				strings.Join(fd.Keys, ", "),
				truncate(fd.Message, 240),
			})
			findingRow++
		}
	}

	for _, sheet := range sheetNames {
		_ = f.SetColWidth(sheet, "A", "A", 32) // document
		_ = f.SetColWidth(sheet, "B", "B", 26) // period
		_ = f.SetColWidth(sheet, "C", "D", 12) // bounds
		_ = f.SetColWidth(sheet, "E", "F", 36) // key / label
		_ = f.SetColWidth(sheet, "G", "G", 18) // value
	}
	_ = f.SetColWidth(FindingsSheet, "A", "A", 32)
	_ = f.SetColWidth(FindingsSheet, "D", "D", 28)
	_ = f.SetColWidth(FindingsSheet, "G", "G", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"records", len(recs),
		"findings", findingRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
