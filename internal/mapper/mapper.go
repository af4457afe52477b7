// Package mapper turns a classified statement region into canonical line items.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/amount"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// Mapper is Stage 3: region blocks -> line items.
type Mapper interface {
	Map(ctx context.Context, blocks []entity.Block, det entity.Detection) (Result, error)
	MapAll(ctx context.Context, blocks []entity.Block, dets []entity.Detection) ([]Result, error)
}

type Config struct {
	DefaultCurrency string
	Workers         int // concurrent statements in MapAll
	Logger          *slog.Logger
}

// Result is the mapping of one detection.
type Result struct {
	Detection entity.Detection
	Items     []entity.LineItem
	Findings  []entity.Finding
	Scale     int64
	Currency  string
}

type Service struct {
	tax *taxonomy.Taxonomy
	cfg Config
}

func New(tax *taxonomy.Taxonomy, cfg Config) *Service {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{tax: tax, cfg: cfg}
}

// row is one label with its current-period amount.
type row struct {
	label    string
	labelSeq int
	value    *entity.Block
	kind     amount.Kind
	parsed   decimal.Decimal
}

// Map reads the rows inside det's block range. Only the first amount after a
// label is used; later columns hold comparative periods.
func (s *Service) Map(ctx context.Context, blocks []entity.Block, det entity.Detection) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res := Result{Detection: det, Scale: 1, Currency: s.cfg.DefaultCurrency}
	if det.Type == constants.Unknown {
		return res, nil
	}

	region := make([]entity.Block, 0, len(blocks))
	var amounts []string
	for _, b := range blocks {
		if det.Contains(b.Seq) {
			region = append(region, b)
			if amount.LooksNumeric(b.Text) {
				amounts = append(amounts, b.Text)
			}
		}
	}
	res.Scale = detectScale(det.Title + " " + det.Header)
	res.Currency = detectCurrency(det.Title+" "+det.Header, amounts, s.cfg.DefaultCurrency)
	scale := decimal.NewFromInt(res.Scale)

	seen := make(map[string]int)
	var unresolved []string
	for _, ln := range entity.GroupLines(region) {
		r, ok := readRow(ln)
		if !ok {
			continue
		}
		if r.value == nil {
			continue // heading, even when it reads like a total ("Revenues:")
		}
		key, known := s.tax.Resolve(det.Type, r.label)

		item := entity.LineItem{
			RawLabel:       r.label,
			Currency:       res.Currency,
			UnitMultiplier: res.Scale,
		}
		src := sourceOf(ln, r)
		item.Source = src
		item.RawValue = r.value.Text
		if r.kind == amount.Number {
			v := r.parsed.Mul(scale)
			if known && isLossLabel(r.label) {
				v = v.Abs().Neg()
			}
			item.Value = decimal.NewNullDecimal(v)
		}

		if !known {
			unresolved = append(unresolved, taxonomy.NormalizeLabel(r.label))
			res.Items = append(res.Items, item)
			continue
		}
		// The first occurrence belongs to the primary body; later ones are
		// restatements. A placeholder dash gives way to the first real amount.
		if at, dup := seen[key]; dup {
			kept := res.Items[at]
			if !kept.Value.Valid && item.Value.Valid {
				item.TaxonomyKey = entity.StrPtr(key)
				res.Items[at] = item
				res.Findings = append(res.Findings, entity.Finding{
					RuleID:   "mapping.duplicate",
					Severity: constants.SeverityInfo,
					Keys:     []string{key},
					Message:  fmt.Sprintf("%q at seq %d replaces the empty %s at seq %d", r.label, src.Seq, key, kept.Source.Seq),
				})
				continue
			}
			res.Findings = append(res.Findings, entity.Finding{
				RuleID:   "mapping.duplicate",
				Severity: constants.SeverityInfo,
				Keys:     []string{key},
				Message:  fmt.Sprintf("%q at seq %d repeats %s; first occurrence kept", r.label, src.Seq, key),
			})
			continue
		}
		seen[key] = len(res.Items)
		item.TaxonomyKey = entity.StrPtr(key)
		res.Items = append(res.Items, item)
	}

	if len(unresolved) > 0 {
		res.Findings = append(res.Findings, entity.Finding{
			RuleID:   "mapping.unresolved",
			Severity: constants.SeverityWarning,
			Keys:     unresolved,
			Message:  fmt.Sprintf("%s: %d label(s) kept without a taxonomy key", common.ErrMappingUnresolved, len(unresolved)),
		})
	}
	s.cfg.Logger.Debug("mapper.map.ok",
		"type", det.Type, "period", det.Period.Key(), "items", len(res.Items),
		"unresolved", len(unresolved), "scale", res.Scale, "currency", res.Currency)
	return res, nil
}

// isLossLabel reports labels such as "Net loss" whose amount is a loss
// whatever sign it is printed with. "Net income (loss)" is signed as printed.
func isLossLabel(label string) bool {
	var loss bool
	for _, w := range strings.Fields(taxonomy.NormalizeLabel(label)) {
		switch w {
		case "loss", "losses":
			loss = true
		case "income", "profit", "earnings", "gain", "gains":
			return false
		}
	}
	return loss
}

// readRow splits a line into its label and first amount. Lines without a
// label, and column-header lines whose amounts are all years, are skipped.
func readRow(ln entity.Line) (row, bool) {
	var (
		labels  []string
		r       row
		numbers int
		years   int
	)
	r.labelSeq = -1
	for i := range ln.Blocks {
		b := &ln.Blocks[i]
		d, kind := amount.Parse(b.Text)
		if kind == amount.NotNumber {
			if r.value == nil {
				labels = append(labels, strings.TrimSpace(b.Text))
				if r.labelSeq < 0 {
					r.labelSeq = b.Seq
				}
			}
			continue
		}
		numbers++
		if amount.IsYear(b.Text) {
			years++
		}
		if r.value == nil && len(labels) > 0 {
			r.value, r.kind, r.parsed = b, kind, d
		}
	}
	r.label = strings.Join(labels, " ")
	if len(labels) == 0 || taxonomy.NormalizeLabel(r.label) == "" {
		return row{}, false
	}
	if numbers > 0 && numbers == years {
		return row{}, false
	}
	return r, true
}

func sourceOf(ln entity.Line, r row) entity.SourceRef {
	b := ln.Blocks[0]
	if r.value != nil {
		b = *r.value
	}
	return entity.SourceRef{Page: b.Page, Sheet: b.Sheet, Seq: b.Seq, Row: b.Row, Col: b.Col}
}

// MapAll maps every detection concurrently. Blocks are shared read-only.
func (s *Service) MapAll(ctx context.Context, blocks []entity.Block, dets []entity.Detection) ([]Result, error) {
	out := make([]Result, len(dets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, det := range dets {
		g.Go(func() error {
			res, err := s.Map(gctx, blocks, det)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
