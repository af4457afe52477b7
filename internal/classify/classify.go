// Package classify finds the statements a document holds and their periods.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/amount"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// Classifier is Stage 2: blocks -> detections.
type Classifier interface {
	Classify(blocks []entity.Block) []entity.Detection
}

type Config struct {
	PeriodWindow  int // lines after a title searched for the period
	MaxTitleWords int // longer lines are never titles
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.PeriodWindow <= 0 {
		c.PeriodWindow = 6
	}
	if c.MaxTitleWords <= 0 {
		c.MaxTitleWords = 14
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Service struct {
	cfg Config
}

func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

type region struct {
	st       constants.StatementType
	anchored bool
	first    int // line index
	last     int
	period   entity.PeriodSpec
	title    string
	header   string
	findings []entity.Finding
}

// Classify splits the document into statement regions. Titles start regions;
// a repeated title of the same type and period continues the open region.
// Without any title, complete cue sets classify the document. When nothing
// matches, a single Unknown detection covering every block is returned.
func (s *Service) Classify(blocks []entity.Block) []entity.Detection {
	lines := entity.GroupLines(blocks)
	norms := make([]string, len(lines))
	for i, ln := range lines {
		norms[i] = taxonomy.NormalizeLabel(ln.Text())
	}

	type anchor struct {
		line int
		st   constants.StatementType
	}
	var anchors []anchor
	for i, ln := range lines {
		if !s.isHeading(ln, norms[i]) {
			continue
		}
		if st, ok := matchAnchor(norms[i]); ok {
			anchors = append(anchors, anchor{line: i, st: st})
		}
	}

	var regions []region
	if len(anchors) == 0 {
		if r, ok := s.cueRegion(lines, norms, 0, len(lines)-1); ok {
			regions = append(regions, r)
		}
	} else if anchors[0].line > 0 {
		last := anchors[0].line - 1
		if r, ok := s.cueRegion(lines, norms, 0, last); ok {
			regions = append(regions, r)
		} else if n := amountLines(lines[:last+1]); n >= minUnanchoredAmounts {
			regions = append(regions, region{
				st:    constants.Unknown,
				first: 0,
				last:  last,
				findings: []entity.Finding{{
					RuleID:   "classification.unknown",
					Severity: constants.SeverityInfo,
					Message:  fmt.Sprintf("%d amount line(s) before the first statement title match no statement type", n),
				}},
			})
			s.cfg.Logger.Debug("classify.preamble.unknown", "lines", last+1, "amounts", n)
		}
	}

	for k, a := range anchors {
		last := len(lines) - 1
		if k+1 < len(anchors) {
			last = anchors[k+1].line - 1
		}
		header := s.header(lines, a.line, last)
		period, findings := parsePeriod(a.st, header)

		if n := len(regions); n > 0 {
			prev := &regions[n-1]
			if prev.anchored && prev.st == a.st && (period.Key() == prev.period.Key() || missing(findings)) {
				prev.last = last
				continue
			}
		}
		regions = append(regions, region{
			st:       a.st,
			anchored: true,
			first:    a.line,
			last:     last,
			period:   period,
			title:    lines[a.line].Text(),
			header:   header,
			findings: findings,
		})
	}

	for i := range regions {
		if regions[i].anchored {
			s.checkAmbiguity(&regions[i], norms)
		}
	}

	if len(regions) == 0 {
		det := entity.Detection{
			Type:     constants.Unknown,
			FirstSeq: 0,
			LastSeq:  -1,
			Findings: []entity.Finding{{
				RuleID:   "classification.unknown",
				Severity: constants.SeverityInfo,
				Message:  "no statement title or complete set of statement line items found",
			}},
		}
		if len(blocks) > 0 {
			det.FirstSeq, det.LastSeq = blocks[0].Seq, blocks[len(blocks)-1].Seq
		}
		s.cfg.Logger.Debug("classify.unknown", "blocks", len(blocks))
		return []entity.Detection{det}
	}

	out := make([]entity.Detection, 0, len(regions))
	for _, r := range regions {
		out = append(out, entity.Detection{
			Type:     r.st,
			Period:   r.period,
			FirstSeq: lines[r.first].FirstSeq(),
			LastSeq:  lines[r.last].LastSeq(),
			Title:    r.title,
			Header:   r.header,
			Findings: r.findings,
		})
	}
	s.cfg.Logger.Debug("classify.done", "detections", len(out))
	return out
}

// minUnanchoredAmounts is how many labelled amounts an untitled preamble needs
// before it is reported instead of dropped as cover-page text.
const minUnanchoredAmounts = 2

// amountLines counts lines holding a label followed by a non-year amount.
func amountLines(lines []entity.Line) int {
	n := 0
	for _, ln := range lines {
		labelled := false
		for _, b := range ln.Blocks {
			if _, kind := amount.Parse(b.Text); kind != amount.Number {
				labelled = labelled || strings.TrimSpace(b.Text) != ""
				continue
			}
			if labelled && !amount.IsYear(b.Text) {
				n++
				break
			}
		}
	}
	return n
}

// isHeading accepts short lines without amounts. Year column headers do not
// disqualify a line.
func (s *Service) isHeading(ln entity.Line, norm string) bool {
	if norm == "" || len(strings.Fields(norm)) > s.cfg.MaxTitleWords {
		return false
	}
	for _, b := range ln.Blocks {
		if amount.IsYear(b.Text) {
			continue
		}
		if _, kind := amount.Parse(b.Text); kind == amount.Number {
			return false
		}
	}
	return true
}

// header joins the title line and the lines that follow it, up to the window.
func (s *Service) header(lines []entity.Line, first, last int) string {
	end := first + s.cfg.PeriodWindow
	if end > last {
		end = last
	}
	parts := make([]string, 0, end-first+1)
	for i := first; i <= end; i++ {
		parts = append(parts, lines[i].Text())
	}
	return strings.Join(parts, " ")
}

// cueRegion classifies lines [first, last] by structural cues alone.
func (s *Service) cueRegion(lines []entity.Line, norms []string, first, last int) (region, bool) {
	if first > last {
		return region{}, false
	}
	labels := norms[first : last+1]
	var complete []constants.StatementType
	for _, st := range anchorOrder {
		if cueScore(st, labels) == 1 {
			complete = append(complete, st)
		}
	}
	if len(complete) == 0 {
		return region{}, false
	}

	header := s.header(lines, first, last)
	r := region{st: complete[0], first: first, last: last, header: header}
	r.period, r.findings = parsePeriod(r.st, header)
	if len(complete) > 1 {
		r.findings = append(r.findings, ambiguous(complete[0], complete[1:]...))
	}
	return r, true
}

// checkAmbiguity flags a titled region whose line items match another
// statement type's complete cue set but not its own.
func (s *Service) checkAmbiguity(r *region, norms []string) {
	labels := norms[r.first : r.last+1]
	if cueScore(r.st, labels) == 1 {
		return
	}
	var others []constants.StatementType
	for _, st := range anchorOrder {
		if st != r.st && cueScore(st, labels) == 1 {
			others = append(others, st)
		}
	}
	if len(others) > 0 {
		r.findings = append(r.findings, ambiguous(r.st, others...))
		s.cfg.Logger.Debug("classify.ambiguous", "type", r.st, "title", r.title)
	}
}

func ambiguous(chosen constants.StatementType, others ...constants.StatementType) entity.Finding {
	names := make([]string, len(others))
	for i, o := range others {
		names[i] = string(o)
	}
	return entity.Finding{
		RuleID:   "classification.ambiguous",
		Severity: constants.SeverityWarning,
		Message: fmt.Sprintf("%s: classified as %s, line items also match %s",
			common.ErrClassificationAmbiguous, chosen, strings.Join(names, ", ")),
	}
}

func missing(findings []entity.Finding) bool {
	for _, f := range findings {
		if f.RuleID == "period.missing" {
			return true
		}
	}
	return false
}
