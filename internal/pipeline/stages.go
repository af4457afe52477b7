package pipeline

import (
	"context"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// extract loads blocks from the cache when the previous run left fresh ones,
// otherwise fetches the document and decodes it.
func (p *Processor) extract(ctx context.Context, r *run) error {
	now := p.cfg.Now()
	if prev := r.prev; prev.BlocksFresh(now, p.cfg.CacheTTL) &&
		(r.req.ContentType == "" || r.req.ContentType == prev.ContentType) {
		r.blocks = prev.Blocks
		r.cp.Blocks = prev.Blocks
		r.cp.BlocksAt = prev.BlocksAt
		r.cp.ContentType = prev.ContentType
		r.log.Info("pipeline.extract.cached", "blocks", len(r.blocks), "cached_at", prev.BlocksAt)
		return nil
	}

	doc, err := p.fetch(ctx, r)
	if err != nil {
		r.log.Error("pipeline.fetch.failed", "attempts", r.cp.Attempts, "err", err)
		return err
	}
	ct := r.req.ContentType
	if ct == "" {
		ct = constants.NormalizeContentType(doc.ContentType)
	}
	r.cp.ContentType = ct

	blocks, err := p.Extractor.Extract(ctx, doc.Data, ct)
	if err != nil {
		r.log.Error("pipeline.extract.failed", "content_type", ct, "err", err)
		return err
	}
	r.blocks = blocks
	r.cp.Blocks = blocks
	r.cp.BlocksAt = &now
	r.log.Info("pipeline.extract.ok", "content_type", ct, "size", doc.Size, "blocks", len(blocks))
	return nil
}

func (p *Processor) classify(ctx context.Context, r *run) error {
	r.dets = p.Classifier.Classify(r.blocks)
	r.cp.Detections = r.dets
	for _, d := range r.dets {
		if d.Type == constants.Unknown {
			r.out.Unknown = append(r.out.Unknown, d)
		}
	}
	r.log.Info("pipeline.classify.ok", "detections", len(r.dets), "unknown", len(r.out.Unknown))
	return nil
}

func (p *Processor) mapStatements(ctx context.Context, r *run) error {
	var known []entity.Detection
	for _, d := range r.dets {
		if d.Type != constants.Unknown {
			known = append(known, d)
		}
	}
	results, err := p.Mapper.MapAll(ctx, r.blocks, known)
	if err != nil {
		r.log.Error("pipeline.map.failed", "err", err)
		return err
	}
	r.results = results
	items := 0
	for _, res := range results {
		items += len(res.Items)
	}
	r.log.Info("pipeline.map.ok", "statements", len(results), "items", items)
	return nil
}

// validate scores every mapped statement and upserts one record per
// (type, period). Rejected statements are persisted like accepted ones.
func (p *Processor) validate(ctx context.Context, r *run) error {
	seen := map[string]bool{}
	for _, res := range r.results {
		det := res.Detection
		findings := make([]entity.Finding, 0, len(det.Findings)+len(res.Findings))
		findings = append(findings, det.Findings...)
		findings = append(findings, res.Findings...)
		findings = append(findings, p.Validator.Validate(res.Items, det.Type, res.Scale)...)
		status, confidence := p.Validator.Score(findings)

		rec := &entity.StatementRecord{
			DocumentKey: r.req.DocumentKey,
			Type:        det.Type,
			Period:      det.Period,
			Items:       res.Items,
			Findings:    findings,
			Status:      status,
			Confidence:  confidence,
			Scale:       res.Scale,
			Currency:    res.Currency,
			RunID:       r.cp.RunID,
			ProcessedAt: p.cfg.Now(),
		}
		key := rec.Key()
		if seen[key.String()] {
			r.log.Warn("pipeline.record.duplicate_key", "key", key.String())
			continue
		}
		seen[key.String()] = true
		rec.ID = key.ID()

		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := p.Records.Upsert(ctx, rec); err != nil {
			r.log.Error("pipeline.record.upsert_failed", "key", key.String(), "err", err)
			return err
		}
		r.out.Records = append(r.out.Records, rec)
		r.log.Info("pipeline.record.ok",
			"statement_type", rec.Type,
			"period", rec.Period.String(),
			"status", rec.Status,
			"confidence", rec.Confidence,
			"findings", len(rec.Findings),
		)
	}
	return nil
}
