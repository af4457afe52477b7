package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

func (s *Service) extractPDF(ctx context.Context, data []byte) (blocks []entity.Block, err error) {
	// pdfcpu panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			blocks, err = nil, common.CorruptDocument(fmt.Errorf("%v", r), "pdf decode panicked")
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, common.CorruptDocument(err, "pdf decode")
	}

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			return nil, common.CorruptDocument(err, "pdf page %d content", pageNr)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, common.CorruptDocument(err, "pdf page %d read", pageNr)
		}
		frags := parseContentStream(content, pageNr)
		blocks = append(blocks, layoutPage(frags, s.cfg)...)
	}

	if len(blocks) == 0 {
		s.cfg.Logger.Warn("extract.pdf.no_text", "pages", pdfCtx.PageCount)
	}
	s.cfg.Logger.Debug("extract.pdf.ok", "pages", pdfCtx.PageCount, "blocks", len(blocks))
	return blocks, nil
}
