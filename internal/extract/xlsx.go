package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Cell geometry used for spreadsheet blocks.
const (
	cellWidth  = 64.0
	cellHeight = 20.0
)

// extractXLSX emits one block per non-empty cell, sheet by sheet in workbook order.
func (s *Service) extractXLSX(data []byte) ([]entity.Block, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.CorruptDocument(err, "xlsx decode")
	}
	defer func() { _ = f.Close() }()

	var blocks []entity.Block
	for idx, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, common.CorruptDocument(err, "xlsx sheet %q", sheet)
		}
		blocks = append(blocks, cells(rows, idx+1, sheet)...)
	}
	return blocks, nil
}

func cells(rows [][]string, page int, sheet string) []entity.Block {
	var out []entity.Block
	for r, row := range rows {
		for c, v := range row {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			out = append(out, entity.Block{
				Kind:  entity.TableCell,
				Page:  page,
				Sheet: sheet,
				Box: entity.Box{
					X: float64(c) * cellWidth,
					Y: float64(r) * cellHeight,
					W: cellWidth,
					H: cellHeight,
				},
				Text: v,
				Row:  r,
				Col:  c,
				Line: r,
			})
		}
	}
	return out
}
