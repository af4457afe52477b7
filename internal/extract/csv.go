package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

func (s *Service) extractCSV(data []byte) ([]entity.Block, error) {
	data = trimBOM(data)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.Comma = sniffDelimiter(data)

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.CorruptDocument(err, "csv decode")
		}
		rows = append(rows, rec)
	}
	return cells(rows, 1, "csv"), nil
}

// sniffDelimiter picks ';' or tab over ',' when the first line uses them more.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, n := ',', bytes.Count(first, []byte(","))
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(first, []byte(string(d))); c > n {
			best, n = d, c
		}
	}
	return best
}
