// Package extract turns raw document bytes into ordered, positioned blocks.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Extractor is Stage 1: bytes -> blocks.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) ([]entity.Block, error)
}

// Config tunes layout reconstruction. Zero values take defaults.
type Config struct {
	LineTolerance float64 // max |dY| for fragments on one visual line
	WordGap       float64 // max horizontal gap for merging label fragments
	GutterWidth   float64 // min whitespace strip treated as a column gutter
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.LineTolerance <= 0 {
		c.LineTolerance = 3
	}
	if c.WordGap <= 0 {
		c.WordGap = 12
	}
	if c.GutterWidth <= 0 {
		c.GutterWidth = 18
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service dispatches on content type.
type Service struct {
	cfg Config
}

func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

var (
	magicPDF = []byte("%PDF-")
	magicZIP = []byte("PK\x03\x04")
)

// Extract decodes data according to contentType. Unknown content types fail with
// UnsupportedFormat; bytes that do not match the declared format, or that its
// decoder rejects, fail with CorruptDocument.
func (s *Service) Extract(ctx context.Context, data []byte, contentType string) ([]entity.Block, error) {
	ct := constants.NormalizeContentType(contentType)
	switch ct {
	case constants.ContentTypePDF, constants.ContentTypeXLSX, constants.ContentTypeCSV, constants.ContentTypeText:
	default:
		return nil, common.UnsupportedFormat("content type %q is not supported", contentType)
	}
	if len(data) == 0 {
		return nil, common.CorruptDocument(nil, "empty %s document", ct)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		blocks []entity.Block
		err    error
	)
	switch ct {
	case constants.ContentTypePDF:
		if !bytes.HasPrefix(trimBOM(data), magicPDF) {
			return nil, mismatch(data, ct)
		}
		blocks, err = s.extractPDF(ctx, data)
	case constants.ContentTypeXLSX:
		if !bytes.HasPrefix(data, magicZIP) {
			return nil, mismatch(data, ct)
		}
		blocks, err = s.extractXLSX(data)
	case constants.ContentTypeCSV:
		if !isText(data) {
			return nil, mismatch(data, ct)
		}
		blocks, err = s.extractCSV(data)
	case constants.ContentTypeText:
		if !isText(data) {
			return nil, mismatch(data, ct)
		}
		blocks = s.extractText(data)
	}
	if err != nil {
		s.cfg.Logger.Warn("extract.decode.failed", "content_type", ct, "err", err)
		return nil, err
	}
	sequence(blocks)
	s.cfg.Logger.Debug("extract.ok", "content_type", ct, "blocks", len(blocks))
	return blocks, nil
}

func mismatch(data []byte, declared string) error {
	sniffed := http.DetectContentType(data)
	return common.CorruptDocument(nil, "bytes look like %s, declared %s", sniffed, declared)
}

func trimBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}

// isText rejects binary payloads declared as text.
func isText(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "text/")
}

// sequence assigns the global reading order.
func sequence(blocks []entity.Block) {
	for i := range blocks {
		blocks[i].Seq = i
	}
}
