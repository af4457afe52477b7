package entity

// BlockKind distinguishes free text from spreadsheet/table cells.
type BlockKind string

const (
	TextBlock BlockKind = "TEXT"
	TableCell BlockKind = "CELL"
)

// Box is a bounding position in page space. Y grows downward.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Block is one extracted unit of text. Blocks are produced per extraction run
// and only persisted as part of the extraction cache.
type Block struct {
	Kind   BlockKind `json:"kind"`
	Page   int       `json:"page"`            // 1-based page, or sheet index for spreadsheets
	Sheet  string    `json:"sheet,omitempty"` // spreadsheets only
	Box    Box       `json:"box"`
	Text   string    `json:"text"`
	Row    int       `json:"row"`    // table row (cells), -1 for text
	Col    int       `json:"col"`    // table column (cells), -1 for text
	Column int       `json:"column"` // layout column within the page
	Line   int       `json:"line"`   // visual line within page/column; equals Row for cells
	Seq    int       `json:"seq"`    // global reading order
}

// IsCell reports whether the block came from a tabular source.
func (b Block) IsCell() bool { return b.Kind == TableCell }
