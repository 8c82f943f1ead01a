package entity

// StructuredLine is one visual line of a rendered page; Y grows upwards.
type StructuredLine struct {
	Text string  `json:"text"`
	Y    float64 `json:"y"`
}

// Page is the rendered text of a single PDF page.
type Page struct {
	PageNumber int              `json:"pageNumber"`
	Text       string           `json:"text"`
	Structured []StructuredLine `json:"structured"`
}

// RenderResult is what the PDF renderer hands to the extractor.
type RenderResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Pages   []Page `json:"pages"`
	Error   string `json:"error,omitempty"`
	Method  string `json:"method,omitempty"`
}

// InvoiceText is the immutable input of field extraction.
type InvoiceText struct {
	FullText string
	Lines    []StructuredLine
}

// InvoiceTextFrom builds extraction input from a render result, using the
// first page's structured lines.
func InvoiceTextFrom(r RenderResult) InvoiceText {
	var lines []StructuredLine
	if len(r.Pages) > 0 {
		lines = r.Pages[0].Structured
	}
	return InvoiceText{FullText: r.Text, Lines: lines}
}

// FileInput is one uploaded or ingested file handed to a batch.
type FileInput struct {
	Name string
	Size int64
	Hash string // hex sha256, set by directory ingest
	Data []byte
}
