package pipeline

import "bytes"

// Format is the sniffed shape of an input file. Narrowed to PDF-only plus
// Unknown: images only ever enter via the AI-vision fallback's internal
// rendering, never as a top-level input.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var pdfMagic = []byte("%PDF-")

// DetectFormat sniffs the leading bytes of a file.
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, pdfMagic) {
		return FormatPDF
	}
	return FormatUnknown
}
