package fileproc

import (
	"bytes"
	"context"
	"encoding/base64"
	"regexp"
)

// minPDFTextChars is the threshold below which extracted PDF text is
// considered too sparse to trust (spec §4.3: "If extracted text < 200
// chars, fall back to vision").
const minPDFTextChars = 200

// pdfTextRun matches a parenthesised text-showing operand inside a PDF
// content stream, e.g. "(Hello World) Tj". This is a best-effort
// extraction: no PDF parsing library appears anywhere in the example
// pack, so text is pulled directly out of the raw content-stream bytes
// rather than through a proper object/xref walk. It recovers plain,
// uncompressed text streams; PDFs whose content streams are Flate-
// compressed (the common case for modern producers) yield little or
// nothing, which is exactly the case [minPDFTextChars] exists to catch.
var pdfTextRun = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)

func extractPDFText(data []byte) string {
	var out bytes.Buffer
	for _, m := range pdfTextRun.FindAllSubmatch(data, -1) {
		out.Write(unescapePDFString(m[1]))
		out.WriteByte(' ')
	}
	return out.String()
}

func unescapePDFString(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
			switch b[i] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, b[i])
			}
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// processPDF implements spec §4.3's "PDF" branch: try direct text
// extraction first, and only fall back to per-page vision analysis when
// that yields too little to be useful. Page-image rendering (the "render
// up to 5 pages at 200 DPI" step) needs a PDF rasteriser, which — like PDF
// parsing generally — has no representative in the example pack; the
// fallback here instead sends the whole document's raw bytes to the vision
// model as a single pass, noted as a simplification in DESIGN.md.
func (s *Service) processPDF(ctx context.Context, req Request) (string, error) {
	text := extractPDFText(req.Data)
	if len(text) >= minPDFTextChars {
		return text, nil
	}

	b64 := base64.StdEncoding.EncodeToString(req.Data)
	out, err := s.deps.Gateway.VisionAnalyse(ctx, b64, "application/pdf",
		"Extract all readable text from this document, preserving structure.")
	if err != nil {
		if text != "" {
			return text, nil // degrade to whatever direct extraction found.
		}
		return "", err
	}
	return out, nil
}
