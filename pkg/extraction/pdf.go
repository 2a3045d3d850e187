package extraction

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// nativePages pulls the embedded text layer out of a PDF, one result per
// page. Native text carries confidence 1.0.
func nativePages(blob []byte) ([]models.PageResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, faults.Terminalf("PDF_UNREADABLE", err, "open pdf")
	}

	pages := make([]models.PageResult, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.PageResult{PageNumber: i, Confidence: 1.0})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single corrupt page should not sink the document.
			pages = append(pages, models.PageResult{PageNumber: i, Confidence: 1.0})
			continue
		}
		pages = append(pages, models.PageResult{
			PageNumber: i,
			Text:       strings.TrimSpace(text),
			Confidence: 1.0,
		})
	}
	return pages, nil
}

// isScanned classifies a PDF by its extractable text density: below
// threshold chars per page on average, the text layer is absent or vestigial
// and the document goes through OCR.
func isScanned(pages []models.PageResult, threshold int) bool {
	if len(pages) == 0 {
		return true
	}
	total := 0
	for _, p := range pages {
		total += len(strings.TrimSpace(p.Text))
	}
	return total/len(pages) < threshold
}
