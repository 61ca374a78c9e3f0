package scanning

import (
	"context"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/extract"
)

// Local scans documents without any model, applying keyword and pattern
// rules to the document text. Text comes from the PDF text layer, or from
// OCR when a recognizer is configured; without one, images come back
// unrecognized.
type Local struct {
	extractor  *extract.Extractor
	recognizer Recognizer
}

// NewLocal creates a new Local Scanner instance. recognizer may be nil.
func NewLocal(extractor *extract.Extractor, recognizer Recognizer) *Local {
	return &Local{extractor: extractor, recognizer: recognizer}
}

// ScanDocument implements Scanner
func (l *Local) ScanDocument(ctx context.Context, data []byte, contentType string) (expense.Record, error) {
	if err := ctx.Err(); err != nil {
		return expense.Record{}, err
	}
	text, err := documentText(ctx, data, contentType, l.recognizer)
	if err != nil {
		return expense.Record{}, err
	}
	return l.extractor.Analyze(text), nil
}

// Close implements Scanner
func (l *Local) Close() error {
	return nil
}
