package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// maxOCRPages bounds how many pages of a scanned PDF are recognized.
const maxOCRPages = 5

// Recognizer reads text out of a PNG image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// documentText returns the readable text of a document: the PDF text
// layer when there is one, otherwise OCR of the rendered pages or the
// image. Without a recognizer only the text layer is available.
func documentText(ctx context.Context, data []byte, contentType string, recognizer Recognizer) (string, error) {
	if isPDF(contentType) {
		text, err := PDFText(data)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" || recognizer == nil {
			return text, nil
		}
		pages, err := pdfPageImages(data, maxOCRPages)
		if err != nil {
			return "", err
		}
		return recognizePages(ctx, recognizer, pages)
	}

	if recognizer == nil {
		return "", nil
	}
	img, err := prepareImageData(data, contentType)
	if err != nil {
		return "", err
	}
	text, err := recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("recognizing image: %w", err)
	}
	return text, nil
}

func recognizePages(ctx context.Context, recognizer Recognizer, pages [][]byte) (string, error) {
	var texts []string
	var lastErr error
	for i, page := range pages {
		text, err := recognizer.Recognize(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			slog.Warn("Failed to recognize PDF page", "page", i+1, "error", err)
			lastErr = fmt.Errorf("recognizing page %d: %w", i+1, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 && lastErr != nil {
		return "", lastErr
	}
	return strings.Join(texts, "\n"), nil
}
