package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/extract"
	"github.com/zombor/reimburse/internal/ocr"
)

// DocumentData is the JSON shape every model is asked to return.
type DocumentData struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	ServiceDate   string          `json:"service_date"`
	Merchant      string          `json:"merchant"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderNumber   string          `json:"order_number"`
	IsInvoice     *bool           `json:"is_invoice"`
	Description   string          `json:"description"`
}

// Record converts model output into an expense record. A missing
// is_invoice is read as a formal invoice.
func (d *DocumentData) Record() expense.Record {
	isInvoice := true
	if d.IsInvoice != nil {
		isInvoice = *d.IsInvoice
	}
	subtype := strings.TrimSpace(d.Subtype)
	if subtype == "" {
		subtype = "未知"
	}
	return expense.Record{
		Kind:          expense.ParseKind(d.Type),
		Subtype:       subtype,
		Amount:        d.Amount,
		Date:          d.Date,
		ServiceDate:   d.ServiceDate,
		Merchant:      strings.TrimSpace(d.Merchant),
		InvoiceNumber: strings.TrimSpace(d.InvoiceNumber),
		OrderNumber:   strings.TrimSpace(d.OrderNumber),
		IsInvoice:     isInvoice,
		Description:   strings.TrimSpace(d.Description),
	}
}

// Scanner defines the interface for document scanning operations
type Scanner interface {
	// ScanDocument analyzes an invoice or voucher and extracts a record
	ScanDocument(ctx context.Context, data []byte, contentType string) (expense.Record, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Config selects and configures a scanner.
type Config struct {
	Provider    string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	ChatURL     string
	ChatKey     string
	ChatModel   string

	OCR       bool
	Tesseract string
	OCRLang   string
}

// Providers lists the accepted Config.Provider values.
func Providers() []string {
	return []string{"local", "gemini", "ollama", "chat"}
}

// New builds the configured scanner. Remote providers are wrapped so that a
// failed call falls back to local text extraction.
func New(cfg Config) (Scanner, error) {
	var recognizer Recognizer
	if cfg.OCR {
		t, err := ocr.New(ocr.Config{Tesseract: cfg.Tesseract, Lang: cfg.OCRLang})
		if err != nil {
			slog.Warn("OCR disabled", "error", err)
		} else {
			recognizer = t
		}
	}
	local := NewLocal(extract.New(), recognizer)

	var remote Scanner
	var err error
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		return local, nil
	case "gemini":
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		remote, err = NewGemini(cfg.GeminiKey, cfg.GeminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		remote, err = NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	case "chat", "deepseek":
		slog.Info("Initializing chat scanner...", "url", cfg.ChatURL, "model", cfg.ChatModel)
		remote, err = NewChat(cfg.ChatURL, cfg.ChatKey, cfg.ChatModel, recognizer)
	default:
		return nil, fmt.Errorf("unknown scanner %q (valid: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}
	if err != nil {
		return nil, err
	}
	return NewFallback(remote, local), nil
}

// Fallback tries a primary scanner and falls back to a secondary one. When
// both fail the document is reported as unrecognized rather than as an error.
type Fallback struct {
	primary   Scanner
	secondary Scanner
}

// NewFallback creates a new Fallback scanner
func NewFallback(primary, secondary Scanner) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// ScanDocument implements Scanner
func (f *Fallback) ScanDocument(ctx context.Context, data []byte, contentType string) (expense.Record, error) {
	rec, err := f.primary.ScanDocument(ctx, data, contentType)
	if err == nil {
		return rec, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return expense.Record{}, ctxErr
	}
	slog.Warn("Primary scanner failed, falling back", "error", err)

	rec, fallbackErr := f.secondary.ScanDocument(ctx, data, contentType)
	if fallbackErr == nil {
		return rec, nil
	}
	slog.Error("Fallback scanner failed", "error", fallbackErr)
	return Unrecognized(errors.Join(err, fallbackErr)), nil
}

// Close closes both scanners
func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

// Unrecognized is the record produced for a document that could not be
// analyzed at all.
func Unrecognized(err error) expense.Record {
	rec := extract.New().Analyze("")
	rec.Description = "分析失败: " + err.Error()
	return rec
}
