package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/reimburse/internal/expense"
)

const maxChatText = 4000

// Chat implements the Scanner interface on top of an OpenAI-compatible
// chat/completions endpoint (DeepSeek, SiliconFlow, OpenAI). It is
// text-only: the document's text layer, or OCR text when a recognizer is
// set, is sent to the model.
type Chat struct {
	baseURL    string
	apiKey     string
	model      string
	recognizer Recognizer
	client     *http.Client
}

// NewChat creates a new Chat Scanner instance. recognizer may be nil.
func NewChat(baseURL, apiKey, modelName string, recognizer Recognizer) (*Chat, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chat api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	if modelName == "" {
		modelName = "deepseek-chat"
	}
	return &Chat{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      modelName,
		recognizer: recognizer,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ScanDocument analyzes an invoice or voucher and extracts a record
func (c *Chat) ScanDocument(ctx context.Context, data []byte, contentType string) (expense.Record, error) {
	text, err := documentText(ctx, data, contentType, c.recognizer)
	if err != nil {
		return expense.Record{}, err
	}
	if strings.TrimSpace(text) == "" {
		return expense.Record{}, fmt.Errorf("document has no readable text (%s)", contentType)
	}
	return c.ScanText(ctx, text)
}

// ScanText analyzes already extracted document text
func (c *Chat) ScanText(ctx context.Context, text string) (expense.Record, error) {
	start := time.Now()
	prompt := text
	if r := []rune(prompt); len(r) > maxChatText {
		prompt = string(r[:maxChatText])
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: documentPrompt},
			{Role: "user", Content: "请分析以下发票内容：\n\n" + prompt},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return expense.Record{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return expense.Record{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return expense.Record{}, fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return expense.Record{}, fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var cc chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil {
		return expense.Record{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return expense.Record{}, fmt.Errorf("no choices in chat response")
	}

	doc, err := parseDocumentJSON(cc.Choices[0].Message.Content)
	if err != nil {
		return expense.Record{}, fmt.Errorf("parsing document data: %w", err)
	}

	rec := doc.Record()
	rec.RawText = text
	slog.Debug("Chat scan complete", "model", c.model, "type", rec.Kind, "elapsed_ms", time.Since(start).Milliseconds())
	return rec, nil
}

// Close is a no-op for the HTTP client
func (c *Chat) Close() error {
	return nil
}
